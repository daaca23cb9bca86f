package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/lock"
)

// countingStore wraps the memory store and records how often each method ran.
type countingStore struct {
	*repository.MemoryStudentStore
	adds    int
	gets    int
	updates int
	deletes int
	failAdd error
}

func (c *countingStore) Add(ctx context.Context, student *models.Student) error {
	c.adds++
	if c.failAdd != nil {
		return c.failAdd
	}
	return c.MemoryStudentStore.Add(ctx, student)
}

func (c *countingStore) Get(ctx context.Context, id string) (*models.Student, error) {
	c.gets++
	return c.MemoryStudentStore.Get(ctx, id)
}

func (c *countingStore) Update(ctx context.Context, student *models.Student) error {
	c.updates++
	return c.MemoryStudentStore.Update(ctx, student)
}

func (c *countingStore) Delete(ctx context.Context, id string) error {
	c.deletes++
	return c.MemoryStudentStore.Delete(ctx, id)
}

func newStudentServiceForTest(t *testing.T) (*StudentService, *countingStore) {
	t.Helper()
	store := &countingStore{MemoryStudentStore: repository.NewMemoryStudentStore()}
	seq := 0
	svc := NewStudentService(store, lock.NewMemoryLocker(), nil, NewMetricsService(), zap.NewNop(), StudentServiceConfig{
		IDFunc: func() string {
			seq++
			return fmt.Sprintf("stu-%d", seq)
		},
	})
	return svc, store
}

func strPtr(v string) *string { return &v }

func validInput(name string) StudentInput {
	return StudentInput{Name: name, Course: "Go", Batch: "2024", Status: "Active"}
}

func TestStudentServiceCreateAssignsUniqueIDs(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		student, err := svc.Create(ctx, validInput(fmt.Sprintf("Student %d", i)))
		require.NoError(t, err)
		require.False(t, seen[student.StudentID], "duplicate id %s", student.StudentID)
		seen[student.StudentID] = true
	}

	students, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, students, 5)
	assert.Equal(t, "Student 0", students[0].Name)
	assert.Equal(t, "Student 4", students[4].Name)
}

func TestStudentServiceCreateUsesUUIDByDefault(t *testing.T) {
	store := repository.NewMemoryStudentStore()
	svc := NewStudentService(store, nil, nil, nil, nil, StudentServiceConfig{})

	student, err := svc.Create(context.Background(), validInput("Ali"))
	require.NoError(t, err)
	assert.Len(t, student.StudentID, 36)
}

func TestStudentServiceCreateValidationSkipsStore(t *testing.T) {
	svc, store := newStudentServiceForTest(t)

	cases := []StudentInput{
		{Name: "", Course: "Go", Batch: "1", Status: "Active"},
		{Name: "Ali", Course: "   ", Batch: "1", Status: "Active"},
		{Name: "Ali", Course: "Go", Batch: "", Status: "Active"},
		{Name: "Ali", Course: "Go", Batch: "1", Status: "\t"},
	}
	for _, input := range cases {
		_, err := svc.Create(context.Background(), input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
		assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	}
	assert.Zero(t, store.adds)
}

func TestStudentServiceCreateStoreFailure(t *testing.T) {
	svc, store := newStudentServiceForTest(t)
	store.failAdd = errors.New("disk full")

	_, err := svc.Create(context.Background(), validInput("Ali"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStore))
	assert.True(t, appErrors.IsStoreError(err))
}

func TestStudentServiceCreateDuplicateID(t *testing.T) {
	store := repository.NewMemoryStudentStore()
	svc := NewStudentService(store, nil, nil, nil, zap.NewNop(), StudentServiceConfig{IDFunc: func() string { return "fixed" }})

	_, err := svc.Create(context.Background(), validInput("Ali"))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), validInput("Bob"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceEditMergesSuppliedFields(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	updated, err := svc.Edit(ctx, *created, models.StudentFields{Status: strPtr("Graduated")})
	require.NoError(t, err)
	assert.Equal(t, "Ali", updated.Name)
	assert.Equal(t, "Go", updated.Course)
	assert.Equal(t, "2024", updated.Batch)
	assert.Equal(t, "Graduated", updated.Status)

	stored, err := svc.Get(ctx, created.StudentID)
	require.NoError(t, err)
	assert.True(t, stored.SameFields(*updated))
}

func TestStudentServiceEditRejectsBlankSuppliedValue(t *testing.T) {
	svc, store := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	_, err = svc.Edit(ctx, *created, models.StudentFields{Name: strPtr("  ")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, store.updates)
}

func TestStudentServiceNoOpEditRoundTrip(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	edited, err := svc.Edit(ctx, *created, models.StudentFields{})
	require.NoError(t, err)
	assert.True(t, created.SameFields(*edited))
}

func TestStudentServiceUpdateAndReplace(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	patched, err := svc.Update(ctx, created.StudentID, models.StudentFields{Course: strPtr("Rust")})
	require.NoError(t, err)
	assert.Equal(t, "Rust", patched.Course)
	assert.Equal(t, "Ali", patched.Name)

	replaced, err := svc.Replace(ctx, created.StudentID, StudentInput{Name: "Alia", Course: "Zig", Batch: "2025", Status: "Dropped"})
	require.NoError(t, err)
	assert.Equal(t, StudentInput{Name: "Alia", Course: "Zig", Batch: "2025", Status: "Dropped"}, inputOf(*replaced))

	_, err = svc.Replace(ctx, created.StudentID, StudentInput{Name: "Alia"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Update(ctx, "missing", models.StudentFields{Course: strPtr("Rust")})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceUpdateRejectsBlankBeforeLookup(t *testing.T) {
	svc, store := newStudentServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "ghost", models.StudentFields{Name: strPtr(""), Status: strPtr(" ")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Equal(t, "required fields missing: name, status", appErrors.FromError(err).Message)
	assert.Zero(t, store.gets)
	assert.Zero(t, store.updates)

	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)
	release, err := svc.locker.TryLock(ctx, lock.StudentKey(created.StudentID), time.Minute)
	require.NoError(t, err)
	defer release(ctx) //nolint:errcheck

	_, err = svc.Update(ctx, created.StudentID, models.StudentFields{Course: strPtr("\t")})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "blank input is reported even while the record is locked")
	assert.Zero(t, store.gets)
}

func TestStudentServiceDeleteUnknownLeavesStoreUnchanged(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)
	before, err := svc.List(ctx)
	require.NoError(t, err)

	err = svc.Delete(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.IsStoreError(err))
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	after, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStudentServiceDelete(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.StudentID))
	_, err = svc.Get(ctx, created.StudentID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceRejectsOverlappingMutation(t *testing.T) {
	svc, store := newStudentServiceForTest(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput("Ali"))
	require.NoError(t, err)

	release, err := svc.locker.TryLock(ctx, lock.StudentKey(created.StudentID), time.Minute)
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.StudentID, models.StudentFields{Status: strPtr("Graduated")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrBusy))
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	err = svc.Delete(ctx, created.StudentID)
	assert.True(t, errors.Is(err, appErrors.ErrBusy))
	assert.Zero(t, store.updates)
	assert.Zero(t, store.deletes)

	require.NoError(t, release(ctx))
	_, err = svc.Update(ctx, created.StudentID, models.StudentFields{Status: strPtr("Graduated")})
	require.NoError(t, err)
}

func TestStudentServiceSearch(t *testing.T) {
	svc, _ := newStudentServiceForTest(t)
	ctx := context.Background()
	for _, name := range []string{"Ali", "Bob", "Alibek"} {
		_, err := svc.Create(ctx, validInput(name))
		require.NoError(t, err)
	}

	matches, err := svc.Search(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Ali", matches[0].Name)
	assert.Equal(t, "Alibek", matches[1].Name)

	all, err := svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	spaced, err := svc.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, spaced)
}

func TestFilterByName(t *testing.T) {
	records := []models.Student{
		{StudentID: "1", Name: "Ali", Course: "bob"},
		{StudentID: "2", Name: "Bob"},
		{StudentID: "3", Name: "ALIBEK"},
	}

	assert.Equal(t, records, FilterByName(records, ""))
	assert.Equal(t, []models.Student{records[1]}, FilterByName(records, "BOB"))
	assert.Equal(t, []models.Student{records[0], records[2]}, FilterByName(records, "ali"))
	assert.Empty(t, FilterByName(records, "zed"))
}

func TestFilterByNameMatchesWhitespaceLiterally(t *testing.T) {
	records := []models.Student{
		{StudentID: "1", Name: "Bob"},
		{StudentID: "2", Name: "Ann Bob"},
	}

	assert.Equal(t, []models.Student{records[1]}, FilterByName(records, " Bob"))
	assert.Equal(t, []models.Student{records[1]}, FilterByName(records, " "))
	assert.Empty(t, FilterByName(records, "Bob "))
}
