package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func newSQLiteRepo(t *testing.T) *StudentRepository {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	repo := NewStudentRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestStudentRepositoryListPostgresQuery(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"student_id", "name", "course", "batch", "status", "created_at", "updated_at"}).
		AddRow("1", "Ali", "CS101", "2024A", "Enrolled", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, name, course, batch, status, created_at, updated_at FROM students ORDER BY created_at ASC, student_id ASC")).
		WillReturnRows(rows)

	students, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ali", students[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAddPostgresPlaceholders(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (student_id,name,course,batch,status,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)")).
		WithArgs("id-1", "Jane", "CS101", "2024A", "Completed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Add(context.Background(), &models.Student{StudentID: "id-1", Name: "Jane", Course: "CS101", Batch: "2024A", Status: "Completed"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissingPostgres(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE student_id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySQLiteLifecycle(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	first := &models.Student{StudentID: "a", Name: "Ali", Course: "CS101", Batch: "1", Status: "Enrolled"}
	second := &models.Student{StudentID: "b", Name: "Bob", Course: "CS102", Batch: "1", Status: "Enrolled"}
	require.NoError(t, repo.Add(ctx, first))
	require.NoError(t, repo.Add(ctx, second))

	assert.ErrorIs(t, repo.Add(ctx, &models.Student{StudentID: "a", Name: "Dup", Course: "C", Batch: "B", Status: "S"}), ErrDuplicate)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].StudentID)
	assert.Equal(t, "b", list[1].StudentID)

	first.Status = "Completed"
	require.NoError(t, repo.Update(ctx, first))
	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Completed", got.Status)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, first), ErrNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
