package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/lock"
)

// StudentStore is the authoritative roster contract shared by every component.
type StudentStore interface {
	List(ctx context.Context) ([]models.Student, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	Add(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// StudentInput holds the full set of editable student fields.
type StudentInput struct {
	Name   string `json:"name" validate:"notblank"`
	Course string `json:"course" validate:"notblank"`
	Batch  string `json:"batch" validate:"notblank"`
	Status string `json:"status" validate:"notblank"`
}

// Fields converts the input into a fully supplied partial.
func (in StudentInput) Fields() models.StudentFields {
	return models.StudentFields{Name: &in.Name, Course: &in.Course, Batch: &in.Batch, Status: &in.Status}
}

func inputOf(s models.Student) StudentInput {
	return StudentInput{Name: s.Name, Course: s.Course, Batch: s.Batch, Status: s.Status}
}

// StudentServiceConfig tunes the record editor.
type StudentServiceConfig struct {
	LockTTL time.Duration
	IDFunc  func() string
}

// StudentService validates and applies roster changes and serves roster reads.
type StudentService struct {
	store     StudentStore
	locker    lock.Locker
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	newID     func() string
	lockTTL   time.Duration
}

// NewStudentService constructs the student service.
func NewStudentService(store StudentStore, locker lock.Locker, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("notblank", notBlank)
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDFunc == nil {
		cfg.IDFunc = uuid.NewString
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &StudentService{
		store:     store,
		locker:    locker,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		newID:     cfg.IDFunc,
		lockTTL:   cfg.LockTTL,
	}
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// List returns every student in store order.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.store.List(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list students")
	}
	return students, nil
}

// Search returns the students whose name contains query, ignoring case.
func (s *StudentService) Search(ctx context.Context, query string) ([]models.Student, error) {
	students, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByName(students, query), nil
}

// Get loads a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load student")
	}
	return student, nil
}

// Create validates the input, assigns a fresh id and adds the record.
func (s *StudentService) Create(ctx context.Context, input StudentInput) (*models.Student, error) {
	if err := s.validate(input); err != nil {
		s.metrics.RecordMutation("create", OutcomeInvalid)
		return nil, err
	}
	student := &models.Student{
		StudentID: s.newID(),
		Name:      input.Name,
		Course:    input.Course,
		Batch:     input.Batch,
		Status:    input.Status,
	}
	if err := s.store.Add(ctx, student); err != nil {
		s.metrics.RecordMutation("create", OutcomeFailure)
		s.logger.Sugar().Errorw("failed to create student", "student_id", student.StudentID, "error", err)
		return nil, storeError(err, "failed to create student")
	}
	s.metrics.RecordMutation("create", OutcomeSuccess)
	s.logger.Sugar().Infow("student created", "student_id", student.StudentID)
	return student, nil
}

// Edit merges fields onto an already loaded record and stores the result.
func (s *StudentService) Edit(ctx context.Context, existing models.Student, fields models.StudentFields) (*models.Student, error) {
	merged := fields.ApplyTo(existing)
	if err := s.validate(inputOf(merged)); err != nil {
		s.metrics.RecordMutation("update", OutcomeInvalid)
		return nil, err
	}
	release, err := s.guard(ctx, existing.StudentID, "update")
	if err != nil {
		return nil, err
	}
	defer s.release(release, existing.StudentID)
	return s.persistUpdate(ctx, merged)
}

// Update loads the record with id, merges fields onto it and stores the result.
func (s *StudentService) Update(ctx context.Context, id string, fields models.StudentFields) (*models.Student, error) {
	if err := s.validateFields(fields); err != nil {
		s.metrics.RecordMutation("update", OutcomeInvalid)
		return nil, err
	}
	release, err := s.guard(ctx, id, "update")
	if err != nil {
		return nil, err
	}
	defer s.release(release, id)

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		s.metrics.RecordMutation("update", OutcomeFailure)
		return nil, storeError(err, "failed to load student")
	}
	merged := fields.ApplyTo(*existing)
	if err := s.validate(inputOf(merged)); err != nil {
		s.metrics.RecordMutation("update", OutcomeInvalid)
		return nil, err
	}
	return s.persistUpdate(ctx, merged)
}

// Replace overwrites every editable field of the record with id.
func (s *StudentService) Replace(ctx context.Context, id string, input StudentInput) (*models.Student, error) {
	if err := s.validate(input); err != nil {
		s.metrics.RecordMutation("update", OutcomeInvalid)
		return nil, err
	}
	return s.Update(ctx, id, input.Fields())
}

// Delete removes the record with id. Deletion is final.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	release, err := s.guard(ctx, id, "delete")
	if err != nil {
		return err
	}
	defer s.release(release, id)

	if err := s.store.Delete(ctx, id); err != nil {
		s.metrics.RecordMutation("delete", OutcomeFailure)
		s.logger.Sugar().Warnw("failed to delete student", "student_id", id, "error", err)
		return storeError(err, "failed to delete student")
	}
	s.metrics.RecordMutation("delete", OutcomeSuccess)
	s.logger.Sugar().Infow("student deleted", "student_id", id)
	return nil
}

func (s *StudentService) persistUpdate(ctx context.Context, merged models.Student) (*models.Student, error) {
	if err := s.store.Update(ctx, &merged); err != nil {
		s.metrics.RecordMutation("update", OutcomeFailure)
		s.logger.Sugar().Warnw("failed to update student", "student_id", merged.StudentID, "error", err)
		return nil, storeError(err, "failed to update student")
	}
	s.metrics.RecordMutation("update", OutcomeSuccess)
	s.logger.Sugar().Infow("student updated", "student_id", merged.StudentID)
	return &merged, nil
}

func (s *StudentService) guard(ctx context.Context, id, operation string) (lock.Release, error) {
	release, err := s.locker.TryLock(ctx, lock.StudentKey(id), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			s.metrics.RecordMutation(operation, OutcomeBusy)
			return nil, appErrors.Clone(appErrors.ErrBusy, "")
		}
		s.metrics.RecordMutation(operation, OutcomeFailure)
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to acquire student lock")
	}
	return release, nil
}

func (s *StudentService) release(release lock.Release, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		s.logger.Sugar().Warnw("failed to release student lock", "student_id", id, "error", err)
	}
}

func (s *StudentService) validate(input StudentInput) error {
	err := s.validator.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.WrapAs(appErrors.ErrValidation, err, "invalid student payload")
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, strings.ToLower(fe.Field()))
	}
	return appErrors.WrapAs(appErrors.ErrValidation, err, "required fields missing: "+strings.Join(missing, ", "))
}

// validateFields rejects supplied values that are blank. Unsupplied fields are
// checked later against the merged record.
func (s *StudentService) validateFields(fields models.StudentFields) error {
	supplied := []struct {
		name  string
		value *string
	}{
		{"name", fields.Name},
		{"course", fields.Course},
		{"batch", fields.Batch},
		{"status", fields.Status},
	}
	var blank []string
	for _, field := range supplied {
		if field.value != nil && s.validator.Var(*field.value, "notblank") != nil {
			blank = append(blank, field.name)
		}
	}
	if len(blank) == 0 {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "required fields missing: "+strings.Join(blank, ", "))
}

// FilterByName keeps the records whose name contains query, case-insensitively.
// Only the empty query keeps everything; whitespace is matched literally.
func FilterByName(records []models.Student, query string) []models.Student {
	if query == "" {
		return records
	}
	needle := strings.ToLower(query)
	out := make([]models.Student, 0, len(records))
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Name), needle) {
			out = append(out, record)
		}
	}
	return out
}

func storeError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.WrapAs(appErrors.ErrNotFound, err, "student not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.WrapAs(appErrors.ErrConflict, err, "student id already exists")
	default:
		return appErrors.WrapAs(appErrors.ErrStore, err, message)
	}
}
