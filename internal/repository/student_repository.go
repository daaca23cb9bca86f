package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

const studentColumns = "student_id, name, course, batch, status, created_at, updated_at"

const studentSchema = `CREATE TABLE IF NOT EXISTS students (
    student_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    course TEXT NOT NULL,
    batch TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// StudentRepository manages persistence for student records in PostgreSQL or SQLite.
type StudentRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewStudentRepository constructs a StudentRepository. The placeholder style
// follows the driver bound to db.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	var format squirrel.PlaceholderFormat = squirrel.Question
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		format = squirrel.Dollar
	}
	return &StudentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(format),
	}
}

// EnsureSchema creates the students table when missing.
func (r *StudentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, studentSchema); err != nil {
		return fmt.Errorf("ensure students schema: %w", err)
	}
	return nil
}

// List returns every student in insertion order.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	query, args, err := r.sb.Select(studentColumns).
		From("students").
		OrderBy("created_at ASC", "student_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list students query: %w", err)
	}
	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Get fetches a student by id.
func (r *StudentRepository) Get(ctx context.Context, id string) (*models.Student, error) {
	query, args, err := r.sb.Select(studentColumns).
		From("students").
		Where(squirrel.Eq{"student_id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get student query: %w", err)
	}
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// Add inserts a new student record.
func (r *StudentRepository) Add(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	query, args, err := r.sb.Insert("students").
		Columns("student_id", "name", "course", "batch", "status", "created_at", "updated_at").
		Values(student.StudentID, student.Name, student.Course, student.Batch, student.Status, student.CreatedAt, student.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert student query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update replaces the editable fields of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query, args, err := r.sb.Update("students").
		Set("name", student.Name).
		Set("course", student.Course).
		Set("batch", student.Batch).
		Set("status", student.Status).
		Set("updated_at", student.UpdatedAt).
		Where(squirrel.Eq{"student_id": student.StudentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update student query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a student permanently.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	query, args, err := r.sb.Delete("students").
		Where(squirrel.Eq{"student_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete student query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
