package models

import "time"

// Student is a single roster record.
type Student struct {
	StudentID string    `db:"student_id" json:"student_id"`
	Name      string    `db:"name" json:"name"`
	Course    string    `db:"course" json:"course"`
	Batch     string    `db:"batch" json:"batch"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SameFields reports whether two records carry the same id and editable values.
// Store-maintained timestamps are ignored.
func (s Student) SameFields(other Student) bool {
	return s.StudentID == other.StudentID &&
		s.Name == other.Name &&
		s.Course == other.Course &&
		s.Batch == other.Batch &&
		s.Status == other.Status
}

// StudentFields is a partial set of editable values; nil means "not supplied".
type StudentFields struct {
	Name   *string `json:"name,omitempty"`
	Course *string `json:"course,omitempty"`
	Batch  *string `json:"batch,omitempty"`
	Status *string `json:"status,omitempty"`
}

// ApplyTo overlays the supplied values onto a copy of s.
func (f StudentFields) ApplyTo(s Student) Student {
	if f.Name != nil {
		s.Name = *f.Name
	}
	if f.Course != nil {
		s.Course = *f.Course
	}
	if f.Batch != nil {
		s.Batch = *f.Batch
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	return s
}
