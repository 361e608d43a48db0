package models

import "time"

// Student is the subset of the student registry the workflow reads.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	YearLevel     *string   `db:"year_level" json:"year_level,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Term identifies one semester of an academic year, e.g. "1st Semester" / "2024-2025".
type Term struct {
	Semester     string `db:"semester" json:"semester" validate:"required,max=50"`
	AcademicYear string `db:"academic_year" json:"academic_year" validate:"required,max=20"`
}

func (t Term) String() string {
	return t.Semester + " " + t.AcademicYear
}
