package models

import "time"

// Enrollment captures a student's seat in a class. Dropped rows are kept and
// flipped back to active on re-enrollment.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	Dropped        bool      `db:"dropped" json:"dropped"`
}

// Active reports whether the row counts toward the class enrollment.
func (e Enrollment) Active() bool {
	return !e.Dropped
}

// EnrollmentDetail enriches Enrollment with student info for rosters.
type EnrollmentDetail struct {
	Enrollment
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
}
