package models

import "time"

// Class represents a course section offered for enrollment.
type Class struct {
	ID                        string    `db:"id" json:"id"`
	Department                string    `db:"department" json:"department"`
	CourseCode                string    `db:"course_code" json:"course_code"`
	SectionNumber             int       `db:"section_number" json:"section_number"`
	ClassName                 string    `db:"class_name" json:"class_name"`
	InstructorID              string    `db:"instructor_id" json:"instructor_id"`
	CurrentEnrollment         int       `db:"current_enrollment" json:"current_enrollment"`
	MaxEnrollment             int       `db:"max_enrollment" json:"max_enrollment"`
	AutomaticEnrollmentFrozen bool      `db:"automatic_enrollment_frozen" json:"automatic_enrollment_frozen"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// HasOpenSeat reports whether the class can take one more active enrollment.
func (c Class) HasOpenSeat() bool {
	return c.CurrentEnrollment < c.MaxEnrollment
}

// ClassDetail extends Class with the instructor display name.
type ClassDetail struct {
	Class
	InstructorName string `db:"instructor_name" json:"instructor_name"`
}

// ClassFilter defines filter criteria for the available class listing.
type ClassFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
}
