package dto

import "github.com/noah-isme/course-enrollment-api/internal/models"

// CreateClassRequest defines the registrar payload for a new section.
type CreateClassRequest struct {
	Department    string `json:"department" validate:"required"`
	CourseCode    string `json:"courseCode" validate:"required"`
	SectionNumber int    `json:"sectionNumber" validate:"required,gt=0"`
	ClassName     string `json:"className" validate:"required"`
	InstructorID  string `json:"instructorId" validate:"required"`
	MaxEnrollment int    `json:"maxEnrollment" validate:"omitempty,gt=0"`
}

// ChangeInstructorRequest reassigns a class.
type ChangeInstructorRequest struct {
	InstructorID string `json:"instructorId" validate:"required"`
}

// AvailableClass is a class row shown to students.
type AvailableClass struct {
	ID                string `db:"id" json:"id"`
	Department        string `db:"department" json:"department"`
	CourseCode        string `db:"course_code" json:"courseCode"`
	SectionNumber     int    `db:"section_number" json:"sectionNumber"`
	ClassName         string `db:"class_name" json:"className"`
	InstructorName    string `db:"instructor_name" json:"instructorName"`
	CurrentEnrollment int    `db:"current_enrollment" json:"currentEnrollment"`
	MaxEnrollment     int    `db:"max_enrollment" json:"maxEnrollment"`
}

// InstructorClass summarises an owned class.
type InstructorClass struct {
	ID                string `db:"id" json:"id"`
	ClassName         string `db:"class_name" json:"className"`
	SectionNumber     int    `db:"section_number" json:"sectionNumber"`
	CurrentEnrollment int    `db:"current_enrollment" json:"currentEnrollment"`
	MaxEnrollment     int    `db:"max_enrollment" json:"maxEnrollment"`
	Frozen            bool   `db:"automatic_enrollment_frozen" json:"frozen"`
}

// ClassListing is one page of the available class listing.
type ClassListing struct {
	Items      []AvailableClass  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}
