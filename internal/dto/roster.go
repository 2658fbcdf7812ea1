package dto

import "time"

// RosterEntry is one student in a class roster or dropped list.
type RosterEntry struct {
	StudentID      string    `json:"studentId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	EnrollmentDate time.Time `json:"enrollmentDate"`
}

// Roster lists the active students of a class.
type Roster struct {
	ClassID   string        `json:"classId"`
	ClassName string        `json:"className"`
	Students  []RosterEntry `json:"students"`
}

// Supported roster export formats.
const (
	RosterFormatJSON = "json"
	RosterFormatCSV  = "csv"
	RosterFormatPDF  = "pdf"
)

// RosterExport is a rendered roster document.
type RosterExport struct {
	FileName    string
	ContentType string
	Content     []byte
}
