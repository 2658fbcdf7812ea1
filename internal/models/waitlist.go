package models

import "time"

// WaitlistEntry is a student's place in a class waitlist. Positions are dense
// and 1-based within a class.
type WaitlistEntry struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Position  int       `db:"position" json:"position"`
	DateAdded time.Time `db:"date_added" json:"date_added"`
}

// WaitlistEntryDetail adds student and class names to an entry.
type WaitlistEntryDetail struct {
	WaitlistEntry
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	ClassName string `db:"class_name" json:"class_name"`
}

// WaitlistPosition is a single renumbering instruction.
type WaitlistPosition struct {
	ID       string
	Position int
}
