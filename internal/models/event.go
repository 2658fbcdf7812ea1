package models

import "time"

// EventType names a committed state change.
type EventType string

const (
	EventEnrolled           EventType = "ENROLLED"
	EventWaitlisted         EventType = "WAITLISTED"
	EventDropped            EventType = "DROPPED"
	EventAdminDropped       EventType = "ADMIN_DROPPED"
	EventPromoted           EventType = "PROMOTED"
	EventWithdrawn          EventType = "WITHDRAWN"
	EventClassCreated       EventType = "CLASS_CREATED"
	EventClassDeleted       EventType = "CLASS_DELETED"
	EventInstructorChanged  EventType = "INSTRUCTOR_CHANGED"
	EventEnrollmentFrozen   EventType = "ENROLLMENT_FROZEN"
	EventEnrollmentUnfrozen EventType = "ENROLLMENT_UNFROZEN"
)

// EnrollmentEvent is published after a transaction commits.
type EnrollmentEvent struct {
	Type       EventType `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	StudentID  string    `json:"student_id,omitempty"`
	ClassID    string    `json:"class_id"`
	Position   int       `json:"position,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
