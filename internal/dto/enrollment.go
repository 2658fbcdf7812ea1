package dto

// Enrollment outcome statuses.
const (
	EnrollmentStatusEnrolled   = "ENROLLED"
	EnrollmentStatusWaitlisted = "WAITLISTED"
)

// EnrollRequest enrolls the caller in a class.
type EnrollRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

// RegistrarEnrollRequest enrolls a named student on their behalf.
type RegistrarEnrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
}

// EnrollmentResult distinguishes a direct enrollment from a waitlist placement.
type EnrollmentResult struct {
	Status           string `json:"status"`
	StudentID        string `json:"studentId"`
	ClassID          string `json:"classId"`
	EnrollmentID     string `json:"enrollmentId,omitempty"`
	WaitlistPosition int    `json:"waitlistPosition,omitempty"`
	Reused           bool   `json:"reused,omitempty"`
}

// Waitlisted reports whether the request ended on the waitlist.
func (r EnrollmentResult) Waitlisted() bool {
	return r.Status == EnrollmentStatusWaitlisted
}

// DropResult reports a completed drop and any promotion it triggered.
type DropResult struct {
	StudentID string     `json:"studentId"`
	ClassID   string     `json:"classId"`
	Promotion *Promotion `json:"promotion,omitempty"`
}

// Promotion describes a waitlist head moved into the class.
type Promotion struct {
	StudentID    string `json:"studentId"`
	ClassID      string `json:"classId"`
	EnrollmentID string `json:"enrollmentId"`
	Reused       bool   `json:"reused"`
}
