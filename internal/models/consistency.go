package models

// ViolationKind classifies a broken engine invariant.
type ViolationKind string

const (
	ViolationCounterMismatch    ViolationKind = "COUNTER_MISMATCH"
	ViolationPositionGap        ViolationKind = "POSITION_NOT_DENSE"
	ViolationDuplicateActive    ViolationKind = "DUPLICATE_ACTIVE_ENROLLMENT"
	ViolationEnrolledAndWaiting ViolationKind = "ENROLLED_AND_WAITLISTED"
)

// ConsistencyViolation is one finding of the invariant audit.
type ConsistencyViolation struct {
	Kind      ViolationKind `json:"kind"`
	ClassID   string        `json:"class_id"`
	StudentID string        `json:"student_id,omitempty"`
	Detail    string        `json:"detail"`
}

// ClassCounter compares the stored counter with the active row count.
type ClassCounter struct {
	ClassID           string `db:"class_id"`
	CurrentEnrollment int    `db:"current_enrollment"`
	ActiveRows        int    `db:"active_rows"`
}

// ClassStudentPair identifies a (class, student) pair returned by audit queries.
type ClassStudentPair struct {
	ClassID   string `db:"class_id"`
	StudentID string `db:"student_id"`
	Count     int    `db:"count"`
}
