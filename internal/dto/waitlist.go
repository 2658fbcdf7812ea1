package dto

// WaitlistPositionView shows where a student stands in one class waitlist.
type WaitlistPositionView struct {
	StudentID string `json:"studentId"`
	ClassID   string `json:"classId"`
	ClassName string `json:"className,omitempty"`
	Position  int    `json:"position"`
}

// ClassWaitlistEntry is one row of an instructor's waitlist view.
type ClassWaitlistEntry struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Position    int    `json:"position"`
}

// ClassWaitlist is the ordered waitlist of a class.
type ClassWaitlist struct {
	ClassID string               `json:"classId"`
	Total   int                  `json:"total"`
	Entries []ClassWaitlistEntry `json:"entries"`
}
