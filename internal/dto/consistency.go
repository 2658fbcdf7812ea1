package dto

import (
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// ConsistencyReport aggregates the invariant audit findings.
type ConsistencyReport struct {
	CheckedAt  time.Time                     `json:"checkedAt"`
	Healthy    bool                          `json:"healthy"`
	Violations []models.ConsistencyViolation `json:"violations"`
}
