package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func TestPrintReportHealthy(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printReport(&buf, &dto.ConsistencyReport{CheckedAt: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC), Healthy: true})

	assert.Contains(t, buf.String(), "2024-09-02T08:00:00Z")
	assert.Contains(t, buf.String(), "OK: no violations")
}

func TestPrintReportListsViolations(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printReport(&buf, &dto.ConsistencyReport{
		CheckedAt: time.Now(),
		Violations: []models.ConsistencyViolation{
			{Kind: models.ViolationCounterMismatch, ClassID: "class-1", Detail: "current_enrollment=3 active_rows=2"},
			{Kind: models.ViolationEnrolledAndWaiting, ClassID: "class-2", StudentID: "ana"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "COUNTER_MISMATCH")
	assert.Contains(t, out, "current_enrollment=3 active_rows=2")
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "FAIL: 2 violation(s)")
}

func TestViolationRowFillsMissingStudent(t *testing.T) {
	row := violationRow(models.ConsistencyViolation{Kind: models.ViolationPositionGap, ClassID: "class-9", Detail: "position 3 expected 2"})
	assert.Equal(t, []string{"POSITION_NOT_DENSE", "class-9", "-", "position 3 expected 2"}, row)
}
