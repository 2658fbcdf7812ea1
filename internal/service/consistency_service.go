package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type consistencyRepository interface {
	CounterMismatches(ctx context.Context) ([]models.ClassCounter, error)
	WaitlistEntries(ctx context.Context) ([]models.WaitlistEntry, error)
	DuplicateActiveEnrollments(ctx context.Context) ([]models.ClassStudentPair, error)
	EnrolledAndWaitlisted(ctx context.Context) ([]models.ClassStudentPair, error)
}

type violationGauge interface {
	SetViolations(counts map[models.ViolationKind]int)
}

// ConsistencyService audits the stored state against the engine invariants.
type ConsistencyService struct {
	repo    consistencyRepository
	metrics violationGauge
	logger  *zap.Logger
	now     func() time.Time
}

// NewConsistencyService constructs ConsistencyService.
func NewConsistencyService(repo consistencyRepository, metrics violationGauge, logger *zap.Logger) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsistencyService{repo: repo, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Report runs every check and returns the findings.
func (s *ConsistencyService) Report(ctx context.Context) (*dto.ConsistencyReport, error) {
	var violations []models.ConsistencyViolation

	counters, err := s.repo.CounterMismatches(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to audit class counters")
	}
	for _, c := range counters {
		violations = append(violations, models.ConsistencyViolation{
			Kind:    models.ViolationCounterMismatch,
			ClassID: c.ClassID,
			Detail:  fmt.Sprintf("current_enrollment=%d active_rows=%d", c.CurrentEnrollment, c.ActiveRows),
		})
	}

	entries, err := s.repo.WaitlistEntries(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to audit waitlist positions")
	}
	violations = append(violations, positionViolations(entries)...)

	duplicates, err := s.repo.DuplicateActiveEnrollments(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to audit duplicate enrollments")
	}
	for _, d := range duplicates {
		violations = append(violations, models.ConsistencyViolation{
			Kind:      models.ViolationDuplicateActive,
			ClassID:   d.ClassID,
			StudentID: d.StudentID,
			Detail:    fmt.Sprintf("%d active rows", d.Count),
		})
	}

	both, err := s.repo.EnrolledAndWaitlisted(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to audit enrollment exclusivity")
	}
	for _, b := range both {
		violations = append(violations, models.ConsistencyViolation{
			Kind:      models.ViolationEnrolledAndWaiting,
			ClassID:   b.ClassID,
			StudentID: b.StudentID,
			Detail:    "active enrollment and waitlist entry",
		})
	}

	if violations == nil {
		violations = []models.ConsistencyViolation{}
	}
	if s.metrics != nil {
		counts := make(map[models.ViolationKind]int)
		for _, v := range violations {
			counts[v.Kind]++
		}
		s.metrics.SetViolations(counts)
	}
	return &dto.ConsistencyReport{CheckedAt: s.now(), Healthy: len(violations) == 0, Violations: violations}, nil
}

// Run is the scheduled entry point; it only logs.
func (s *ConsistencyService) Run(ctx context.Context) {
	report, err := s.Report(ctx)
	if err != nil {
		s.logger.Error("consistency audit failed", zap.Error(err))
		return
	}
	if report.Healthy {
		s.logger.Info("consistency audit passed")
		return
	}
	for _, v := range report.Violations {
		s.logger.Warn("consistency violation",
			zap.String("kind", string(v.Kind)),
			zap.String("class_id", v.ClassID),
			zap.String("student_id", v.StudentID),
			zap.String("detail", v.Detail))
	}
}

// positionViolations expects entries grouped by class in position order and
// reports every class whose positions are not exactly 1..N.
func positionViolations(entries []models.WaitlistEntry) []models.ConsistencyViolation {
	var violations []models.ConsistencyViolation
	for start := 0; start < len(entries); {
		end := start
		for end < len(entries) && entries[end].ClassID == entries[start].ClassID {
			end++
		}
		for i, e := range entries[start:end] {
			if e.Position != i+1 {
				violations = append(violations, models.ConsistencyViolation{
					Kind:      models.ViolationPositionGap,
					ClassID:   e.ClassID,
					StudentID: e.StudentID,
					Detail:    fmt.Sprintf("position %d expected %d", e.Position, i+1),
				})
				break
			}
		}
		start = end
	}
	return violations
}
