package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type enrollmentRepository interface {
	FindActive(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error)
	FindLatestDropped(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error)
	Create(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	SetDropped(ctx context.Context, tx *sqlx.Tx, id string, dropped bool) error
}

type waitlistHead interface {
	PeekHeadTx(ctx context.Context, tx *sqlx.Tx, classID string) (*models.WaitlistEntry, error)
	RemoveTx(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error)
}

// PromotionService moves waitlist heads into freed seats inside the
// transaction that freed them.
type PromotionService struct {
	classes     classLocker
	enrollments enrollmentRepository
	waitlists   waitlistHead
	logger      *zap.Logger
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(classes classLocker, enrollments enrollmentRepository, waitlists waitlistHead, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{classes: classes, enrollments: enrollments, waitlists: waitlists, logger: logger}
}

// AfterDropTx runs at the tail of a drop. class must carry the already
// decremented counter; it is updated in place when a promotion happens.
func (s *PromotionService) AfterDropTx(ctx context.Context, tx *sqlx.Tx, class *models.Class) (*dto.Promotion, error) {
	promoted, err := s.fill(ctx, tx, class, 1)
	if err != nil || len(promoted) == 0 {
		return nil, err
	}
	return &promoted[0], nil
}

// FillTx promotes heads for as long as the class has free seats, used when a
// class is unfrozen.
func (s *PromotionService) FillTx(ctx context.Context, tx *sqlx.Tx, class *models.Class) ([]dto.Promotion, error) {
	return s.fill(ctx, tx, class, 0)
}

// canPromote is the promotion guard: not frozen and a seat is free.
func canPromote(class *models.Class) bool {
	return !class.AutomaticEnrollmentFrozen && class.HasOpenSeat()
}

func (s *PromotionService) fill(ctx context.Context, tx *sqlx.Tx, class *models.Class, limit int) ([]dto.Promotion, error) {
	var promoted []dto.Promotion
	for canPromote(class) && (limit <= 0 || len(promoted) < limit) {
		head, err := s.waitlists.PeekHeadTx(ctx, tx, class.ID)
		if err != nil {
			return nil, err
		}
		if head == nil {
			break
		}

		// A head that already holds a seat only needs to leave the waitlist.
		if _, err := s.enrollments.FindActive(ctx, tx, head.StudentID, class.ID); err == nil {
			s.logger.Warn("waitlist head already enrolled, removing entry",
				zap.String("student_id", head.StudentID), zap.String("class_id", class.ID))
			if _, err := s.waitlists.RemoveTx(ctx, tx, head.StudentID, class.ID); err != nil {
				return nil, err
			}
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to check enrollment")
		}

		enrollmentID, reused, err := activateEnrollment(ctx, tx, s.enrollments, head.StudentID, class.ID)
		if err != nil {
			return nil, err
		}
		if err := s.classes.SetCurrentEnrollment(ctx, tx, class.ID, class.CurrentEnrollment+1); err != nil {
			return nil, appErrors.Internal(err, "failed to update class enrollment")
		}
		class.CurrentEnrollment++
		if _, err := s.waitlists.RemoveTx(ctx, tx, head.StudentID, class.ID); err != nil {
			return nil, err
		}

		promoted = append(promoted, dto.Promotion{
			StudentID:    head.StudentID,
			ClassID:      class.ID,
			EnrollmentID: enrollmentID,
			Reused:       reused,
		})
	}
	return promoted, nil
}

// activateEnrollment flips the pair's latest dropped row back to active, or
// inserts a fresh row when the pair has no history.
func activateEnrollment(ctx context.Context, tx *sqlx.Tx, repo enrollmentRepository, studentID, classID string) (string, bool, error) {
	dropped, err := repo.FindLatestDropped(ctx, tx, studentID, classID)
	switch {
	case err == nil:
		if err := repo.SetDropped(ctx, tx, dropped.ID, false); err != nil {
			return "", false, appErrors.Internal(err, "failed to reactivate enrollment")
		}
		return dropped.ID, true, nil
	case errors.Is(err, sql.ErrNoRows):
		enrollment := &models.Enrollment{StudentID: studentID, ClassID: classID}
		if err := repo.Create(ctx, tx, enrollment); err != nil {
			return "", false, appErrors.Internal(err, "failed to create enrollment")
		}
		return enrollment.ID, false, nil
	default:
		return "", false, appErrors.Internal(err, "failed to load enrollment history")
	}
}
