package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

type instructorReader interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Instructor, error)
}

type waitlistManager interface {
	JoinTx(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (int, error)
	RemoveTx(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error)
}

type promotionCoordinator interface {
	AfterDropTx(ctx context.Context, tx *sqlx.Tx, class *models.Class) (*dto.Promotion, error)
}

type rejectionRecorder interface {
	RecordRejection(code string)
}

// EnrollmentService enrolls and drops students while keeping the class
// counter equal to the number of active enrollment rows.
type EnrollmentService struct {
	store       txRunner
	classes     classLocker
	students    studentLocker
	instructors instructorReader
	enrollments enrollmentRepository
	waitlists   waitlistManager
	promotions  promotionCoordinator
	events      eventPublisher
	metrics     rejectionRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// EnrollmentDeps groups the collaborators of EnrollmentService.
type EnrollmentDeps struct {
	Store       txRunner
	Classes     classLocker
	Students    studentLocker
	Instructors instructorReader
	Enrollments enrollmentRepository
	Waitlists   waitlistManager
	Promotions  promotionCoordinator
	Events      eventPublisher
	Metrics     rejectionRecorder
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentDeps, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		store:       deps.Store,
		classes:     deps.Classes,
		students:    deps.Students,
		instructors: deps.Instructors,
		enrollments: deps.Enrollments,
		waitlists:   deps.Waitlists,
		promotions:  deps.Promotions,
		events:      deps.Events,
		metrics:     deps.Metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll places the student in the class, or on its waitlist when the class is full.
// A waitlist placement is a successful result with status WAITLISTED.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req dto.RegistrarEnrollRequest) (*dto.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var (
		result *dto.EnrollmentResult
		events []models.EnrollmentEvent
	)
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, events = nil, nil

		class, err := s.classes.LockByID(ctx, tx, req.ClassID)
		if err != nil {
			return classLookupError(err)
		}
		if _, err := s.students.LockByID(ctx, tx, req.StudentID); err != nil {
			return studentLookupError(err)
		}
		if class.AutomaticEnrollmentFrozen {
			return appErrors.ErrEnrollmentClosed
		}
		if _, err := s.enrollments.FindActive(ctx, tx, req.StudentID, class.ID); err == nil {
			return appErrors.ErrAlreadyEnrolled
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to check enrollment")
		}

		if !class.HasOpenSeat() {
			position, err := s.waitlists.JoinTx(ctx, tx, req.StudentID, class.ID)
			if err != nil {
				return err
			}
			result = &dto.EnrollmentResult{
				Status:           dto.EnrollmentStatusWaitlisted,
				StudentID:        req.StudentID,
				ClassID:          class.ID,
				WaitlistPosition: position,
			}
			events = append(events, models.EnrollmentEvent{
				Type: models.EventWaitlisted, ActorID: actorID, StudentID: req.StudentID, ClassID: class.ID, Position: position,
			})
			return nil
		}

		// A seat is free: a waitlist entry for the same class must not outlive the enrollment.
		if _, err := s.waitlists.RemoveTx(ctx, tx, req.StudentID, class.ID); err != nil && !errors.Is(err, appErrors.ErrNotOnWaitlist) {
			return err
		}
		enrollmentID, reused, err := activateEnrollment(ctx, tx, s.enrollments, req.StudentID, class.ID)
		if err != nil {
			return err
		}
		if err := s.classes.SetCurrentEnrollment(ctx, tx, class.ID, class.CurrentEnrollment+1); err != nil {
			return appErrors.Internal(err, "failed to update class enrollment")
		}

		result = &dto.EnrollmentResult{
			Status:       dto.EnrollmentStatusEnrolled,
			StudentID:    req.StudentID,
			ClassID:      class.ID,
			EnrollmentID: enrollmentID,
			Reused:       reused,
		}
		events = append(events, models.EnrollmentEvent{
			Type: models.EventEnrolled, ActorID: actorID, StudentID: req.StudentID, ClassID: class.ID,
		})
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	logger.WithRequest(ctx, s.logger).Info("enrollment processed",
		zap.String("status", result.Status),
		zap.String("student_id", result.StudentID),
		zap.String("class_id", result.ClassID),
		zap.Int("waitlist_position", result.WaitlistPosition))
	s.publish(ctx, events)
	return result, nil
}

// Drop releases the student's seat and promotes the waitlist head when the class allows it.
func (s *EnrollmentService) Drop(ctx context.Context, studentID, classID string) (*dto.DropResult, error) {
	return s.drop(ctx, studentID, studentID, classID, "")
}

// DropByInstructor is the administrative drop. The acting instructor must own the class.
func (s *EnrollmentService) DropByInstructor(ctx context.Context, instructorID, studentID, classID string) (*dto.DropResult, error) {
	if instructorID == "" {
		return nil, appErrors.ErrInstructorNotFound
	}
	return s.drop(ctx, instructorID, studentID, classID, instructorID)
}

func (s *EnrollmentService) drop(ctx context.Context, actorID, studentID, classID, instructorID string) (*dto.DropResult, error) {
	var (
		result *dto.DropResult
		events []models.EnrollmentEvent
	)
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, events = nil, nil

		class, err := s.classes.LockByID(ctx, tx, classID)
		if err != nil {
			return classLookupError(err)
		}
		if instructorID != "" {
			if _, err := s.instructors.FindByIDTx(ctx, tx, instructorID); err != nil {
				return instructorLookupError(err)
			}
			if class.InstructorID != instructorID {
				return appErrors.ErrNotAuthorized
			}
		}
		if _, err := s.students.LockByID(ctx, tx, studentID); err != nil {
			return studentLookupError(err)
		}
		active, err := s.enrollments.FindActive(ctx, tx, studentID, class.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotEnrolled
			}
			return appErrors.Internal(err, "failed to load enrollment")
		}

		if err := s.enrollments.SetDropped(ctx, tx, active.ID, true); err != nil {
			return appErrors.Internal(err, "failed to drop enrollment")
		}
		if class.CurrentEnrollment > 0 {
			class.CurrentEnrollment--
		}
		if err := s.classes.SetCurrentEnrollment(ctx, tx, class.ID, class.CurrentEnrollment); err != nil {
			return appErrors.Internal(err, "failed to update class enrollment")
		}

		eventType := models.EventDropped
		if instructorID != "" {
			eventType = models.EventAdminDropped
		}
		events = append(events, models.EnrollmentEvent{Type: eventType, ActorID: actorID, StudentID: studentID, ClassID: class.ID})

		promotion, err := s.promotions.AfterDropTx(ctx, tx, class)
		if err != nil {
			return err
		}
		if promotion != nil {
			events = append(events, models.EnrollmentEvent{
				Type: models.EventPromoted, ActorID: actorID, StudentID: promotion.StudentID, ClassID: class.ID,
			})
		}
		result = &dto.DropResult{StudentID: studentID, ClassID: class.ID, Promotion: promotion}
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	log := logger.WithRequest(ctx, s.logger)
	log.Info("enrollment dropped",
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.String("actor_id", actorID))
	if result.Promotion != nil {
		log.Info("waitlist head promoted",
			zap.String("student_id", result.Promotion.StudentID),
			zap.String("class_id", classID),
			zap.Bool("reused_enrollment", result.Promotion.Reused))
	}
	s.publish(ctx, events)
	return result, nil
}

func (s *EnrollmentService) publish(ctx context.Context, events []models.EnrollmentEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	s.events.Publish(ctx, events...)
}

func (s *EnrollmentService) reject(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRejection(appErrors.FromError(err).Code)
}

func studentLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrStudentNotFound
	}
	return appErrors.Internal(err, "failed to load student")
}

func instructorLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrInstructorNotFound
	}
	return appErrors.Internal(err, "failed to load instructor")
}
