package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

type classRepository interface {
	classLocker
	ExistsByNameAndSection(ctx context.Context, tx *sqlx.Tx, className string, section int) (bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, class *models.Class) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
	SetFrozen(ctx context.Context, tx *sqlx.Tx, id string, frozen bool) error
	SetInstructor(ctx context.Context, tx *sqlx.Tx, id, instructorID string) error
	ListAvailable(ctx context.Context, filter models.ClassFilter) ([]dto.AvailableClass, int, error)
}

type classChildren interface {
	DeleteByClass(ctx context.Context, tx *sqlx.Tx, classID string) error
}

type classFiller interface {
	FillTx(ctx context.Context, tx *sqlx.Tx, class *models.Class) ([]dto.Promotion, error)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ClassConfig carries registrar defaults.
type ClassConfig struct {
	DefaultMaxEnrollment int
	ListingTTL           time.Duration
}

// ClassDeps groups the collaborators of ClassService.
type ClassDeps struct {
	Store       txRunner
	Classes     classRepository
	Instructors instructorReader
	Enrollments classChildren
	Waitlists   classChildren
	Promotions  classFiller
	Cache       listingCache
	Events      eventPublisher
}

// ClassService implements registrar class management and the student class listing.
type ClassService struct {
	deps      ClassDeps
	cfg       ClassConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(deps ClassDeps, cfg ClassConfig, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if cfg.DefaultMaxEnrollment <= 0 {
		cfg.DefaultMaxEnrollment = 40
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{deps: deps, cfg: cfg, validator: validate, logger: logger}
}

// ListAvailable returns open, unfrozen classes. The bool reports whether the
// page was served from cache.
func (s *ClassService) ListAvailable(ctx context.Context, filter models.ClassFilter) (*dto.ClassListing, bool, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	key := ClassListingKey(filter.Department, filter.Search, filter.Page, filter.PageSize)
	if s.deps.Cache != nil {
		var cached dto.ClassListing
		if hit, err := s.deps.Cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	items, total, err := s.deps.Classes.ListAvailable(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list classes")
	}
	if items == nil {
		items = []dto.AvailableClass{}
	}
	listing := &dto.ClassListing{
		Items:      items,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	if s.deps.Cache != nil {
		_ = s.deps.Cache.Set(ctx, key, listing, s.cfg.ListingTTL)
	}
	return listing, false, nil
}

// Create registers a new class section.
func (s *ClassService) Create(ctx context.Context, actorID string, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	maxEnrollment := req.MaxEnrollment
	if maxEnrollment <= 0 {
		maxEnrollment = s.cfg.DefaultMaxEnrollment
	}

	var class *models.Class
	err := s.deps.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Instructors.FindByIDTx(ctx, tx, req.InstructorID); err != nil {
			return instructorLookupError(err)
		}
		exists, err := s.deps.Classes.ExistsByNameAndSection(ctx, tx, req.ClassName, req.SectionNumber)
		if err != nil {
			return appErrors.Internal(err, "failed to check class")
		}
		if exists {
			return appErrors.ErrAlreadyExists
		}
		class = &models.Class{
			Department:    req.Department,
			CourseCode:    req.CourseCode,
			SectionNumber: req.SectionNumber,
			ClassName:     req.ClassName,
			InstructorID:  req.InstructorID,
			MaxEnrollment: maxEnrollment,
		}
		if err := s.deps.Classes.Create(ctx, tx, class); err != nil {
			return appErrors.Internal(err, "failed to create class")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRequest(ctx, s.logger).Info("class created", zap.String("class_id", class.ID), zap.String("actor_id", actorID))
	s.publish(ctx, models.EnrollmentEvent{Type: models.EventClassCreated, ActorID: actorID, ClassID: class.ID})
	return class, nil
}

// Delete removes a class together with its waitlist and enrollments.
func (s *ClassService) Delete(ctx context.Context, actorID, classID string) error {
	err := s.deps.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deps.Classes.LockByID(ctx, tx, classID); err != nil {
			return classLookupError(err)
		}
		if err := s.deps.Waitlists.DeleteByClass(ctx, tx, classID); err != nil {
			return appErrors.Internal(err, "failed to delete class waitlist")
		}
		if err := s.deps.Enrollments.DeleteByClass(ctx, tx, classID); err != nil {
			return appErrors.Internal(err, "failed to delete class enrollments")
		}
		if err := s.deps.Classes.Delete(ctx, tx, classID); err != nil {
			return appErrors.Internal(err, "failed to delete class")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithRequest(ctx, s.logger).Info("class deleted", zap.String("class_id", classID), zap.String("actor_id", actorID))
	s.publish(ctx, models.EnrollmentEvent{Type: models.EventClassDeleted, ActorID: actorID, ClassID: classID})
	return nil
}

// ChangeInstructor reassigns the class to another instructor.
func (s *ClassService) ChangeInstructor(ctx context.Context, actorID, classID string, req dto.ChangeInstructorRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}

	var class *models.Class
	err := s.deps.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.deps.Classes.LockByID(ctx, tx, classID)
		if err != nil {
			return classLookupError(err)
		}
		if _, err := s.deps.Instructors.FindByIDTx(ctx, tx, req.InstructorID); err != nil {
			return instructorLookupError(err)
		}
		if err := s.deps.Classes.SetInstructor(ctx, tx, classID, req.InstructorID); err != nil {
			return appErrors.Internal(err, "failed to change instructor")
		}
		locked.InstructorID = req.InstructorID
		class = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRequest(ctx, s.logger).Info("class instructor changed",
		zap.String("class_id", classID), zap.String("instructor_id", req.InstructorID))
	s.publish(ctx, models.EnrollmentEvent{Type: models.EventInstructorChanged, ActorID: actorID, ClassID: classID})
	return class, nil
}

// Freeze disables enrollment and automatic promotion for the class.
func (s *ClassService) Freeze(ctx context.Context, actorID, classID string) (*models.Class, error) {
	var class *models.Class
	err := s.deps.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.deps.Classes.LockByID(ctx, tx, classID)
		if err != nil {
			return classLookupError(err)
		}
		if locked.AutomaticEnrollmentFrozen {
			return appErrors.Clone(appErrors.ErrConflict, "automatic enrollment is already frozen")
		}
		if err := s.deps.Classes.SetFrozen(ctx, tx, classID, true); err != nil {
			return appErrors.Internal(err, "failed to freeze class")
		}
		locked.AutomaticEnrollmentFrozen = true
		class = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRequest(ctx, s.logger).Info("class frozen", zap.String("class_id", classID))
	s.publish(ctx, models.EnrollmentEvent{Type: models.EventEnrollmentFrozen, ActorID: actorID, ClassID: classID})
	return class, nil
}

// Unfreeze re-enables enrollment and fills free seats from the waitlist in the same transaction.
func (s *ClassService) Unfreeze(ctx context.Context, actorID, classID string) (*models.Class, []dto.Promotion, error) {
	var (
		class    *models.Class
		promoted []dto.Promotion
	)
	err := s.deps.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.deps.Classes.LockByID(ctx, tx, classID)
		if err != nil {
			return classLookupError(err)
		}
		if !locked.AutomaticEnrollmentFrozen {
			return appErrors.Clone(appErrors.ErrConflict, "automatic enrollment is not frozen")
		}
		if err := s.deps.Classes.SetFrozen(ctx, tx, classID, false); err != nil {
			return appErrors.Internal(err, "failed to unfreeze class")
		}
		locked.AutomaticEnrollmentFrozen = false

		promoted, err = s.deps.Promotions.FillTx(ctx, tx, locked)
		if err != nil {
			return err
		}
		class = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithRequest(ctx, s.logger).Info("class unfrozen", zap.String("class_id", classID), zap.Int("promoted", len(promoted)))
	events := []models.EnrollmentEvent{{Type: models.EventEnrollmentUnfrozen, ActorID: actorID, ClassID: classID}}
	for _, p := range promoted {
		events = append(events, models.EnrollmentEvent{Type: models.EventPromoted, ActorID: actorID, StudentID: p.StudentID, ClassID: classID})
	}
	s.publish(ctx, events...)
	if promoted == nil {
		promoted = []dto.Promotion{}
	}
	return class, promoted, nil
}

func (s *ClassService) publish(ctx context.Context, events ...models.EnrollmentEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Publish(ctx, events...)
}
