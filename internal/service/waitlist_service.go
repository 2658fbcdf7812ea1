package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

// txRunner executes fn as one all-or-nothing unit.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type classLocker interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Class, error)
	SetCurrentEnrollment(ctx context.Context, tx *sqlx.Tx, id string, value int) error
}

type studentLocker interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
}

type waitlistRepository interface {
	ListByClass(ctx context.Context, tx *sqlx.Tx, classID string) ([]models.WaitlistEntry, error)
	FindByStudentAndClass(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error)
	CountByStudent(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error)
	Create(ctx context.Context, tx *sqlx.Tx, entry *models.WaitlistEntry) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
	UpdatePositions(ctx context.Context, tx *sqlx.Tx, updates []models.WaitlistPosition) error
	ListDetailByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error)
	ListDetailByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, events ...models.EnrollmentEvent)
}

// Hard waitlist caps. WaitlistLimits may lower them, never raise them.
const (
	MaxWaitlistSize        = 15
	MaxWaitlistsPerStudent = 3
)

// WaitlistLimits bounds waitlist admission.
type WaitlistLimits struct {
	MaxPerClass   int
	MaxPerStudent int
}

// WaitlistService keeps per-class waitlists ordered and dense.
//
// Methods suffixed with Tx run inside a caller-owned transaction and expect the
// class row to be locked already.
type WaitlistService struct {
	store     txRunner
	classes   classLocker
	waitlists waitlistRepository
	events    eventPublisher
	limits    WaitlistLimits
	logger    *zap.Logger
	now       func() time.Time
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(store txRunner, classes classLocker, waitlists waitlistRepository, events eventPublisher, limits WaitlistLimits, logger *zap.Logger) *WaitlistService {
	if limits.MaxPerClass <= 0 || limits.MaxPerClass > MaxWaitlistSize {
		limits.MaxPerClass = MaxWaitlistSize
	}
	if limits.MaxPerStudent <= 0 || limits.MaxPerStudent > MaxWaitlistsPerStudent {
		limits.MaxPerStudent = MaxWaitlistsPerStudent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		store:     store,
		classes:   classes,
		waitlists: waitlists,
		events:    events,
		limits:    limits,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// JoinTx appends the student to the class waitlist and returns the assigned position.
// The caller must hold the class and student locks.
func (s *WaitlistService) JoinTx(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (int, error) {
	if _, err := s.waitlists.FindByStudentAndClass(ctx, tx, studentID, classID); err == nil {
		return 0, appErrors.ErrAlreadyOnWaitlist
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, appErrors.Internal(err, "failed to check waitlist")
	}

	held, err := s.waitlists.CountByStudent(ctx, tx, studentID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count student waitlists")
	}
	if held >= s.limits.MaxPerStudent {
		return 0, appErrors.ErrTooManyWaitlists
	}

	entries, err := s.waitlists.ListByClass(ctx, tx, classID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to load waitlist")
	}
	if len(entries) >= s.limits.MaxPerClass {
		return 0, appErrors.ErrWaitlistFull
	}

	entry := &models.WaitlistEntry{
		StudentID: studentID,
		ClassID:   classID,
		Position:  len(entries) + 1,
		DateAdded: s.now(),
	}
	if err := s.waitlists.Create(ctx, tx, entry); err != nil {
		return 0, appErrors.Internal(err, "failed to join waitlist")
	}
	return entry.Position, nil
}

// RemoveTx deletes the pair's entry and re-compacts the rest of the class waitlist.
func (s *WaitlistService) RemoveTx(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error) {
	entry, err := s.waitlists.FindByStudentAndClass(ctx, tx, studentID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotOnWaitlist
		}
		return nil, appErrors.Internal(err, "failed to load waitlist entry")
	}
	if err := s.waitlists.Delete(ctx, tx, entry.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to remove waitlist entry")
	}

	remaining, err := s.waitlists.ListByClass(ctx, tx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waitlist")
	}
	if err := s.waitlists.UpdatePositions(ctx, tx, compactPositions(remaining)); err != nil {
		return nil, appErrors.Internal(err, "failed to renumber waitlist")
	}
	return entry, nil
}

// PeekHeadTx returns the first entry of the class waitlist or nil when it is empty.
func (s *WaitlistService) PeekHeadTx(ctx context.Context, tx *sqlx.Tx, classID string) (*models.WaitlistEntry, error) {
	entries, err := s.waitlists.ListByClass(ctx, tx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waitlist")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	head := ordered(entries)[0]
	return &head, nil
}

// PromoteHeadTx removes the head entry and returns it, or nil when the waitlist is empty.
func (s *WaitlistService) PromoteHeadTx(ctx context.Context, tx *sqlx.Tx, classID string) (*models.WaitlistEntry, error) {
	head, err := s.PeekHeadTx(ctx, tx, classID)
	if err != nil || head == nil {
		return nil, err
	}
	return s.RemoveTx(ctx, tx, head.StudentID, classID)
}

// Withdraw removes the student from a class waitlist in its own class-locked transaction.
func (s *WaitlistService) Withdraw(ctx context.Context, studentID, classID string) error {
	var removed *models.WaitlistEntry
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.classes.LockByID(ctx, tx, classID); err != nil {
			return classLookupError(err)
		}
		entry, err := s.RemoveTx(ctx, tx, studentID, classID)
		if err != nil {
			return err
		}
		removed = entry
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithRequest(ctx, s.logger).Info("waitlist withdrawn",
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.Int("position", removed.Position))
	if s.events != nil {
		s.events.Publish(ctx, models.EnrollmentEvent{
			Type:      models.EventWithdrawn,
			ActorID:   studentID,
			StudentID: studentID,
			ClassID:   classID,
			Position:  removed.Position,
		})
	}
	return nil
}

// Position returns where the student stands in the class waitlist.
func (s *WaitlistService) Position(ctx context.Context, studentID, classID string) (*dto.WaitlistPositionView, error) {
	views, err := s.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for _, view := range views {
		if view.ClassID == classID {
			v := view
			return &v, nil
		}
	}
	return nil, appErrors.ErrNotOnWaitlist
}

// ListForStudent returns every waitlist the student is on.
func (s *WaitlistService) ListForStudent(ctx context.Context, studentID string) ([]dto.WaitlistPositionView, error) {
	entries, err := s.waitlists.ListDetailByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list waitlists")
	}
	views := make([]dto.WaitlistPositionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, dto.WaitlistPositionView{
			StudentID: e.StudentID,
			ClassID:   e.ClassID,
			ClassName: e.ClassName,
			Position:  e.Position,
		})
	}
	return views, nil
}

// ListForClass returns the ordered waitlist of a class.
func (s *WaitlistService) ListForClass(ctx context.Context, classID string) (*dto.ClassWaitlist, error) {
	entries, err := s.waitlists.ListDetailByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list class waitlist")
	}
	result := &dto.ClassWaitlist{ClassID: classID, Total: len(entries), Entries: make([]dto.ClassWaitlistEntry, 0, len(entries))}
	for _, e := range entries {
		result.Entries = append(result.Entries, dto.ClassWaitlistEntry{
			StudentID:   e.StudentID,
			StudentName: models.Student{FirstName: e.FirstName, LastName: e.LastName}.FullName(),
			Position:    e.Position,
		})
	}
	return result, nil
}

// ordered sorts a copy of entries by position, then arrival, then id.
func ordered(entries []models.WaitlistEntry) []models.WaitlistEntry {
	sorted := make([]models.WaitlistEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.DateAdded.Equal(b.DateAdded) {
			return a.DateAdded.Before(b.DateAdded)
		}
		return a.ID < b.ID
	})
	return sorted
}

// compactPositions renumbers entries to 1..N and returns only the rows whose
// position changes.
func compactPositions(entries []models.WaitlistEntry) []models.WaitlistPosition {
	var updates []models.WaitlistPosition
	for i, e := range ordered(entries) {
		if want := i + 1; e.Position != want {
			updates = append(updates, models.WaitlistPosition{ID: e.ID, Position: want})
		}
	}
	return updates
}

func classLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrClassNotFound
	}
	return appErrors.Internal(err, "failed to load class")
}
