package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type eventRecorder interface {
	RecordEvent(eventType models.EventType)
}

// EventService fans committed state changes out to the audit trail, metrics
// and the class listing cache. It is only called after a transaction commits,
// so every failure here is logged and never surfaced to the caller.
type EventService struct {
	queue   jobEnqueuer
	audits  auditWriter
	cache   cacheInvalidator
	metrics eventRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventService constructs EventService.
func NewEventService(audits auditWriter, cache cacheInvalidator, metrics eventRecorder, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		audits:  audits,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue routes audit persistence through the worker queue. Without a
// queue, events are persisted inline.
func (s *EventService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Publish records the events of one committed transaction.
func (s *EventService) Publish(ctx context.Context, events ...models.EnrollmentEvent) {
	if len(events) == 0 {
		return
	}

	invalidate := false
	reqID := requestid.FromContext(ctx)
	for _, event := range events {
		if event.OccurredAt.IsZero() {
			event.OccurredAt = s.now()
		}
		if event.RequestID == "" {
			event.RequestID = reqID
		}
		if s.metrics != nil {
			s.metrics.RecordEvent(event.Type)
		}
		if changesListing(event.Type) {
			invalidate = true
		}
		s.dispatch(ctx, event)
	}

	if invalidate && s.cache != nil {
		if err := s.cache.Invalidate(ctx, ClassListingPattern); err != nil {
			s.logger.Warn("class cache invalidation failed", zap.Error(err))
		}
	}
}

// Handle is the worker queue handler.
func (s *EventService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.EnrollmentEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", job.Payload)
	}
	return s.persist(ctx, event)
}

func (s *EventService) dispatch(ctx context.Context, event models.EnrollmentEvent) {
	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: string(event.Type), Payload: event}
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("event queue unavailable, persisting inline", zap.String("type", string(event.Type)), zap.Error(err))
	}
	if err := s.persist(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("event persistence failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (s *EventService) persist(ctx context.Context, event models.EnrollmentEvent) error {
	if s.audits == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	classID := event.ClassID
	log := &models.AuditLog{
		Action:     string(event.Type),
		Resource:   "class",
		ResourceID: &classID,
		Payload:    payload,
		CreatedAt:  event.OccurredAt,
	}
	if event.ActorID != "" {
		actor := event.ActorID
		log.ActorID = &actor
	}
	return s.audits.CreateAuditLog(ctx, log)
}

// changesListing reports whether the event can alter the available class listing.
func changesListing(eventType models.EventType) bool {
	switch eventType {
	case models.EventWaitlisted, models.EventWithdrawn:
		return false
	default:
		return true
	}
}
