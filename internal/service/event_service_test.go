package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

type recordingAudit struct{ logs []*models.AuditLog }

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type recordingInvalidator struct{ patterns []string }

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

type recordingEventMetrics struct{ types []models.EventType }

func (r *recordingEventMetrics) RecordEvent(eventType models.EventType) {
	r.types = append(r.types, eventType)
}

func TestPublishPersistsInlineWithoutQueue(t *testing.T) {
	audits := &recordingAudit{}
	cache := &recordingInvalidator{}
	metrics := &recordingEventMetrics{}
	svc := NewEventService(audits, cache, metrics, nil)
	ctx := requestid.WithContext(context.Background(), "req-42")

	svc.Publish(ctx,
		models.EnrollmentEvent{Type: models.EventDropped, ActorID: "alice", StudentID: "alice", ClassID: "class-1"},
		models.EnrollmentEvent{Type: models.EventPromoted, StudentID: "bob", ClassID: "class-1"},
	)

	require.Len(t, audits.logs, 2)
	first := audits.logs[0]
	assert.Equal(t, "DROPPED", first.Action)
	assert.Equal(t, "class", first.Resource)
	require.NotNil(t, first.ActorID)
	assert.Equal(t, "alice", *first.ActorID)
	assert.Nil(t, audits.logs[1].ActorID)

	var payload models.EnrollmentEvent
	require.NoError(t, json.Unmarshal(first.Payload, &payload))
	assert.Equal(t, "req-42", payload.RequestID)
	assert.False(t, payload.OccurredAt.IsZero())

	assert.Equal(t, []string{ClassListingPattern}, cache.patterns)
	assert.Equal(t, []models.EventType{models.EventDropped, models.EventPromoted}, metrics.types)
}

func TestPublishSkipsInvalidationForWaitlistOnlyEvents(t *testing.T) {
	cache := &recordingInvalidator{}
	svc := NewEventService(&recordingAudit{}, cache, nil, nil)

	svc.Publish(context.Background(),
		models.EnrollmentEvent{Type: models.EventWaitlisted, StudentID: "alice", ClassID: "class-1", Position: 3},
		models.EnrollmentEvent{Type: models.EventWithdrawn, StudentID: "bob", ClassID: "class-1"},
	)
	assert.Empty(t, cache.patterns)
}

func TestPublishRoutesThroughQueue(t *testing.T) {
	audits := &recordingAudit{}
	queue := &recordingQueue{}
	svc := NewEventService(audits, nil, nil, nil)
	svc.AttachQueue(queue)

	svc.Publish(context.Background(), models.EnrollmentEvent{Type: models.EventEnrolled, StudentID: "alice", ClassID: "class-1"})
	require.Len(t, queue.jobs, 1)
	assert.Empty(t, audits.logs)
	assert.Equal(t, "ENROLLED", queue.jobs[0].Type)

	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))
	require.Len(t, audits.logs, 1)

	err := svc.Handle(context.Background(), jobs.Job{Payload: "garbage"})
	assert.Error(t, err)
}

func TestPublishFallsBackWhenQueueRejects(t *testing.T) {
	audits := &recordingAudit{}
	svc := NewEventService(audits, nil, nil, nil)
	svc.AttachQueue(&recordingQueue{err: errors.New("queue closed")})

	svc.Publish(context.Background(), models.EnrollmentEvent{Type: models.EventClassCreated, ClassID: "class-7"})
	require.Len(t, audits.logs, 1)
	assert.Equal(t, "CLASS_CREATED", audits.logs[0].Action)
}
