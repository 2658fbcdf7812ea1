package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func TestAuditRepositoryCreateAssignsIDAndTimestamp(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	actor := "registrar"
	classID := "class-1"
	entry := &models.AuditLog{
		ActorID:    &actor,
		Action:     "CLASS_CREATED",
		Resource:   "class",
		ResourceID: &classID,
		Payload:    []byte(`{"max_enrollment":30}`),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, payload, created_at)")).
		WithArgs(sqlmock.AnyArg(), "registrar", "CLASS_CREATED", "class", "class-1", []byte(`{"max_enrollment":30}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateWrapsError(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnError(errors.New("disk full"))

	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{Action: "DROPPED", Resource: "enrollment"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create audit log")
}
