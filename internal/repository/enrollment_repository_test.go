package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func beginTx(t *testing.T, db *sqlx.DB, mock sqlmock.Sqlmock) *sqlx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Beginx()
	require.NoError(t, err)
	return tx
}

func TestEnrollmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	tx := beginTx(t, db, mock)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "enrollment_date", "dropped"}).
		AddRow("enr-1", "alice", "class-1", time.Now(), false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments\nWHERE student_id = $1 AND class_id = $2 AND dropped = FALSE")).
		WithArgs("alice", "class-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindActive(context.Background(), tx, "alice", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", enrollment.ID)
	assert.True(t, enrollment.Active())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindLatestDroppedNone(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectQuery(regexp.QuoteMeta("dropped = TRUE")).
		WithArgs("alice", "class-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLatestDropped(context.Background(), tx, "alice", "class-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments (id, student_id, class_id, enrollment_date, dropped)")).
		WithArgs(sqlmock.AnyArg(), "alice", "class-1", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "alice", ClassID: "class-1"}
	require.NoError(t, repo.Create(context.Background(), tx, enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetDroppedRequiresRow(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET dropped = $1 WHERE id = $2")).
		WithArgs(true, "enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET dropped = $1 WHERE id = $2")).
		WithArgs(false, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetDropped(context.Background(), tx, "enr-1", true))
	err := repo.SetDropped(context.Background(), tx, "missing", false)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "enrollment_date", "dropped", "first_name", "last_name", "email"}).
		AddRow("enr-1", "alice", "class-1", time.Now(), true, "Alice", "Smith", "alice@example.edu")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.dropped = $2")).
		WithArgs("class-1", true).
		WillReturnRows(rows)

	dropped, err := repo.ListByClass(context.Background(), "class-1", true)
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, "Alice", dropped[0].FirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}
