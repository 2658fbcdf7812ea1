package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func TestWaitlistRepositoryListByClassOrdersByPositionThenArrival(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)
	tx := beginTx(t, db, mock)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "position", "date_added"}).
		AddRow("w-1", "bob", "class-1", 1, now).
		AddRow("w-2", "carol", "class-1", 2, now.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC, date_added ASC, id ASC")).
		WithArgs("class-1").
		WillReturnRows(rows)

	entries, err := repo.ListByClass(context.Background(), tx, "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryUpdatePositionsSingleStatement(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE waiting_lists AS w SET position = v.position")).
		WithArgs(pq.Array([]string{"w-3", "w-4"}), pq.Array([]int64{2, 3})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.UpdatePositions(context.Background(), tx, []models.WaitlistPosition{
		{ID: "w-3", Position: 2},
		{ID: "w-4", Position: 3},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryUpdatePositionsEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)
	tx := beginTx(t, db, mock)

	require.NoError(t, repo.UpdatePositions(context.Background(), tx, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryCountByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM waiting_lists WHERE student_id = $1")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByStudent(context.Background(), tx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
