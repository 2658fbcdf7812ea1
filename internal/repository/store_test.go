package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestStoreWithTxCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE classes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE classes SET current_enrollment = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithTxMapsConstraintViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO enrollments (id) VALUES ('e-1')")
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "duplicate key value")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithTxRollsBackOnPanic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = store.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
