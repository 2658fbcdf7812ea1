package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// integrityViolationClass is the SQLSTATE class of constraint failures.
const integrityViolationClass = "23"

// Store is the transactional entry point shared by the enrollment services.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs the store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the pool for read-only repositories.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a single transaction. Any error or panic rolls the
// whole unit back; constraint failures surface as CONSTRAINT_VIOLATION.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return translateError(err)
	}
	if err = tx.Commit(); err != nil {
		return translateError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == integrityViolationClass {
		return appErrors.Wrap(err, appErrors.ErrConstraintViolation.Code, appErrors.ErrConstraintViolation.Status,
			fmt.Sprintf("write rejected by the store: %s", pqErr.Message))
	}
	return err
}
