package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// InstructorRepository reads instructor reference data.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// FindByID returns an instructor by username.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	const query = `SELECT id, first_name, last_name, email FROM instructors WHERE id = $1`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindByIDTx returns an instructor inside a running transaction.
func (r *InstructorRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Instructor, error) {
	const query = `SELECT id, first_name, last_name, email FROM instructors WHERE id = $1`
	var instructor models.Instructor
	if err := tx.GetContext(ctx, &instructor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor: %w", err)
	}
	return &instructor, nil
}
