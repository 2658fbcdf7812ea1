package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// StudentRepository reads student reference data.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by username.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, first_name, last_name, email FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockByID loads the student row with FOR UPDATE so the per-student waitlist
// cap is evaluated under a lock. Callers lock the class row first.
func (r *StudentRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	const query = `SELECT id, first_name, last_name, email FROM students WHERE id = $1 FOR UPDATE`
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}
	return &student, nil
}
