package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActive returns the active row for the pair or sql.ErrNoRows.
func (r *EnrollmentRepository) FindActive(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, enrollment_date, dropped FROM enrollments
WHERE student_id = $1 AND class_id = $2 AND dropped = FALSE
ORDER BY enrollment_date ASC, id ASC LIMIT 1`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, studentID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindLatestDropped returns the most recent dropped row for the pair or sql.ErrNoRows.
func (r *EnrollmentRepository) FindLatestDropped(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, enrollment_date, dropped FROM enrollments
WHERE student_id = $1 AND class_id = $2 AND dropped = TRUE
ORDER BY enrollment_date DESC, id DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, studentID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find dropped enrollment: %w", err)
	}
	return &enrollment, nil
}

// Create persists a new active enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, enrollment_date, dropped)
VALUES (:id, :student_id, :class_id, :enrollment_date, :dropped)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// SetDropped flips a single row between active and dropped.
func (r *EnrollmentRepository) SetDropped(ctx context.Context, tx *sqlx.Tx, id string, dropped bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE enrollments SET dropped = $1 WHERE id = $2`, dropped, id)
	if err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("update enrollment state: %w", sql.ErrNoRows)
	}
	return nil
}

// DeleteByClass removes every enrollment row of a class.
func (r *EnrollmentRepository) DeleteByClass(ctx context.Context, tx *sqlx.Tx, classID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = $1`, classID); err != nil {
		return fmt.Errorf("delete class enrollments: %w", err)
	}
	return nil
}

// ListByClass returns enrollment rows with student details. dropped selects
// the roster (false) or the dropped students (true).
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string, dropped bool) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.enrollment_date, e.dropped,
	COALESCE(s.first_name, '') AS first_name, COALESCE(s.last_name, '') AS last_name, COALESCE(s.email, '') AS email
FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
WHERE e.class_id = $1 AND e.dropped = $2
ORDER BY s.last_name ASC, s.first_name ASC, e.student_id ASC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, classID, dropped); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return rows, nil
}
