package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const classColumns = `id, department, course_code, section_number, class_name, instructor_id, current_enrollment, max_enrollment, automatic_enrollment_frozen, created_at, updated_at`

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListAvailable returns open, unfrozen classes with their instructor name.
func (r *ClassRepository) ListAvailable(ctx context.Context, filter models.ClassFilter) ([]dto.AvailableClass, int, error) {
	base := `FROM classes c
LEFT JOIN instructors i ON i.id = c.instructor_id
WHERE c.current_enrollment < c.max_enrollment AND c.automatic_enrollment_frozen = FALSE`
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		base += fmt.Sprintf(" AND c.department = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(c.class_name) LIKE $%d OR LOWER(c.course_code) LIKE $%d)", len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.department, c.course_code, c.section_number, c.class_name,
	COALESCE(TRIM(i.first_name || ' ' || i.last_name), '') AS instructor_name,
	c.current_enrollment, c.max_enrollment
%s ORDER BY c.department ASC, c.course_code ASC, c.section_number ASC LIMIT %d OFFSET %d`, base, size, offset)

	var classes []dto.AvailableClass
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list available classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count available classes: %w", err)
	}
	return classes, total, nil
}

// ListByInstructor returns the classes owned by an instructor.
func (r *ClassRepository) ListByInstructor(ctx context.Context, instructorID string) ([]dto.InstructorClass, error) {
	const query = `SELECT id, class_name, section_number, current_enrollment, max_enrollment, automatic_enrollment_frozen
FROM classes WHERE instructor_id = $1 ORDER BY class_name ASC, section_number ASC`
	var classes []dto.InstructorClass
	if err := r.db.SelectContext(ctx, &classes, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class record by ID without locking it.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// LockByID loads the class row with FOR UPDATE. Every mutating unit on a class
// takes this lock first, which serializes counter and waitlist changes per class.
func (r *ClassRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`
	var class models.Class
	if err := tx.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock class: %w", err)
	}
	return &class, nil
}

// SetCurrentEnrollment writes the enrollment counter of a locked class.
func (r *ClassRepository) SetCurrentEnrollment(ctx context.Context, tx *sqlx.Tx, id string, value int) error {
	const query = `UPDATE classes SET current_enrollment = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, value, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update class enrollment: %w", err)
	}
	return nil
}

// SetFrozen toggles automatic enrollment.
func (r *ClassRepository) SetFrozen(ctx context.Context, tx *sqlx.Tx, id string, frozen bool) error {
	const query = `UPDATE classes SET automatic_enrollment_frozen = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, frozen, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update class freeze: %w", err)
	}
	return nil
}

// SetInstructor reassigns the class owner.
func (r *ClassRepository) SetInstructor(ctx context.Context, tx *sqlx.Tx, id, instructorID string) error {
	const query = `UPDATE classes SET instructor_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, instructorID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update class instructor: %w", err)
	}
	return nil
}

// ExistsByNameAndSection checks for a duplicate class name and section pair.
func (r *ClassRepository) ExistsByNameAndSection(ctx context.Context, tx *sqlx.Tx, className string, section int) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE class_name = $1 AND section_number = $2 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, className, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class section: %w", err)
	}
	return true, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, tx *sqlx.Tx, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (` + classColumns + `) VALUES (:id, :department, :course_code, :section_number, :class_name, :instructor_id, :current_enrollment, :max_enrollment, :automatic_enrollment_frozen, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Delete removes a class record.
func (r *ClassRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
