package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// WaitlistRepository persists waiting list entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// ListByClass returns the class waitlist in promotion order.
func (r *WaitlistRepository) ListByClass(ctx context.Context, tx *sqlx.Tx, classID string) ([]models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, date_added FROM waiting_lists
WHERE class_id = $1 ORDER BY position ASC, date_added ASC, id ASC`
	var entries []models.WaitlistEntry
	if err := tx.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list class waitlist: %w", err)
	}
	return entries, nil
}

// FindByStudentAndClass returns the pair's entry or sql.ErrNoRows.
func (r *WaitlistRepository) FindByStudentAndClass(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, date_added FROM waiting_lists
WHERE student_id = $1 AND class_id = $2 LIMIT 1`
	var entry models.WaitlistEntry
	if err := tx.GetContext(ctx, &entry, query, studentID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find waitlist entry: %w", err)
	}
	return &entry, nil
}

// CountByStudent returns how many waitlists the student currently holds.
func (r *WaitlistRepository) CountByStudent(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error) {
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM waiting_lists WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count student waitlists: %w", err)
	}
	return count, nil
}

// Create appends an entry.
func (r *WaitlistRepository) Create(ctx context.Context, tx *sqlx.Tx, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.DateAdded.IsZero() {
		entry.DateAdded = time.Now().UTC()
	}
	const query = `INSERT INTO waiting_lists (id, student_id, class_id, position, date_added)
VALUES (:id, :student_id, :class_id, :position, :date_added)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (r *WaitlistRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM waiting_lists WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return nil
}

// DeleteByClass removes every entry of a class.
func (r *WaitlistRepository) DeleteByClass(ctx context.Context, tx *sqlx.Tx, classID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM waiting_lists WHERE class_id = $1`, classID); err != nil {
		return fmt.Errorf("delete class waitlist: %w", err)
	}
	return nil
}

// UpdatePositions renumbers entries with a single statement.
func (r *WaitlistRepository) UpdatePositions(ctx context.Context, tx *sqlx.Tx, updates []models.WaitlistPosition) error {
	if len(updates) == 0 {
		return nil
	}
	ids := make([]string, len(updates))
	positions := make([]int64, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
		positions[i] = int64(u.Position)
	}
	const query = `UPDATE waiting_lists AS w SET position = v.position
FROM (SELECT unnest($1::text[]) AS id, unnest($2::int[]) AS position) v
WHERE w.id = v.id`
	if _, err := tx.ExecContext(ctx, query, pq.Array(ids), pq.Array(positions)); err != nil {
		return fmt.Errorf("renumber waitlist: %w", err)
	}
	return nil
}

// ListDetailByClass returns a class waitlist with student names.
func (r *WaitlistRepository) ListDetailByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT w.id, w.student_id, w.class_id, w.position, w.date_added,
	COALESCE(s.first_name, '') AS first_name, COALESCE(s.last_name, '') AS last_name, c.class_name
FROM waiting_lists w
JOIN classes c ON c.id = w.class_id
LEFT JOIN students s ON s.id = w.student_id
WHERE w.class_id = $1
ORDER BY w.position ASC, w.date_added ASC, w.id ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list class waitlist detail: %w", err)
	}
	return entries, nil
}

// ListDetailByStudent returns the student's waitlist entries with class names.
func (r *WaitlistRepository) ListDetailByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT w.id, w.student_id, w.class_id, w.position, w.date_added,
	COALESCE(s.first_name, '') AS first_name, COALESCE(s.last_name, '') AS last_name, c.class_name
FROM waiting_lists w
JOIN classes c ON c.id = w.class_id
LEFT JOIN students s ON s.id = w.student_id
WHERE w.student_id = $1
ORDER BY w.date_added ASC, w.id ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list student waitlists: %w", err)
	}
	return entries, nil
}
