package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// ConsistencyRepository runs the read-only queries behind the invariant audit.
type ConsistencyRepository struct {
	db *sqlx.DB
}

// NewConsistencyRepository constructs the repository.
func NewConsistencyRepository(db *sqlx.DB) *ConsistencyRepository {
	return &ConsistencyRepository{db: db}
}

// CounterMismatches returns classes whose counter differs from their active row count.
func (r *ConsistencyRepository) CounterMismatches(ctx context.Context) ([]models.ClassCounter, error) {
	const query = `SELECT c.id AS class_id, c.current_enrollment,
	COUNT(e.id) FILTER (WHERE e.dropped = FALSE) AS active_rows
FROM classes c
LEFT JOIN enrollments e ON e.class_id = c.id
GROUP BY c.id, c.current_enrollment
HAVING c.current_enrollment <> COUNT(e.id) FILTER (WHERE e.dropped = FALSE)
ORDER BY c.id`
	var rows []models.ClassCounter
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("audit class counters: %w", err)
	}
	return rows, nil
}

// WaitlistEntries returns every waitlist entry grouped by class in position order.
func (r *ConsistencyRepository) WaitlistEntries(ctx context.Context) ([]models.WaitlistEntry, error) {
	const query = `SELECT id, student_id, class_id, position, date_added FROM waiting_lists
ORDER BY class_id ASC, position ASC, date_added ASC, id ASC`
	var rows []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("audit waitlist positions: %w", err)
	}
	return rows, nil
}

// DuplicateActiveEnrollments returns pairs holding more than one active row.
func (r *ConsistencyRepository) DuplicateActiveEnrollments(ctx context.Context) ([]models.ClassStudentPair, error) {
	const query = `SELECT class_id, student_id, COUNT(*) AS count FROM enrollments
WHERE dropped = FALSE
GROUP BY class_id, student_id
HAVING COUNT(*) > 1
ORDER BY class_id, student_id`
	var rows []models.ClassStudentPair
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("audit duplicate enrollments: %w", err)
	}
	return rows, nil
}

// EnrolledAndWaitlisted returns pairs that are both active and on the waitlist.
func (r *ConsistencyRepository) EnrolledAndWaitlisted(ctx context.Context) ([]models.ClassStudentPair, error) {
	const query = `SELECT e.class_id, e.student_id, COUNT(*) AS count FROM enrollments e
JOIN waiting_lists w ON w.class_id = e.class_id AND w.student_id = e.student_id
WHERE e.dropped = FALSE
GROUP BY e.class_id, e.student_id
ORDER BY e.class_id, e.student_id`
	var rows []models.ClassStudentPair
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("audit enrollment exclusivity: %w", err)
	}
	return rows, nil
}
