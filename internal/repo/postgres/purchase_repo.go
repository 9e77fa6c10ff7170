package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCoursePurchaseNotFound = errors.New("course purchase not found")
	ErrCourseAlreadyPurchased = errors.New("course already purchased")
)

// PurchaseRepo stores course entitlements: one row per (user, course),
// enforced by a unique constraint.
type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type CoursePurchaseRecord struct {
	ID            int64
	UserID        int64
	CourseID      int64
	TransactionID int64
	CreatedAt     time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Exists(ctx context.Context, userID, courseID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return false, fmt.Errorf("invalid purchase lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM course_purchases
	WHERE user_id = $1
	  AND course_id = $2
)
`, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check course purchase: %w", err)
	}

	return exists, nil
}

func (r *PurchaseRepo) FindByUserAndCourse(ctx context.Context, userID, courseID int64) (CoursePurchaseRecord, error) {
	if r.pool == nil {
		return CoursePurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return CoursePurchaseRecord{}, fmt.Errorf("invalid purchase lookup payload")
	}

	var rec CoursePurchaseRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, course_id, transaction_id, created_at
FROM course_purchases
WHERE user_id = $1
  AND course_id = $2
LIMIT 1
`, userID, courseID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.CourseID,
		&rec.TransactionID,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CoursePurchaseRecord{}, ErrCoursePurchaseNotFound
		}
		return CoursePurchaseRecord{}, fmt.Errorf("find course purchase: %w", err)
	}

	return rec, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID int64) ([]CoursePurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, course_id, transaction_id, created_at
FROM course_purchases
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list course purchases: %w", err)
	}
	defer rows.Close()

	var records []CoursePurchaseRecord
	for rows.Next() {
		var rec CoursePurchaseRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.CourseID,
			&rec.TransactionID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan course purchase: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course purchases: %w", err)
	}

	return records, nil
}
