package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delawer33/edumaster/internal/domain/enums"
)

var ErrCourseNotFound = errors.New("course not found")

type CourseRepo struct {
	pool *pgxpool.Pool
}

type CourseRecord struct {
	ID          int64
	Title       string
	Description string
	Price       float64
	Status      enums.ObjectStatus
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateCourseParams struct {
	Title       string
	Description string
	Price       float64
	OwnerID     int64
}

type UpdateCourseParams struct {
	Title       *string
	Description *string
	Price       *float64
	Status      *enums.ObjectStatus
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) Create(ctx context.Context, p CreateCourseParams) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(p.Title) == "" || p.OwnerID <= 0 || p.Price < 0 {
		return CourseRecord{}, fmt.Errorf("invalid course create payload")
	}

	rec, err := scanCourse(r.pool.QueryRow(ctx, `
INSERT INTO courses (title, description, price, status, owner_id, created_at, updated_at)
VALUES ($1, $2, $3, 'draft', $4, NOW(), NOW())
RETURNING id, title, description, price, status, owner_id, created_at, updated_at
`, strings.TrimSpace(p.Title), p.Description, p.Price, p.OwnerID))
	if err != nil {
		return CourseRecord{}, fmt.Errorf("create course: %w", err)
	}

	return rec, nil
}

func (r *CourseRepo) FindByID(ctx context.Context, courseID int64) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	rec, err := scanCourse(r.pool.QueryRow(ctx, `
SELECT id, title, description, price, status, owner_id, created_at, updated_at
FROM courses
WHERE id = $1
LIMIT 1
`, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("find course by id: %w", err)
	}

	return rec, nil
}

func (r *CourseRepo) Exists(ctx context.Context, courseID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return false, fmt.Errorf("invalid course id")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM courses
	WHERE id = $1
)
`, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check course exists: %w", err)
	}

	return exists, nil
}

// List returns courses visible in any of the given statuses. Owners see their
// own drafts through the extra owner filter.
func (r *CourseRepo) List(ctx context.Context, statuses []enums.ObjectStatus, ownerID int64) ([]CourseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("at least one status is required")
	}

	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, description, price, status, owner_id, created_at, updated_at
FROM courses
WHERE status = ANY($1)
   OR ($2 > 0 AND owner_id = $2)
ORDER BY created_at DESC
`, raw, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var records []CourseRecord
	for rows.Next() {
		rec, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}

	return records, nil
}

func (r *CourseRepo) Update(ctx context.Context, courseID int64, p UpdateCourseParams) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}
	if p.Status != nil && !p.Status.Valid() {
		return CourseRecord{}, fmt.Errorf("invalid course status %q", *p.Status)
	}

	rec, err := scanCourse(r.pool.QueryRow(ctx, `
UPDATE courses
SET
	title = COALESCE($2, title),
	description = COALESCE($3, description),
	price = COALESCE($4, price),
	status = COALESCE($5, status),
	updated_at = NOW()
WHERE id = $1
RETURNING id, title, description, price, status, owner_id, created_at, updated_at
`, courseID, p.Title, p.Description, p.Price, statusArg(p.Status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("update course: %w", err)
	}

	return rec, nil
}

func (r *CourseRepo) Delete(ctx context.Context, courseID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return fmt.Errorf("invalid course id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}

	return nil
}

func statusArg(status *enums.ObjectStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

func scanCourse(row pgx.Row) (CourseRecord, error) {
	var (
		rec    CourseRecord
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.Price,
		&status,
		&rec.OwnerID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return CourseRecord{}, err
	}
	rec.Status = enums.ObjectStatus(status)
	return rec, nil
}
