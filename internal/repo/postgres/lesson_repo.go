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

var ErrLessonNotFound = errors.New("lesson not found")

type LessonRepo struct {
	pool    *pgxpool.Pool
	modules *ModuleRepo
}

type LessonRecord struct {
	ID        int64
	CourseID  int64
	ModuleID  *int64
	Title     string
	Summary   *string
	Order     int
	Duration  *int
	Status    enums.ObjectStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateLessonParams struct {
	CourseID int64
	ModuleID *int64
	Title    string
	Summary  string
	Order    int
	Duration *int
}

func NewLessonRepo(pool *pgxpool.Pool, modules *ModuleRepo) *LessonRepo {
	return &LessonRepo{pool: pool, modules: modules}
}

func (r *LessonRepo) Create(ctx context.Context, p CreateLessonParams) (LessonRecord, error) {
	if r.pool == nil {
		return LessonRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if p.CourseID <= 0 || strings.TrimSpace(p.Title) == "" {
		return LessonRecord{}, fmt.Errorf("invalid lesson create payload")
	}

	var out LessonRecord
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if p.ModuleID != nil {
			if err := r.modules.MarkContentLessons(txCtx, tx, *p.ModuleID); err != nil {
				return err
			}
		}

		rec, err := scanLesson(tx.QueryRow(txCtx, `
INSERT INTO lessons (course_id, module_id, title, summary, "order", duration, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'draft', NOW(), NOW())
RETURNING id, course_id, module_id, title, summary, "order", duration, status, created_at, updated_at
`, p.CourseID, p.ModuleID, strings.TrimSpace(p.Title), nullableString(p.Summary), p.Order, p.Duration))
		if err != nil {
			return fmt.Errorf("create lesson: %w", err)
		}

		out = rec
		return nil
	})
	if err != nil {
		return LessonRecord{}, err
	}

	return out, nil
}

func (r *LessonRepo) FindByID(ctx context.Context, lessonID int64) (LessonRecord, error) {
	if r.pool == nil {
		return LessonRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if lessonID <= 0 {
		return LessonRecord{}, fmt.Errorf("invalid lesson id")
	}

	rec, err := scanLesson(r.pool.QueryRow(ctx, `
SELECT id, course_id, module_id, title, summary, "order", duration, status, created_at, updated_at
FROM lessons
WHERE id = $1
LIMIT 1
`, lessonID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LessonRecord{}, ErrLessonNotFound
		}
		return LessonRecord{}, fmt.Errorf("find lesson by id: %w", err)
	}

	return rec, nil
}

func (r *LessonRepo) ListByModule(ctx context.Context, moduleID int64) ([]LessonRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if moduleID <= 0 {
		return nil, fmt.Errorf("invalid module id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, course_id, module_id, title, summary, "order", duration, status, created_at, updated_at
FROM lessons
WHERE module_id = $1
ORDER BY "order", id
`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var records []LessonRecord
	for rows.Next() {
		rec, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return records, nil
}

func (r *LessonRepo) ListByCourse(ctx context.Context, courseID int64) ([]LessonRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return nil, fmt.Errorf("invalid course id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, course_id, module_id, title, summary, "order", duration, status, created_at, updated_at
FROM lessons
WHERE course_id = $1
ORDER BY "order", id
`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course lessons: %w", err)
	}
	defer rows.Close()

	var records []LessonRecord
	for rows.Next() {
		rec, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return records, nil
}

// Delete removes the lesson and its blocks. A module left with no lessons
// goes back to the empty content type so it can hold submodules again.
func (r *LessonRepo) Delete(ctx context.Context, lessonID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if lessonID <= 0 {
		return fmt.Errorf("invalid lesson id")
	}

	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var moduleID *int64
		err := tx.QueryRow(txCtx, `
SELECT module_id
FROM lessons
WHERE id = $1
FOR UPDATE
`, lessonID).Scan(&moduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLessonNotFound
			}
			return fmt.Errorf("lock lesson for delete: %w", err)
		}

		if _, err := tx.Exec(txCtx, `DELETE FROM lessons WHERE id = $1`, lessonID); err != nil {
			return fmt.Errorf("delete lesson: %w", err)
		}

		if moduleID == nil {
			return nil
		}
		if _, err := tx.Exec(txCtx, `
UPDATE modules
SET content_type = 'empty', updated_at = NOW()
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM lessons WHERE module_id = $1)
`, *moduleID); err != nil {
			return fmt.Errorf("reset module content type: %w", err)
		}

		return nil
	})
}

func (r *LessonRepo) UpdateStatus(ctx context.Context, lessonID int64, status enums.ObjectStatus) (LessonRecord, error) {
	if r.pool == nil {
		return LessonRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if lessonID <= 0 {
		return LessonRecord{}, fmt.Errorf("invalid lesson id")
	}
	if !status.Valid() {
		return LessonRecord{}, fmt.Errorf("invalid lesson status %q", status)
	}

	rec, err := scanLesson(r.pool.QueryRow(ctx, `
UPDATE lessons
SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, course_id, module_id, title, summary, "order", duration, status, created_at, updated_at
`, lessonID, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LessonRecord{}, ErrLessonNotFound
		}
		return LessonRecord{}, fmt.Errorf("update lesson status: %w", err)
	}

	return rec, nil
}

func scanLesson(row pgx.Row) (LessonRecord, error) {
	var (
		rec    LessonRecord
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.CourseID,
		&rec.ModuleID,
		&rec.Title,
		&rec.Summary,
		&rec.Order,
		&rec.Duration,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return LessonRecord{}, err
	}
	rec.Status = enums.ObjectStatus(status)
	return rec, nil
}
