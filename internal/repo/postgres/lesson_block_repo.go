package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delawer33/edumaster/internal/domain/enums"
)

var ErrLessonBlockNotFound = errors.New("lesson block not found")

// LessonBlockRepo stores the content blocks of a lesson. Content is a single
// string whose meaning depends on the block type.
type LessonBlockRepo struct {
	pool *pgxpool.Pool
}

type LessonBlockRecord struct {
	ID        int64
	LessonID  int64
	Order     int
	Type      enums.LessonBlockType
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateLessonBlockParams struct {
	LessonID int64
	Type     enums.LessonBlockType
	Content  string
}

type UpdateLessonBlockParams struct {
	Type    *enums.LessonBlockType
	Content *string
	Order   *int
}

func NewLessonBlockRepo(pool *pgxpool.Pool) *LessonBlockRepo {
	return &LessonBlockRepo{pool: pool}
}

// Create appends the block after the lesson's current last block.
func (r *LessonBlockRepo) Create(ctx context.Context, p CreateLessonBlockParams) (LessonBlockRecord, error) {
	if r.pool == nil {
		return LessonBlockRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if p.LessonID <= 0 || !p.Type.Valid() || strings.TrimSpace(p.Content) == "" {
		return LessonBlockRecord{}, fmt.Errorf("invalid lesson block create payload")
	}

	rec, err := scanLessonBlock(r.pool.QueryRow(ctx, `
INSERT INTO lesson_blocks (lesson_id, "order", type, content, created_at, updated_at)
VALUES (
	$1,
	(SELECT COALESCE(MAX("order"), 0) + 1 FROM lesson_blocks WHERE lesson_id = $1),
	$2, $3, NOW(), NOW()
)
RETURNING id, lesson_id, "order", type, content, created_at, updated_at
`, p.LessonID, string(p.Type), strings.TrimSpace(p.Content)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return LessonBlockRecord{}, ErrLessonNotFound
		}
		return LessonBlockRecord{}, fmt.Errorf("create lesson block: %w", err)
	}

	return rec, nil
}

func (r *LessonBlockRepo) FindByID(ctx context.Context, blockID int64) (LessonBlockRecord, error) {
	if r.pool == nil {
		return LessonBlockRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if blockID <= 0 {
		return LessonBlockRecord{}, fmt.Errorf("invalid lesson block id")
	}

	rec, err := scanLessonBlock(r.pool.QueryRow(ctx, `
SELECT id, lesson_id, "order", type, content, created_at, updated_at
FROM lesson_blocks
WHERE id = $1
LIMIT 1
`, blockID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LessonBlockRecord{}, ErrLessonBlockNotFound
		}
		return LessonBlockRecord{}, fmt.Errorf("find lesson block by id: %w", err)
	}

	return rec, nil
}

func (r *LessonBlockRepo) ListByLesson(ctx context.Context, lessonID int64) ([]LessonBlockRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if lessonID <= 0 {
		return nil, fmt.Errorf("invalid lesson id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, lesson_id, "order", type, content, created_at, updated_at
FROM lesson_blocks
WHERE lesson_id = $1
ORDER BY "order", id
`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list lesson blocks: %w", err)
	}
	defer rows.Close()

	var records []LessonBlockRecord
	for rows.Next() {
		rec, err := scanLessonBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson block: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lesson blocks: %w", err)
	}

	return records, nil
}

func (r *LessonBlockRepo) Update(ctx context.Context, blockID int64, p UpdateLessonBlockParams) (LessonBlockRecord, error) {
	if r.pool == nil {
		return LessonBlockRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if blockID <= 0 {
		return LessonBlockRecord{}, fmt.Errorf("invalid lesson block id")
	}
	if p.Type != nil && !p.Type.Valid() {
		return LessonBlockRecord{}, fmt.Errorf("invalid lesson block type %q", *p.Type)
	}
	if p.Order != nil && *p.Order <= 0 {
		return LessonBlockRecord{}, fmt.Errorf("invalid lesson block order %d", *p.Order)
	}

	rec, err := scanLessonBlock(r.pool.QueryRow(ctx, `
UPDATE lesson_blocks
SET
	type = COALESCE($2, type),
	content = COALESCE($3, content),
	"order" = COALESCE($4, "order"),
	updated_at = NOW()
WHERE id = $1
RETURNING id, lesson_id, "order", type, content, created_at, updated_at
`, blockID, blockTypeArg(p.Type), p.Content, p.Order))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LessonBlockRecord{}, ErrLessonBlockNotFound
		}
		return LessonBlockRecord{}, fmt.Errorf("update lesson block: %w", err)
	}

	return rec, nil
}

func (r *LessonBlockRepo) Delete(ctx context.Context, blockID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if blockID <= 0 {
		return fmt.Errorf("invalid lesson block id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM lesson_blocks WHERE id = $1`, blockID)
	if err != nil {
		return fmt.Errorf("delete lesson block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonBlockNotFound
	}

	return nil
}

func blockTypeArg(t *enums.LessonBlockType) *string {
	if t == nil {
		return nil
	}
	raw := string(*t)
	return &raw
}

func scanLessonBlock(row pgx.Row) (LessonBlockRecord, error) {
	var (
		rec       LessonBlockRecord
		blockType string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.LessonID,
		&rec.Order,
		&blockType,
		&rec.Content,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return LessonBlockRecord{}, err
	}
	rec.Type = enums.LessonBlockType(blockType)
	return rec, nil
}
