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

var (
	ErrModuleNotFound = errors.New("module not found")
	// ErrModuleContentConflict is returned when a submodule is added to a
	// module holding lessons, or vice versa.
	ErrModuleContentConflict = errors.New("module content type conflict")
)

type ModuleRepo struct {
	pool *pgxpool.Pool
}

type ModuleRecord struct {
	ID             int64
	CourseID       int64
	ParentModuleID *int64
	Title          string
	Description    *string
	Order          int
	Status         enums.ObjectStatus
	ContentType    enums.ModuleContentType
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateModuleParams struct {
	CourseID       int64
	ParentModuleID *int64
	Title          string
	Description    string
	Order          int
}

func NewModuleRepo(pool *pgxpool.Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

// Create inserts a module and, when nested, flips the parent's content type
// to "modules" in the same transaction. A parent already holding lessons
// rejects the insert.
func (r *ModuleRepo) Create(ctx context.Context, p CreateModuleParams) (ModuleRecord, error) {
	if r.pool == nil {
		return ModuleRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if p.CourseID <= 0 || strings.TrimSpace(p.Title) == "" {
		return ModuleRecord{}, fmt.Errorf("invalid module create payload")
	}
	if p.Order <= 0 {
		p.Order = 1
	}

	var out ModuleRecord
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if p.ParentModuleID != nil {
			if err := markParentContent(txCtx, tx, *p.ParentModuleID, enums.ModuleContentModules); err != nil {
				return err
			}
		}

		rec, err := scanModule(tx.QueryRow(txCtx, `
INSERT INTO modules (course_id, parent_module_id, title, description, "order", status, content_type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'draft', 'empty', NOW(), NOW())
RETURNING id, course_id, parent_module_id, title, description, "order", status, content_type, created_at, updated_at
`, p.CourseID, p.ParentModuleID, strings.TrimSpace(p.Title), nullableString(p.Description), p.Order))
		if err != nil {
			return fmt.Errorf("create module: %w", err)
		}

		out = rec
		return nil
	})
	if err != nil {
		return ModuleRecord{}, err
	}

	return out, nil
}

func (r *ModuleRepo) FindByID(ctx context.Context, moduleID int64) (ModuleRecord, error) {
	if r.pool == nil {
		return ModuleRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if moduleID <= 0 {
		return ModuleRecord{}, fmt.Errorf("invalid module id")
	}

	rec, err := scanModule(r.pool.QueryRow(ctx, `
SELECT id, course_id, parent_module_id, title, description, "order", status, content_type, created_at, updated_at
FROM modules
WHERE id = $1
LIMIT 1
`, moduleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ModuleRecord{}, ErrModuleNotFound
		}
		return ModuleRecord{}, fmt.Errorf("find module by id: %w", err)
	}

	return rec, nil
}

func (r *ModuleRepo) ListByCourse(ctx context.Context, courseID int64) ([]ModuleRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return nil, fmt.Errorf("invalid course id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, course_id, parent_module_id, title, description, "order", status, content_type, created_at, updated_at
FROM modules
WHERE course_id = $1
ORDER BY "order", id
`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var records []ModuleRecord
	for rows.Next() {
		rec, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}

	return records, nil
}

func (r *ModuleRepo) UpdateStatus(ctx context.Context, moduleID int64, status enums.ObjectStatus) (ModuleRecord, error) {
	if r.pool == nil {
		return ModuleRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if moduleID <= 0 {
		return ModuleRecord{}, fmt.Errorf("invalid module id")
	}
	if !status.Valid() {
		return ModuleRecord{}, fmt.Errorf("invalid module status %q", status)
	}

	rec, err := scanModule(r.pool.QueryRow(ctx, `
UPDATE modules
SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, course_id, parent_module_id, title, description, "order", status, content_type, created_at, updated_at
`, moduleID, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ModuleRecord{}, ErrModuleNotFound
		}
		return ModuleRecord{}, fmt.Errorf("update module status: %w", err)
	}

	return rec, nil
}

// Delete removes the module and everything nested under it. A parent left
// with no submodules goes back to the empty content type.
func (r *ModuleRepo) Delete(ctx context.Context, moduleID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if moduleID <= 0 {
		return fmt.Errorf("invalid module id")
	}

	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		var parentID *int64
		err := tx.QueryRow(txCtx, `
SELECT parent_module_id
FROM modules
WHERE id = $1
FOR UPDATE
`, moduleID).Scan(&parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrModuleNotFound
			}
			return fmt.Errorf("lock module for delete: %w", err)
		}

		if _, err := tx.Exec(txCtx, `DELETE FROM modules WHERE id = $1`, moduleID); err != nil {
			return fmt.Errorf("delete module: %w", err)
		}

		if parentID == nil {
			return nil
		}
		if _, err := tx.Exec(txCtx, `
UPDATE modules
SET content_type = 'empty', updated_at = NOW()
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM modules WHERE parent_module_id = $1)
`, *parentID); err != nil {
			return fmt.Errorf("reset parent content type: %w", err)
		}

		return nil
	})
}

// MarkContentLessons is called when the first lesson is attached.
func (r *ModuleRepo) MarkContentLessons(ctx context.Context, tx pgx.Tx, moduleID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	return markParentContent(ctx, tx, moduleID, enums.ModuleContentLessons)
}

func markParentContent(ctx context.Context, tx pgx.Tx, moduleID int64, want enums.ModuleContentType) error {
	var current string
	err := tx.QueryRow(ctx, `
SELECT content_type
FROM modules
WHERE id = $1
FOR UPDATE
`, moduleID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrModuleNotFound
		}
		return fmt.Errorf("lock parent module: %w", err)
	}

	switch enums.ModuleContentType(current) {
	case want:
		return nil
	case enums.ModuleContentEmpty:
	default:
		return ErrModuleContentConflict
	}

	if _, err := tx.Exec(ctx, `
UPDATE modules
SET content_type = $2, updated_at = NOW()
WHERE id = $1
`, moduleID, string(want)); err != nil {
		return fmt.Errorf("mark module content type: %w", err)
	}

	return nil
}

func scanModule(row pgx.Row) (ModuleRecord, error) {
	var (
		rec         ModuleRecord
		status      string
		contentType string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.CourseID,
		&rec.ParentModuleID,
		&rec.Title,
		&rec.Description,
		&rec.Order,
		&status,
		&contentType,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return ModuleRecord{}, err
	}
	rec.Status = enums.ObjectStatus(status)
	rec.ContentType = enums.ModuleContentType(contentType)
	return rec, nil
}
