package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrFileNotFound = errors.New("file not found")

// FileRepo keeps metadata for objects stored in the media bucket. The bytes
// themselves live in object storage under ObjectKey.
type FileRepo struct {
	pool *pgxpool.Pool
}

type FileRecord struct {
	ID          int64
	OwnerID     int64
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

type CreateFileParams struct {
	OwnerID     int64
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
}

func NewFileRepo(pool *pgxpool.Pool) *FileRepo {
	return &FileRepo{pool: pool}
}

func (r *FileRepo) Create(ctx context.Context, p CreateFileParams) (FileRecord, error) {
	if r.pool == nil {
		return FileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if p.OwnerID <= 0 || strings.TrimSpace(p.ObjectKey) == "" || p.SizeBytes < 0 {
		return FileRecord{}, fmt.Errorf("invalid file create payload")
	}

	rec, err := scanFile(r.pool.QueryRow(ctx, `
INSERT INTO files (owner_id, object_key, file_name, content_type, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING id, owner_id, object_key, file_name, content_type, size_bytes, created_at
`, p.OwnerID, strings.TrimSpace(p.ObjectKey), p.FileName, p.ContentType, p.SizeBytes))
	if err != nil {
		return FileRecord{}, fmt.Errorf("create file record: %w", err)
	}

	return rec, nil
}

func (r *FileRepo) FindByID(ctx context.Context, fileID int64) (FileRecord, error) {
	if r.pool == nil {
		return FileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if fileID <= 0 {
		return FileRecord{}, fmt.Errorf("invalid file id")
	}

	rec, err := scanFile(r.pool.QueryRow(ctx, `
SELECT id, owner_id, object_key, file_name, content_type, size_bytes, created_at
FROM files
WHERE id = $1
LIMIT 1
`, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileRecord{}, ErrFileNotFound
		}
		return FileRecord{}, fmt.Errorf("find file by id: %w", err)
	}

	return rec, nil
}

func (r *FileRepo) ListByOwner(ctx context.Context, ownerID int64) ([]FileRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if ownerID <= 0 {
		return nil, fmt.Errorf("invalid owner id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, owner_id, object_key, file_name, content_type, size_bytes, created_at
FROM files
WHERE owner_id = $1
ORDER BY created_at DESC
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return records, nil
}

func scanFile(row pgx.Row) (FileRecord, error) {
	var rec FileRecord
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.ObjectKey,
		&rec.FileName,
		&rec.ContentType,
		&rec.SizeBytes,
		&rec.CreatedAt,
	); err != nil {
		return FileRecord{}, err
	}
	return rec, nil
}
