package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrFileTooLarge           = errors.New("file exceeds size limit")
	ErrFileNotFound           = errors.New("file not found")
	ErrForbidden              = errors.New("forbidden")
)

const signedURLTTL = 5 * time.Minute

// allowedContentTypes maps accepted MIME types to the bucket folder the
// object lands in.
var allowedContentTypes = map[string]string{
	"image/jpeg":      "images",
	"image/png":       "images",
	"application/pdf": "documents",
	"audio/mpeg":      "audio",
	"video/mp4":       "video",
}

type Store interface {
	Create(ctx context.Context, p pgrepo.CreateFileParams) (pgrepo.FileRecord, error)
	FindByID(ctx context.Context, fileID int64) (pgrepo.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]pgrepo.FileRecord, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store    Store
	storage  ObjectStorage
	maxBytes int64
}

type File struct {
	ID          int64
	FileName    string
	ContentType string
	SizeBytes   int64
	URL         string
	CreatedAt   time.Time
}

func NewService(store Store, storage ObjectStorage, maxBytes int64) *Service {
	return &Service{
		store:    store,
		storage:  storage,
		maxBytes: maxBytes,
	}
}

// Upload streams the body to object storage and records the metadata row.
// If the row insert fails the object is removed again, so storage never
// holds files the database does not know about.
func (s *Service) Upload(ctx context.Context, ownerID int64, fileName, contentType string, body io.Reader, size int64) (File, error) {
	if ownerID <= 0 || body == nil || size <= 0 {
		return File{}, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return File{}, fmt.Errorf("files dependencies are not configured")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return File{}, ErrFileTooLarge
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	folder, ok := allowedContentTypes[contentType]
	if !ok {
		return File{}, ErrUnsupportedContentType
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return File{}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectKey := buildObjectKey(folder, ownerID, fileName)
	if err := s.storage.Put(ctx, objectKey, body, size, contentType); err != nil {
		return File{}, fmt.Errorf("put object: %w", err)
	}

	record, err := s.store.Create(ctx, pgrepo.CreateFileParams{
		OwnerID:     ownerID,
		ObjectKey:   objectKey,
		FileName:    sanitizeFileName(fileName),
		ContentType: contentType,
		SizeBytes:   size,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return File{}, fmt.Errorf("create file record: %w", err)
	}

	url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
	if err != nil {
		return File{}, fmt.Errorf("presign file url: %w", err)
	}

	return fileOf(record, url), nil
}

func (s *Service) Get(ctx context.Context, ownerID, fileID int64) (File, error) {
	if ownerID <= 0 || fileID <= 0 {
		return File{}, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return File{}, fmt.Errorf("files dependencies are not configured")
	}

	record, err := s.store.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrFileNotFound) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("find file: %w", err)
	}
	if record.OwnerID != ownerID {
		return File{}, ErrForbidden
	}

	url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
	if err != nil {
		return File{}, fmt.Errorf("presign file url: %w", err)
	}

	return fileOf(record, url), nil
}

func (s *Service) List(ctx context.Context, ownerID int64) ([]File, error) {
	if ownerID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return nil, fmt.Errorf("files dependencies are not configured")
	}

	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}

	out := make([]File, 0, len(records))
	for _, rec := range records {
		url, err := s.storage.PresignGet(ctx, rec.ObjectKey, signedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign file url: %w", err)
		}
		out = append(out, fileOf(rec, url))
	}

	return out, nil
}

func fileOf(rec pgrepo.FileRecord, url string) File {
	return File{
		ID:          rec.ID,
		FileName:    rec.FileName,
		ContentType: rec.ContentType,
		SizeBytes:   rec.SizeBytes,
		URL:         url,
		CreatedAt:   rec.CreatedAt,
	}
}

func buildObjectKey(folder string, ownerID int64, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/user_%d/%s%s", folder, ownerID, uuid.NewString(), ext)
}

func sanitizeFileName(fileName string) string {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
