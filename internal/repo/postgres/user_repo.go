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

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Role         enums.UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Role         enums.UserRole
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, p CreateUserParams) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" || p.PasswordHash == "" {
		return UserRecord{}, fmt.Errorf("invalid user create payload")
	}
	if p.Role == "" {
		p.Role = enums.RoleStudent
	}

	rec, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, name, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING id, email, password_hash, name, role, created_at, updated_at
`, email, p.PasswordHash, strings.TrimSpace(p.Name), string(p.Role)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrUserExists
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return rec, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserRecord{}, fmt.Errorf("invalid email")
	}

	rec, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, name, role, created_at, updated_at
FROM users
WHERE email = $1
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by email: %w", err)
	}

	return rec, nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	rec, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, name, role, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return rec, nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var (
		rec  UserRecord
		role string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Name,
		&role,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return UserRecord{}, err
	}
	rec.Role = enums.UserRole(role)
	return rec, nil
}
