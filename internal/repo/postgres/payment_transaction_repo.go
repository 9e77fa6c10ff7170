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
	ErrPaymentTransactionNotFound = errors.New("payment transaction not found")
	// ErrIntentAlreadyProcessed means a transaction for this payment intent
	// id is already stored, which is how a redelivered message looks.
	ErrIntentAlreadyProcessed = errors.New("payment intent already processed")
)

type PaymentTransactionRepo struct {
	pool *pgxpool.Pool
}

type PaymentTransactionRecord struct {
	ID              int64
	PaymentIntentID *string
	CourseID        int64
	UserID          int64
	Currency        string
	CardToken       *string
	Status          enums.PaymentStatus
	Message         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateTransactionParams struct {
	PaymentIntentID string
	CourseID        int64
	UserID          int64
	Currency        string
	CardToken       string
	Status          enums.PaymentStatus
	Message         string
}

func NewPaymentTransactionRepo(pool *pgxpool.Pool) *PaymentTransactionRepo {
	return &PaymentTransactionRepo{pool: pool}
}

// Create persists a transaction already resolved to a terminal status
// (failed, duplicate_purchase). Success records go through
// CreateSuccessWithEntitlement so the entitlement lands in the same tx.
func (r *PaymentTransactionRepo) Create(ctx context.Context, p CreateTransactionParams) (PaymentTransactionRecord, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if err := p.validate(); err != nil {
		return PaymentTransactionRecord{}, err
	}

	rec, err := scanPaymentTransactionRow(r.pool.QueryRow(ctx, insertTransactionSQL,
		nullableString(p.PaymentIntentID),
		p.CourseID,
		p.UserID,
		strings.ToUpper(strings.TrimSpace(p.Currency)),
		nullableString(p.CardToken),
		string(p.Status),
		nullableString(p.Message),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PaymentTransactionRecord{}, ErrIntentAlreadyProcessed
		}
		return PaymentTransactionRecord{}, fmt.Errorf("create payment transaction: %w", err)
	}

	return rec, nil
}

// CreateSuccessWithEntitlement inserts a success transaction and the course
// entitlement in one database transaction; both commit or neither does. A
// unique violation on course_purchases(user_id, course_id) is reported as
// ErrCourseAlreadyPurchased and nothing is persisted.
func (r *PaymentTransactionRepo) CreateSuccessWithEntitlement(ctx context.Context, p CreateTransactionParams) (PaymentTransactionRecord, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	p.Status = enums.PaymentStatusSuccess
	if err := p.validate(); err != nil {
		return PaymentTransactionRecord{}, err
	}

	var out PaymentTransactionRecord
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := scanPaymentTransactionRow(tx.QueryRow(txCtx, insertTransactionSQL,
			nullableString(p.PaymentIntentID),
			p.CourseID,
			p.UserID,
			strings.ToUpper(strings.TrimSpace(p.Currency)),
			nullableString(p.CardToken),
			string(enums.PaymentStatusSuccess),
			nullableString(p.Message),
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrIntentAlreadyProcessed
			}
			return fmt.Errorf("create success transaction: %w", err)
		}

		if _, err := tx.Exec(txCtx, `
INSERT INTO course_purchases (user_id, course_id, transaction_id)
VALUES ($1, $2, $3)
`, p.UserID, p.CourseID, rec.ID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrCourseAlreadyPurchased
			}
			return fmt.Errorf("grant course entitlement: %w", err)
		}

		out = rec
		return nil
	})
	if err != nil {
		return PaymentTransactionRecord{}, err
	}

	return out, nil
}

func (r *PaymentTransactionRepo) FindByID(ctx context.Context, id int64) (PaymentTransactionRecord, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return PaymentTransactionRecord{}, fmt.Errorf("invalid transaction id")
	}

	rec, err := scanPaymentTransactionRow(r.pool.QueryRow(ctx, selectTransactionSQL+`
WHERE id = $1
LIMIT 1
`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentTransactionRecord{}, ErrPaymentTransactionNotFound
		}
		return PaymentTransactionRecord{}, fmt.Errorf("find transaction by id: %w", err)
	}

	return rec, nil
}

func (r *PaymentTransactionRepo) FindByIntentID(ctx context.Context, intentID string) (PaymentTransactionRecord, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return PaymentTransactionRecord{}, fmt.Errorf("invalid payment intent id")
	}

	rec, err := scanPaymentTransactionRow(r.pool.QueryRow(ctx, selectTransactionSQL+`
WHERE payment_intent_id = $1
LIMIT 1
`, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentTransactionRecord{}, ErrPaymentTransactionNotFound
		}
		return PaymentTransactionRecord{}, fmt.Errorf("find transaction by intent id: %w", err)
	}

	return rec, nil
}

func (p CreateTransactionParams) validate() error {
	if p.UserID <= 0 || p.CourseID <= 0 {
		return fmt.Errorf("invalid transaction payload")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	switch p.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusSuccess,
		enums.PaymentStatusFailed, enums.PaymentStatusDuplicatePurchase:
		return nil
	default:
		return fmt.Errorf("invalid transaction status %q", p.Status)
	}
}

const insertTransactionSQL = `
INSERT INTO payment_transactions (
	payment_intent_id,
	course_id,
	user_id,
	currency,
	card_token,
	status,
	message,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING
	id,
	payment_intent_id,
	course_id,
	user_id,
	currency,
	card_token,
	status,
	message,
	created_at,
	updated_at
`

const selectTransactionSQL = `
SELECT
	id,
	payment_intent_id,
	course_id,
	user_id,
	currency,
	card_token,
	status,
	message,
	created_at,
	updated_at
FROM payment_transactions
`

func scanPaymentTransactionRow(row pgx.Row) (PaymentTransactionRecord, error) {
	var (
		rec    PaymentTransactionRecord
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.PaymentIntentID,
		&rec.CourseID,
		&rec.UserID,
		&rec.Currency,
		&rec.CardToken,
		&status,
		&rec.Message,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return PaymentTransactionRecord{}, err
	}
	rec.Status = enums.PaymentStatus(status)
	return rec, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
