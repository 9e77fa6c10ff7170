package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
)

// StatusNotFoundOrPending is reported for intent ids with no stored
// transaction. An intent in flight and an intent that never existed are
// indistinguishable until the worker writes a row.
const StatusNotFoundOrPending = "not_found_or_pending"

const unknownCurrency = "N/A"

var (
	ErrValidation          = errors.New("validation error")
	ErrAlreadyPurchased    = errors.New("course already purchased")
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

type TransactionStore interface {
	Create(ctx context.Context, p pgrepo.CreateTransactionParams) (pgrepo.PaymentTransactionRecord, error)
	CreateSuccessWithEntitlement(ctx context.Context, p pgrepo.CreateTransactionParams) (pgrepo.PaymentTransactionRecord, error)
	FindByID(ctx context.Context, id int64) (pgrepo.PaymentTransactionRecord, error)
	FindByIntentID(ctx context.Context, intentID string) (pgrepo.PaymentTransactionRecord, error)
}

type PurchaseStore interface {
	Exists(ctx context.Context, userID, courseID int64) (bool, error)
}

type CourseStore interface {
	Exists(ctx context.Context, courseID int64) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// IntentMessage is the wire format carried through the payment queue.
type IntentMessage struct {
	PaymentIntentID string `json:"payment_intent_id"`
	CourseID        int64  `json:"course_id"`
	Currency        string `json:"currency"`
	CardToken       string `json:"card_token"`
	UserID          int64  `json:"user_id"`
}

type SubmitInput struct {
	UserID    int64
	CourseID  int64
	Currency  string
	CardToken string
}

// StatusView is what both status endpoints return. TransactionID is nil
// while the intent has not been processed into a stored transaction.
type StatusView struct {
	Status          string
	PaymentIntentID *string
	TransactionID   *int64
	CourseID        int64
	Currency        string
	Message         *string
	Timestamp       time.Time
}

type Dependencies struct {
	Transactions TransactionStore
	Purchases    PurchaseStore
	Courses      CourseStore
	Publisher    Publisher
}

type Service struct {
	transactions TransactionStore
	purchases    PurchaseStore
	courses      CourseStore
	publisher    Publisher
	queue        string
	now          func() time.Time
	newIntentID  func() string
}

func NewService(deps Dependencies, queue string) *Service {
	return &Service{
		transactions: deps.Transactions,
		purchases:    deps.Purchases,
		courses:      deps.Courses,
		publisher:    deps.Publisher,
		queue:        queue,
		now:          time.Now,
		newIntentID:  func() string { return uuid.NewString() },
	}
}

// SubmitStub accepts a payment request, publishes the intent to the queue
// and answers pending immediately. The only synchronous rejection besides
// validation is an entitlement that already exists at submit time; the
// worker re-checks under the unique constraint, so a race here is safe.
func (s *Service) SubmitStub(ctx context.Context, in SubmitInput) (StatusView, error) {
	if s.publisher == nil || s.purchases == nil {
		return StatusView{}, fmt.Errorf("payments service is not configured")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.UserID <= 0 || in.CourseID <= 0 || currency == "" || strings.TrimSpace(in.CardToken) == "" {
		return StatusView{}, ErrValidation
	}

	purchased, err := s.purchases.Exists(ctx, in.UserID, in.CourseID)
	if err != nil {
		return StatusView{}, fmt.Errorf("check existing purchase: %w", err)
	}
	if purchased {
		return StatusView{}, ErrAlreadyPurchased
	}

	intentID := s.newIntentID()
	body, err := encodeIntentMessage(IntentMessage{
		PaymentIntentID: intentID,
		CourseID:        in.CourseID,
		Currency:        currency,
		CardToken:       strings.TrimSpace(in.CardToken),
		UserID:          in.UserID,
	})
	if err != nil {
		return StatusView{}, fmt.Errorf("encode intent message: %w", err)
	}

	if err := s.publisher.Publish(ctx, s.queue, body); err != nil {
		return StatusView{}, fmt.Errorf("publish payment intent: %w", err)
	}

	message := "Payment request accepted for processing"
	return StatusView{
		Status:          string(enums.PaymentStatusPending),
		PaymentIntentID: &intentID,
		TransactionID:   nil,
		CourseID:        in.CourseID,
		Currency:        currency,
		Message:         &message,
		Timestamp:       s.now().UTC(),
	}, nil
}

// StatusByTransactionID reports a stored transaction or ErrTransactionNotFound.
func (s *Service) StatusByTransactionID(ctx context.Context, transactionID int64) (StatusView, error) {
	if s.transactions == nil {
		return StatusView{}, fmt.Errorf("payments service is not configured")
	}
	if transactionID <= 0 {
		return StatusView{}, ErrValidation
	}

	rec, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentTransactionNotFound) {
			return StatusView{}, ErrTransactionNotFound
		}
		return StatusView{}, fmt.Errorf("find transaction: %w", err)
	}

	return viewOf(rec), nil
}

// StatusByIntentID never reports a missing intent as an error. Until the
// worker stores a transaction the caller sees not_found_or_pending.
func (s *Service) StatusByIntentID(ctx context.Context, intentID string) (StatusView, error) {
	if s.transactions == nil {
		return StatusView{}, fmt.Errorf("payments service is not configured")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return StatusView{}, ErrValidation
	}

	rec, err := s.transactions.FindByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentTransactionNotFound) {
			message := "Transaction is being processed or does not exist"
			return StatusView{
				Status:          StatusNotFoundOrPending,
				PaymentIntentID: &intentID,
				CourseID:        0,
				Currency:        unknownCurrency,
				Message:         &message,
				Timestamp:       s.now().UTC(),
			}, nil
		}
		return StatusView{}, fmt.Errorf("find transaction by intent: %w", err)
	}

	return viewOf(rec), nil
}

func viewOf(rec pgrepo.PaymentTransactionRecord) StatusView {
	id := rec.ID
	return StatusView{
		Status:          string(rec.Status),
		PaymentIntentID: rec.PaymentIntentID,
		TransactionID:   &id,
		CourseID:        rec.CourseID,
		Currency:        rec.Currency,
		Message:         rec.Message,
		Timestamp:       rec.UpdatedAt,
	}
}
