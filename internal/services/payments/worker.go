package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
)

// Worker consumes payment intents and settles each one into exactly one
// stored transaction. A nil return acknowledges the message; a non-nil
// return hands the message to the channel failure policy.
type Worker struct {
	transactions TransactionStore
	purchases    PurchaseStore
	courses      CourseStore
	log          *zap.Logger
}

func NewWorker(deps Dependencies, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		transactions: deps.Transactions,
		purchases:    deps.Purchases,
		courses:      deps.Courses,
		log:          log,
	}
}

func (w *Worker) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := decodeIntentMessage(body)
	if err != nil {
		// Malformed payloads can never succeed on redelivery. Drop them.
		w.log.Error("discarding malformed payment message",
			zap.Error(err),
			zap.Int("body_len", len(body)))
		return nil
	}

	log := w.log.With(
		zap.String("payment_intent_id", msg.PaymentIntentID),
		zap.Int64("user_id", msg.UserID),
		zap.Int64("course_id", msg.CourseID))

	purchased, err := w.purchases.Exists(ctx, msg.UserID, msg.CourseID)
	if err != nil {
		return fmt.Errorf("check existing purchase: %w", err)
	}
	if purchased {
		return w.recordDuplicate(ctx, log, msg)
	}

	courseExists, err := w.courses.Exists(ctx, msg.CourseID)
	if err != nil {
		return fmt.Errorf("check course exists: %w", err)
	}
	if !courseExists {
		rec, err := w.transactions.Create(ctx, pgrepo.CreateTransactionParams{
			PaymentIntentID: msg.PaymentIntentID,
			CourseID:        msg.CourseID,
			UserID:          msg.UserID,
			Currency:        msg.Currency,
			CardToken:       msg.CardToken,
			Status:          enums.PaymentStatusFailed,
			Message:         "Course not found",
		})
		if err != nil {
			if errors.Is(err, pgrepo.ErrIntentAlreadyProcessed) {
				log.Info("intent already recorded, acking redelivery")
				return nil
			}
			return fmt.Errorf("record failed transaction: %w", err)
		}
		log.Warn("payment failed, course not found", zap.Int64("transaction_id", rec.ID))
		return nil
	}

	// Stub provider: every well-formed charge succeeds. The entitlement
	// insert is the arbiter for concurrent intents on the same course.
	rec, err := w.transactions.CreateSuccessWithEntitlement(ctx, pgrepo.CreateTransactionParams{
		PaymentIntentID: msg.PaymentIntentID,
		CourseID:        msg.CourseID,
		UserID:          msg.UserID,
		Currency:        msg.Currency,
		CardToken:       msg.CardToken,
		Message:         "Payment processed successfully",
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseAlreadyPurchased) {
			return w.recordDuplicate(ctx, log, msg)
		}
		if errors.Is(err, pgrepo.ErrIntentAlreadyProcessed) {
			log.Info("intent already settled, acking redelivery")
			return nil
		}
		return fmt.Errorf("settle payment: %w", err)
	}

	log.Info("payment settled", zap.Int64("transaction_id", rec.ID))
	return nil
}

func (w *Worker) recordDuplicate(ctx context.Context, log *zap.Logger, msg IntentMessage) error {
	rec, err := w.transactions.Create(ctx, pgrepo.CreateTransactionParams{
		PaymentIntentID: msg.PaymentIntentID,
		CourseID:        msg.CourseID,
		UserID:          msg.UserID,
		Currency:        msg.Currency,
		CardToken:       msg.CardToken,
		Status:          enums.PaymentStatusDuplicatePurchase,
		Message:         "Course already purchased",
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrIntentAlreadyProcessed) {
			log.Info("intent already recorded, acking redelivery")
			return nil
		}
		return fmt.Errorf("record duplicate transaction: %w", err)
	}
	log.Info("duplicate purchase rejected", zap.Int64("transaction_id", rec.ID))
	return nil
}

func encodeIntentMessage(msg IntentMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func decodeIntentMessage(body []byte) (IntentMessage, error) {
	var msg IntentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return IntentMessage{}, fmt.Errorf("decode intent message: %w", err)
	}
	if strings.TrimSpace(msg.PaymentIntentID) == "" || msg.UserID <= 0 || msg.CourseID <= 0 {
		return IntentMessage{}, fmt.Errorf("intent message is missing required fields")
	}
	if strings.TrimSpace(msg.Currency) == "" {
		return IntentMessage{}, fmt.Errorf("intent message is missing currency")
	}
	return msg, nil
}
