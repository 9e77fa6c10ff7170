package payments_test

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/delawer33/edumaster/internal/domain/enums"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
)

func TestWorkerSettlesValidIntent(t *testing.T) {
	env := newPaymentsEnv()
	env.courses.existing[42] = true
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-a", 7, 42)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	rec, err := env.transactions.FindByIntentID(context.Background(), "intent-a")
	if err != nil {
		t.Fatalf("find settled transaction: %v", err)
	}
	if rec.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected success status, got %q", rec.Status)
	}
	if !env.purchases.owned["7/42"] {
		t.Fatalf("entitlement was not granted")
	}
}

func TestWorkerRecordsDuplicateForOwnedCourse(t *testing.T) {
	env := newPaymentsEnv()
	env.courses.existing[42] = true
	env.purchases.owned["7/42"] = true
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-b", 7, 42)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	rec, err := env.transactions.FindByIntentID(context.Background(), "intent-b")
	if err != nil {
		t.Fatalf("find duplicate transaction: %v", err)
	}
	if rec.Status != enums.PaymentStatusDuplicatePurchase {
		t.Fatalf("expected duplicate_purchase status, got %q", rec.Status)
	}
	if env.transactions.settlement != 0 {
		t.Fatalf("no settlement should happen for an owned course")
	}
}

func TestWorkerRecordsFailureForMissingCourse(t *testing.T) {
	env := newPaymentsEnv()
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-c", 7, 404)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	rec, err := env.transactions.FindByIntentID(context.Background(), "intent-c")
	if err != nil {
		t.Fatalf("find failed transaction: %v", err)
	}
	if rec.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %q", rec.Status)
	}
	if env.purchases.owned["7/404"] {
		t.Fatalf("entitlement must not exist for a failed payment")
	}
}

func TestWorkerDropsMalformedMessage(t *testing.T) {
	env := newPaymentsEnv()
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	cases := [][]byte{
		[]byte("{not json"),
		[]byte(`{"payment_intent_id":"","course_id":42,"currency":"USD","card_token":"tok","user_id":7}`),
		[]byte(`{"payment_intent_id":"x","course_id":0,"currency":"USD","card_token":"tok","user_id":7}`),
		[]byte(`{"payment_intent_id":"x","course_id":42,"currency":"","card_token":"tok","user_id":7}`),
	}
	for _, body := range cases {
		if err := worker.HandleMessage(context.Background(), body); err != nil {
			t.Fatalf("malformed message %q should be dropped without error, got %v", body, err)
		}
	}
	if len(env.transactions.byID) != 0 {
		t.Fatalf("malformed messages must not create transactions")
	}
}

func TestWorkerConvertsSettlementRaceToDuplicate(t *testing.T) {
	env := newPaymentsEnv()
	env.courses.existing[42] = true
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	// First intent wins the entitlement, second hits the unique constraint.
	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-first", 7, 42)); err != nil {
		t.Fatalf("first intent: %v", err)
	}

	// Second intent sees a stale pre-check; the entitlement unique
	// constraint must resolve the conflict at settlement.
	env.purchases.stale = true
	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-second", 7, 42)); err != nil {
		t.Fatalf("second intent: %v", err)
	}

	rec, err := env.transactions.FindByIntentID(context.Background(), "intent-second")
	if err != nil {
		t.Fatalf("find second transaction: %v", err)
	}
	if rec.Status != enums.PaymentStatusDuplicatePurchase {
		t.Fatalf("expected duplicate_purchase, got %q", rec.Status)
	}
	if env.transactions.settlement != 1 {
		t.Fatalf("expected exactly one settlement, got %d", env.transactions.settlement)
	}
}

func TestWorkerAcksRedeliveredSettledIntent(t *testing.T) {
	env := newPaymentsEnv()
	env.courses.existing[42] = true
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	body := intentBody(t, "intent-r", 7, 42)
	if err := worker.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// The broker may redeliver after an ack is lost. The stored intent id
	// makes the second pass a no-op instead of an error.
	if err := worker.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("redelivery must be acked quietly, got %v", err)
	}

	if len(env.transactions.byID) != 1 {
		t.Fatalf("redelivery must not add transactions, got %d", len(env.transactions.byID))
	}
	rec, err := env.transactions.FindByIntentID(context.Background(), "intent-r")
	if err != nil {
		t.Fatalf("find settled transaction: %v", err)
	}
	if rec.Status != enums.PaymentStatusSuccess {
		t.Fatalf("settled status must survive redelivery, got %q", rec.Status)
	}
}

func TestWorkerReturnsErrorOnStoreFailure(t *testing.T) {
	env := newPaymentsEnv()
	env.courses.existing[42] = true
	env.transactions.settleErr = context.DeadlineExceeded
	worker := paymentsvc.NewWorker(env.deps(), zap.NewNop())

	if err := worker.HandleMessage(context.Background(), intentBody(t, "intent-d", 7, 42)); err == nil {
		t.Fatalf("store failure should surface to the channel")
	}
}

func intentBody(t *testing.T, intentID string, userID, courseID int64) []byte {
	t.Helper()
	body, err := json.Marshal(paymentsvc.IntentMessage{
		PaymentIntentID: intentID,
		CourseID:        courseID,
		Currency:        "USD",
		CardToken:       "tok_visa",
		UserID:          userID,
	})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return body
}
