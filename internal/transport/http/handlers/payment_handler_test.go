package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/delawer33/edumaster/internal/domain/enums"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
	"github.com/delawer33/edumaster/internal/transport/http/dto"
)

func TestSubmitStubReturnsAccepted(t *testing.T) {
	handler, _ := newPaymentHandlerForTest()

	req := authedRequest(http.MethodPost, "/payments/stub",
		`{"course_id": 42, "currency": "USD", "card_token": "tok_visa"}`)
	rr := httptest.NewRecorder()
	handler.SubmitStub(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	var payload dto.PaymentStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "pending" {
		t.Fatalf("expected pending, got %q", payload.Status)
	}
	if payload.TransactionID != nil {
		t.Fatalf("transaction_id should be null at submit time")
	}
	if payload.PaymentIntentID == nil || *payload.PaymentIntentID == "" {
		t.Fatalf("payment_intent_id is empty")
	}
}

func TestSubmitStubDuplicateIs422(t *testing.T) {
	handler, env := newPaymentHandlerForTest()
	env.purchases.owned["7/42"] = true

	req := authedRequest(http.MethodPost, "/payments/stub",
		`{"course_id": 42, "currency": "USD", "card_token": "tok_visa"}`)
	rr := httptest.NewRecorder()
	handler.SubmitStub(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestSubmitStubQueueDownIs500(t *testing.T) {
	handler, env := newPaymentHandlerForTest()
	env.publisher.err = errors.New("dial amqp: connection refused")

	req := authedRequest(http.MethodPost, "/payments/stub",
		`{"course_id": 42, "currency": "USD", "card_token": "tok_visa"}`)
	rr := httptest.NewRecorder()
	handler.SubmitStub(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
	if len(env.publisher.published) != 0 {
		t.Fatalf("nothing should reach the queue when the publish fails")
	}
}

func TestSubmitStubRequiresAuth(t *testing.T) {
	handler, _ := newPaymentHandlerForTest()

	req := httptest.NewRequest(http.MethodPost, "/payments/stub",
		strings.NewReader(`{"course_id": 42, "currency": "USD", "card_token": "tok_visa"}`))
	rr := httptest.NewRecorder()
	handler.SubmitStub(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestStatusByTransactionIDNotFoundIs404(t *testing.T) {
	handler, _ := newPaymentHandlerForTest()

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/payments/stub/999", nil), "transaction_id", "999")
	rr := httptest.NewRecorder()
	handler.StatusByTransactionID(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStatusByIntentIDUnknownIs200Pending(t *testing.T) {
	handler, _ := newPaymentHandlerForTest()

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/payments/status/no-such", nil), "payment_intent_id", "no-such")
	rr := httptest.NewRecorder()
	handler.StatusByIntentID(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}

	var payload dto.PaymentStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != paymentsvc.StatusNotFoundOrPending {
		t.Fatalf("expected %q, got %q", paymentsvc.StatusNotFoundOrPending, payload.Status)
	}
	if payload.CourseID != 0 || payload.Currency != "N/A" {
		t.Fatalf("unexpected synthetic payload: %+v", payload)
	}
}

func TestStatusByIntentIDStoredTransaction(t *testing.T) {
	handler, env := newPaymentHandlerForTest()
	intentID := "intent-9"
	env.transactions.byIntent[intentID] = pgrepo.PaymentTransactionRecord{
		ID:              9,
		PaymentIntentID: &intentID,
		CourseID:        42,
		UserID:          7,
		Currency:        "USD",
		Status:          enums.PaymentStatusSuccess,
		UpdatedAt:       time.Now(),
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/payments/status/intent-9", nil), "payment_intent_id", "intent-9")
	rr := httptest.NewRecorder()
	handler.StatusByIntentID(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}

	var payload dto.PaymentStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "success" || payload.TransactionID == nil || *payload.TransactionID != 9 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

type testPaymentsEnv struct {
	transactions *testTransactionStore
	purchases    *testPurchaseStore
	courses      *testCourseStore
	publisher    *testPublisher
}

func newPaymentHandlerForTest() (*PaymentHandler, *testPaymentsEnv) {
	env := &testPaymentsEnv{
		transactions: &testTransactionStore{
			byID:     make(map[int64]pgrepo.PaymentTransactionRecord),
			byIntent: make(map[string]pgrepo.PaymentTransactionRecord),
		},
		purchases: &testPurchaseStore{owned: make(map[string]bool)},
		courses:   &testCourseStore{existing: map[int64]bool{42: true}},
		publisher: &testPublisher{},
	}
	svc := paymentsvc.NewService(paymentsvc.Dependencies{
		Transactions: env.transactions,
		Purchases:    env.purchases,
		Courses:      env.courses,
		Publisher:    env.publisher,
	}, "payment_requests_queue")
	return NewPaymentHandler(svc), env
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		UserID: 7,
		SID:    "sid-7",
		Role:   string(enums.RoleStudent),
	}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type testPublisher struct {
	published [][]byte
	err       error
}

func (p *testPublisher) Publish(_ context.Context, _ string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

type testPurchaseStore struct {
	owned map[string]bool
}

func (s *testPurchaseStore) Exists(_ context.Context, userID, courseID int64) (bool, error) {
	return s.owned[key(userID, courseID)], nil
}

type testCourseStore struct {
	existing map[int64]bool
}

func (s *testCourseStore) Exists(_ context.Context, courseID int64) (bool, error) {
	return s.existing[courseID], nil
}

type testTransactionStore struct {
	byID     map[int64]pgrepo.PaymentTransactionRecord
	byIntent map[string]pgrepo.PaymentTransactionRecord
}

func (s *testTransactionStore) Create(_ context.Context, p pgrepo.CreateTransactionParams) (pgrepo.PaymentTransactionRecord, error) {
	return pgrepo.PaymentTransactionRecord{}, nil
}

func (s *testTransactionStore) CreateSuccessWithEntitlement(_ context.Context, p pgrepo.CreateTransactionParams) (pgrepo.PaymentTransactionRecord, error) {
	return pgrepo.PaymentTransactionRecord{}, nil
}

func (s *testTransactionStore) FindByID(_ context.Context, id int64) (pgrepo.PaymentTransactionRecord, error) {
	rec, ok := s.byID[id]
	if !ok {
		return pgrepo.PaymentTransactionRecord{}, pgrepo.ErrPaymentTransactionNotFound
	}
	return rec, nil
}

func (s *testTransactionStore) FindByIntentID(_ context.Context, intentID string) (pgrepo.PaymentTransactionRecord, error) {
	rec, ok := s.byIntent[intentID]
	if !ok {
		return pgrepo.PaymentTransactionRecord{}, pgrepo.ErrPaymentTransactionNotFound
	}
	return rec, nil
}

func key(userID, courseID int64) string {
	return strconv.FormatInt(userID, 10) + "/" + strconv.FormatInt(courseID, 10)
}
