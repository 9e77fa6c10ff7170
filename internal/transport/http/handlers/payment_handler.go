package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
	"github.com/delawer33/edumaster/internal/transport/http/dto"
	httperrors "github.com/delawer33/edumaster/internal/transport/http/errors"
)

type PaymentHandler struct {
	service *paymentsvc.Service
}

func NewPaymentHandler(service *paymentsvc.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// SubmitStub accepts the payment request and answers 202 with a pending
// intent. The actual charge is settled asynchronously by the worker.
func (h *PaymentHandler) SubmitStub(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.PaymentStubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	view, err := h.service.SubmitStub(r.Context(), paymentsvc.SubmitInput{
		UserID:    identity.UserID,
		CourseID:  req.CourseID,
		Currency:  req.Currency,
		CardToken: req.CardToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "course_id, currency and card_token are required")
		case errors.Is(err, paymentsvc.ErrAlreadyPurchased):
			httperrors.Write(w, http.StatusUnprocessableEntity, httperrors.APIError{
				Code:    "DUPLICATE_PURCHASE",
				Message: "course is already purchased",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusAccepted, statusResponse(view))
}

func (h *PaymentHandler) StatusByTransactionID(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transaction_id"), 10, 64)
	if err != nil || transactionID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "transaction_id must be a positive integer")
		return
	}

	view, err := h.service.StatusByTransactionID(r.Context(), transactionID)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrTransactionNotFound):
			writeNotFound(w, "TRANSACTION_NOT_FOUND", "transaction not found")
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid transaction id")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, statusResponse(view))
}

// StatusByIntentID answers 200 for every syntactically valid intent id.
// Unknown intents read as not_found_or_pending rather than 404.
func (h *PaymentHandler) StatusByIntentID(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	intentID := strings.TrimSpace(chi.URLParam(r, "payment_intent_id"))
	if intentID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "payment_intent_id is required")
		return
	}

	view, err := h.service.StatusByIntentID(r.Context(), intentID)
	if err != nil {
		if errors.Is(err, paymentsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment intent id")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, statusResponse(view))
}

func statusResponse(view paymentsvc.StatusView) dto.PaymentStatusResponse {
	return dto.PaymentStatusResponse{
		Status:          view.Status,
		PaymentIntentID: view.PaymentIntentID,
		TransactionID:   view.TransactionID,
		CourseID:        view.CourseID,
		Currency:        view.Currency,
		Message:         view.Message,
		Timestamp:       view.Timestamp,
	}
}
