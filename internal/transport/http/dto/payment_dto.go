package dto

import "time"

type PaymentStubRequest struct {
	CourseID  int64  `json:"course_id"`
	Currency  string `json:"currency"`
	CardToken string `json:"card_token"`
}

// PaymentStatusResponse is shared by the submit endpoint and both status
// endpoints. TransactionID stays null until the worker stores a row.
type PaymentStatusResponse struct {
	Status          string    `json:"status"`
	PaymentIntentID *string   `json:"payment_intent_id"`
	TransactionID   *int64    `json:"transaction_id"`
	CourseID        int64     `json:"course_id"`
	Currency        string    `json:"currency"`
	Message         *string   `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}
