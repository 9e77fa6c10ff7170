package enums

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusSuccess           PaymentStatus = "success"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusDuplicatePurchase PaymentStatus = "duplicate_purchase"
)
