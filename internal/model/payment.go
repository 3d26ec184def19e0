package model

// PaymentStatus is the lifecycle state of a payment order as reported by the backend.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether polling can stop at this status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentSuccess, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// OrderStatus is a single status response for a payment order.
type OrderStatus struct {
	OrderID string        `json:"order_id"`
	Status  PaymentStatus `json:"status"`
	Message string        `json:"message,omitempty"`
	Gateway string        `json:"gateway,omitempty"`
}

// PaymentOutcome is what a finished poll reports to its caller. A poll that
// exhausts its attempt budget is reported as failed with TimedOut set.
type PaymentOutcome struct {
	OrderID  string        `json:"order_id"`
	Status   PaymentStatus `json:"status"`
	Message  string        `json:"message,omitempty"`
	Attempts int           `json:"attempts"`
	TimedOut bool          `json:"timed_out"`
}
