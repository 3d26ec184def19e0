package dto

// PendingOrderRequestDTO records the order the user is about to pay for.
type PendingOrderRequestDTO struct {
	OrderID string `json:"order_id" validate:"required,max=128"`
}
