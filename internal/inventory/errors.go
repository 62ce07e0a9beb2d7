package inventory

import "errors"

var (
	// ErrOutOfStock means no inventory row can serve the request right
	// now. For a paid order the caller must follow up with RefundOrder.
	ErrOutOfStock = errors.New("no eligible inventory available")

	// ErrOrderNotFound covers both absent orders and orders owned by a
	// different requester.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition is returned when an order is not in a state
	// the requested transition starts from.
	ErrInvalidTransition = errors.New("invalid order status transition")
)
