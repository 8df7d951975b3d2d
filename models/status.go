package models

import "fmt"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is one of the known order statuses
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transitions are expected from s
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PaymentStatus is the payment axis of an order, independent of OrderStatus
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ParsePaymentOutcome maps a payment gateway outcome onto a PaymentStatus.
// "paid" is accepted as an alias of "completed".
func ParsePaymentOutcome(outcome string) (PaymentStatus, error) {
	switch outcome {
	case "paid", string(PaymentStatusCompleted):
		return PaymentStatusCompleted, nil
	case string(PaymentStatusFailed):
		return PaymentStatusFailed, nil
	case string(PaymentStatusPending):
		return PaymentStatusPending, nil
	}
	return "", fmt.Errorf("unknown payment status %q", outcome)
}

// Free-form timeline event kinds. They are recorded in OrderEvent.Status but never change Order.Status.
const (
	EventMessageSent     = "message_sent"
	EventDocumentAdded   = "document_added"
	EventDocumentRemoved = "document_removed"
	EventPaymentUpdated  = "payment_updated"
	EventNote            = "note"
)

// TransitionMode selects how strictly a TransitionPolicy checks status changes
type TransitionMode string

const (
	// TransitionPermissive allows any status to be set from any status
	TransitionPermissive TransitionMode = "permissive"
	// TransitionStrict only allows the edges in the transition table
	TransitionStrict TransitionMode = "strict"
)

// DefaultTransitions is the order lifecycle graph. Terminal states have no outgoing edges.
var DefaultTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// TransitionPolicy decides which status changes UpdateOrderStatus accepts
type TransitionPolicy struct {
	Mode    TransitionMode
	Allowed map[OrderStatus][]OrderStatus
}

// NewTransitionPolicy builds a policy over DefaultTransitions.
// Unknown modes fall back to permissive.
func NewTransitionPolicy(mode string) TransitionPolicy {
	m := TransitionMode(mode)
	if m != TransitionStrict {
		m = TransitionPermissive
	}
	return TransitionPolicy{Mode: m, Allowed: DefaultTransitions}
}

// Allows reports whether an order in from may move to to
func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	if !to.Valid() {
		return false
	}
	if p.Mode != TransitionStrict {
		return true
	}
	for _, next := range p.Allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsStatusEvent reports whether an event status records a lifecycle transition
func IsStatusEvent(status string) bool {
	return OrderStatus(status).Valid()
}

// DeriveStatus returns the status of the last status-transition event in timeline
func DeriveStatus(timeline []OrderEvent) (OrderStatus, bool) {
	for i := len(timeline) - 1; i >= 0; i-- {
		if IsStatusEvent(timeline[i].Status) {
			return OrderStatus(timeline[i].Status), true
		}
	}
	return "", false
}
