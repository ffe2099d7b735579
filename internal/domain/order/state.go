package order

import (
	"fmt"
	"time"
)

// State is the position of an order along its fulfillment axis.
type State string

const (
	StateCart           State = "cart"
	StateOrdered        State = "ordered"
	StateBeingDelivered State = "being_delivered"
	StateReceived       State = "received"
)

func (s State) rank() int {
	switch s {
	case StateCart:
		return 0
	case StateOrdered:
		return 1
	case StateBeingDelivered:
		return 2
	case StateReceived:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool { return s.rank() >= 0 }

// RefundState is the refund sub-state, orthogonal to State.
type RefundState string

const (
	RefundNone      RefundState = "none"
	RefundRequested RefundState = "requested"
	RefundGranted   RefundState = "granted"
)

// Valid reports whether r is a known refund state.
func (r RefundState) Valid() bool {
	return r == RefundNone || r == RefundRequested || r == RefundGranted
}

// Event drives an order from one state to the next.
type Event string

const (
	EventCheckout      Event = "checkout"
	EventStartDelivery Event = "start_delivery"
	EventMarkReceived  Event = "mark_received"
	EventRequestRefund Event = "request_refund"
	EventAcceptRefund  Event = "accept_refund"
)

// ParseEvent maps a wire name to an Event.
func ParseEvent(s string) (Event, bool) {
	switch ev := Event(s); ev {
	case EventCheckout, EventStartDelivery, EventMarkReceived, EventRequestRefund, EventAcceptRefund:
		return ev, true
	}
	return "", false
}

// InvalidTransitionError is returned when an event is not allowed in the
// order's current state. The order is left unchanged.
type InvalidTransitionError struct {
	Event  Event
	State  State
	Refund RefundState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in state %s (refund %s)", e.Event, e.State, e.Refund)
}

type edge struct {
	from, to State
}

var fulfillment = map[Event]edge{
	EventCheckout:      {from: StateCart, to: StateOrdered},
	EventStartDelivery: {from: StateOrdered, to: StateBeingDelivered},
	EventMarkReceived:  {from: StateBeingDelivered, to: StateReceived},
}

// Apply performs ev on o. On error o is not modified.
//
// Refund events only move the refund sub-state: a refund can be requested
// once the order is received, and accepting an already granted refund is a
// no-op. A granted refund never goes back.
func (o *Order) Apply(ev Event, now time.Time) error {
	invalid := &InvalidTransitionError{Event: ev, State: o.State, Refund: o.Refund}

	switch ev {
	case EventRequestRefund:
		if o.State != StateReceived || o.Refund != RefundNone {
			return invalid
		}
		o.Refund = RefundRequested
		return nil
	case EventAcceptRefund:
		switch o.Refund {
		case RefundGranted:
			return nil
		case RefundRequested:
			o.Refund = RefundGranted
			return nil
		default:
			return invalid
		}
	}

	e, ok := fulfillment[ev]
	if !ok || o.State != e.from {
		return invalid
	}
	if ev == EventCheckout {
		if len(o.Lines) == 0 {
			return ErrEmptyCart
		}
		o.OrderedDate = now
		for i := range o.Lines {
			o.Lines[i].Ordered = true
		}
	}
	o.State = e.to
	return nil
}
