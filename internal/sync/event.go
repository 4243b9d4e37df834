// Package sync implements the bidirectional synchronization engine: webhook
// events are normalized into a canonical form and applied to the local store,
// periodic batch runs pull from and push to the Brevo API.
package sync

import "time"

// Kind identifies a canonical event after normalization. Vendor-specific
// event names (meeting.*, call.*) normalize into the booking kinds.
type Kind string

const (
	ContactCreated Kind = "contact.created"
	ContactUpdated Kind = "contact.updated"
	ContactDeleted Kind = "contact.deleted"

	ListCreated Kind = "list.created"
	ListUpdated Kind = "list.updated"
	ListDeleted Kind = "list.deleted"

	BookingCreated   Kind = "booking.created"
	BookingUpdated   Kind = "booking.updated"
	BookingCancelled Kind = "booking.cancelled"
)

// Event is the canonical form every inbound payload is normalized into
// before the engine sees it. Exactly one of the payload pointers is set,
// matching the kind.
type Event struct {
	Kind       Kind
	DeliveryID string
	EntityID   string

	// Timestamp is the remote modification time as a naive UTC wall clock;
	// any offset in the source payload has been stripped.
	Timestamp time.Time

	Contact *ContactPayload
	List    *ListPayload
	Booking *BookingPayload
}

// ContactPayload carries the remote contact state of a contact event.
type ContactPayload struct {
	ID         string
	Email      string
	Attributes map[string]any
	ListIDs    []int64
}

// ListPayload carries the remote list state of a list event.
type ListPayload struct {
	ID   string
	Name string
}

// Participant is one attendee of a booking.
type Participant struct {
	Name  string
	Email string
}

// QA is one answered question from a booking form.
type QA struct {
	Question string
	Answer   string
}

// BookingPayload carries the booking state of a booking event.
//
// StartedOnly marks events normalized from call.started: they assert the
// booking exists but carry no new state, so applying one over an existing
// lead is a no-op.
type BookingPayload struct {
	ID           string
	Name         string
	Start        time.Time
	End          time.Time
	Notes        string
	Participants []Participant
	Answers      []QA
	StartedOnly  bool
}
