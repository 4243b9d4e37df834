package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownEvent marks an event name outside the recognized families. Not
// a failure: the boundary acknowledges receipt so the sender stops retrying.
var ErrUnknownEvent = errors.New("sync: unknown event type")

// MalformedPayloadError reports a payload that parsed as JSON but is missing
// required structure. The sender's retry will carry the same bytes, so these
// are rejected without retry expectation.
type MalformedPayloadError struct {
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return "sync: malformed payload: " + e.Reason
}

// kindByName maps raw webhook event names to canonical kinds. The meeting
// and call families collapse into booking semantics.
var kindByName = map[string]Kind{
	"contact.created": ContactCreated,
	"contact.updated": ContactUpdated,
	"contact.deleted": ContactDeleted,

	"list.created": ListCreated,
	"list.updated": ListUpdated,
	"list.deleted": ListDeleted,

	"meeting.created":   BookingCreated,
	"meeting.updated":   BookingUpdated,
	"meeting.cancelled": BookingCancelled,
	"call.created":      BookingCreated,
	"call.started":      BookingCreated,
	"call.cancelled":    BookingCancelled,
}

type rawEnvelope struct {
	Event string          `json:"event"`
	Date  string          `json:"date"`
	Data  json.RawMessage `json:"data"`
}

type rawContact struct {
	ID         json.Number    `json:"id"`
	Email      string         `json:"email"`
	Attributes map[string]any `json:"attributes"`
	ListIDs    []int64        `json:"list_id"`
	ModifiedAt string         `json:"modified_at"`
}

type rawList struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type rawBooking struct {
	ID           json.Number      `json:"id"`
	MeetingName  string           `json:"meeting_name"`
	Start        string           `json:"meeting_start_timestamp"`
	End          string           `json:"meeting_end_timestamp"`
	Notes        string           `json:"meeting_notes"`
	Participants []rawParticipant `json:"event_participants"`
	Answers      []rawQA          `json:"questions_and_answers"`
}

type rawParticipant struct {
	Email     string `json:"EMAIL"`
	FirstName string `json:"FIRSTNAME"`
	LastName  string `json:"LASTNAME"`
}

type rawQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Normalize converts a raw webhook body into the canonical event form.
// deliveryID comes from transport metadata; when the sender supplied none,
// a deterministic id is derived from the body so replays still dedup.
func Normalize(body []byte, deliveryID string) (*Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid JSON envelope"}
	}
	if env.Event == "" {
		return nil, &MalformedPayloadError{Reason: "missing event name"}
	}
	kind, ok := kindByName[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if deliveryID == "" {
		sum := sha256.Sum256(body)
		deliveryID = hex.EncodeToString(sum[:16])
	}

	ev := &Event{
		Kind:       kind,
		DeliveryID: deliveryID,
		Timestamp:  naiveTime(env.Date),
	}

	switch {
	case strings.HasPrefix(string(kind), "contact."):
		return normalizeContact(ev, env.Data)
	case strings.HasPrefix(string(kind), "list."):
		return normalizeList(ev, env.Data)
	default:
		return normalizeBooking(ev, env.Data, env.Event)
	}
}

func normalizeContact(ev *Event, data json.RawMessage) (*Event, error) {
	var raw rawContact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid contact data"}
	}
	if raw.Email == "" && raw.ID == "" {
		return nil, &MalformedPayloadError{Reason: "contact event without id or email"}
	}
	ev.EntityID = raw.ID.String()
	if ev.EntityID == "" {
		ev.EntityID = strings.ToLower(strings.TrimSpace(raw.Email))
	}
	ev.Contact = &ContactPayload{
		ID:         raw.ID.String(),
		Email:      strings.ToLower(strings.TrimSpace(raw.Email)),
		Attributes: raw.Attributes,
		ListIDs:    raw.ListIDs,
	}
	if ts := naiveTime(raw.ModifiedAt); !ts.IsZero() {
		ev.Timestamp = ts
	}
	return ev, nil
}

func normalizeList(ev *Event, data json.RawMessage) (*Event, error) {
	var raw rawList
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid list data"}
	}
	if raw.ID == "" {
		return nil, &MalformedPayloadError{Reason: "list event without id"}
	}
	ev.EntityID = raw.ID.String()
	ev.List = &ListPayload{ID: raw.ID.String(), Name: raw.Name}
	return ev, nil
}

func normalizeBooking(ev *Event, data json.RawMessage, eventName string) (*Event, error) {
	var raw rawBooking
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid booking data"}
	}
	if raw.ID == "" {
		return nil, &MalformedPayloadError{Reason: "booking event without id"}
	}
	booking := &BookingPayload{
		ID:          raw.ID.String(),
		Name:        raw.MeetingName,
		Start:       naiveTime(raw.Start),
		End:         naiveTime(raw.End),
		Notes:       raw.Notes,
		StartedOnly: eventName == "call.started",
	}
	for _, p := range raw.Participants {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		booking.Participants = append(booking.Participants, Participant{
			Name:  name,
			Email: strings.ToLower(strings.TrimSpace(p.Email)),
		})
	}
	for _, qa := range raw.Answers {
		booking.Answers = append(booking.Answers, QA{Question: qa.Question, Answer: qa.Answer})
	}
	if ev.Kind != BookingCancelled && len(booking.Participants) == 0 {
		return nil, &MalformedPayloadError{Reason: "booking event without participants"}
	}
	ev.EntityID = booking.ID
	if !booking.Start.IsZero() {
		ev.Timestamp = booking.Start
	}
	ev.Booking = booking
	return ev, nil
}

// timestampLayouts covers the shapes the platform sends. Offset-bearing
// values are converted to UTC and the offset dropped; the stored wall clock
// is always the UTC instant.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// naiveTime parses a timestamp string into a naive UTC wall clock. Empty or
// unparseable input yields the zero time; the engine falls back to its own
// clock for conflict resolution in that case.
func naiveTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)
		}
	}
	return time.Time{}
}
