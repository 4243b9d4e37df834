package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neuhubereco/odoo-brevo-sync/internal/mapping"
	"github.com/neuhubereco/odoo-brevo-sync/internal/metrics"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
)

// Outcome is the terminal state of one processed event.
type Outcome string

const (
	Applied          Outcome = "applied"
	SkippedDuplicate Outcome = "skipped-duplicate"
	SkippedStale     Outcome = "skipped-stale"
	SkippedMissing   Outcome = "skipped-missing"
	Failed           Outcome = "failed"
)

// Result reports what the engine did with an event.
type Result struct {
	Outcome Outcome
	Message string
}

// ErrNotPermitted is returned when an event arrives without a grant that
// allows store mutations.
var ErrNotPermitted = errors.New("sync: grant does not permit writes")

// Engine applies canonical events to the local store. It owns idempotency
// (delivery-id dedup against the sync log) and per-entity serialization.
type Engine struct {
	contacts  store.ContactRepository
	lists     store.ListRepository
	countries store.CountryRepository
	leads     store.LeadRepository
	logs      store.SyncLogRepository

	mappings *mapping.Table
	keys     *keyMutex
	now      func() time.Time
}

// NewEngine wires an engine over the given store and mapping table.
func NewEngine(st *store.Store, mappings *mapping.Table) *Engine {
	return &Engine{
		contacts:  st.Contacts,
		lists:     st.Lists,
		countries: st.Countries,
		leads:     st.Leads,
		logs:      st.SyncLog,
		mappings:  mappings,
		keys:      newKeyMutex(),
		now:       time.Now,
	}
}

// newEngineWith exists for tests that inject fakes and a fixed clock.
func newEngineWith(contacts store.ContactRepository, lists store.ListRepository, countries store.CountryRepository, leads store.LeadRepository, logs store.SyncLogRepository, mappings *mapping.Table, now func() time.Time) *Engine {
	return &Engine{
		contacts:  contacts,
		lists:     lists,
		countries: countries,
		leads:     leads,
		logs:      logs,
		mappings:  mappings,
		keys:      newKeyMutex(),
		now:       now,
	}
}

// ProcessEvent runs one canonical event to a terminal outcome. Every
// terminal state is recorded in the sync log; log writes are best-effort
// and never fail an otherwise-successful event.
func (e *Engine) ProcessEvent(ctx context.Context, grant Grant, ev *Event) (Result, error) {
	if !grant.PermitsWrite() {
		return Result{Outcome: Failed, Message: "not permitted"}, ErrNotPermitted
	}

	key := string(ev.Kind[:strings.IndexByte(string(ev.Kind), '.')]) + ":" + ev.EntityID
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	// Checked under the key lock so two concurrent copies of the same
	// delivery cannot both pass and both apply.
	done, err := e.logs.HasSuccessfulDelivery(ctx, ev.DeliveryID)
	if err != nil {
		return Result{Outcome: Failed, Message: "idempotency check failed"}, err
	}
	if done {
		res := Result{Outcome: SkippedDuplicate, Message: "delivery already processed"}
		e.record(ctx, grant, ev, res, nil)
		return res, nil
	}

	var res Result
	switch ev.Kind {
	case ContactCreated, ContactUpdated:
		res, err = e.applyContact(ctx, ev)
	case ContactDeleted:
		res, err = e.deleteContact(ctx, ev)
	case ListCreated, ListUpdated:
		res, err = e.applyList(ctx, ev)
	case ListDeleted:
		res, err = e.deleteList(ctx, ev)
	case BookingCreated, BookingUpdated:
		res, err = e.applyBooking(ctx, ev)
	case BookingCancelled:
		res, err = e.cancelBooking(ctx, ev)
	default:
		return Result{Outcome: Failed}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
	if err != nil {
		res = Result{Outcome: Failed, Message: err.Error()}
	}

	e.record(ctx, grant, ev, res, err)
	metrics.CountEvent(string(ev.Kind), logOutcome(res.Outcome))
	return res, err
}

func (e *Engine) eventTime(ev *Event) time.Time {
	if ev.Timestamp.IsZero() {
		return e.now().UTC().Truncate(time.Second)
	}
	return ev.Timestamp
}

func (e *Engine) applyContact(ctx context.Context, ev *Event) (Result, error) {
	p := ev.Contact
	local, err := e.findContact(ctx, p.ID, p.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, err
	}

	incoming := e.eventTime(ev)
	if local != nil && !ShouldApply(&local.LastModified, incoming) {
		return Result{Outcome: SkippedStale, Message: "local record is newer"}, nil
	}

	mapped, err := mapping.ToLocal(ctx, e.mappings.Fields(), p.Attributes, e.resolver())
	if err != nil {
		return Result{}, err
	}

	var c store.Contact
	if local != nil {
		c = *local
	} else {
		c.Active = true
	}
	if p.Email != "" {
		c.Email = p.Email
	}
	applyMapped(&c, mapped)
	c.SyncStatus = store.SyncSynced
	c.SyncError = nil
	if local != nil {
		c.LastModified = MergedModified(&local.LastModified, incoming)
	} else {
		c.LastModified = incoming
	}

	if local == nil {
		created, err := e.contacts.Create(ctx, c)
		if err != nil {
			return Result{}, err
		}
		c = *created
	} else if err := e.contacts.Update(ctx, c); err != nil {
		return Result{}, err
	}

	if p.ID != "" && (c.BrevoID == nil || *c.BrevoID != p.ID) {
		if err := e.contacts.ClaimBrevoID(ctx, c.ID, p.ID); err != nil {
			return Result{}, err
		}
	}
	if p.ListIDs != nil {
		localIDs, err := e.resolveLists(ctx, p.ListIDs)
		if err != nil {
			return Result{}, err
		}
		if err := e.contacts.SetMemberships(ctx, c.ID, localIDs); err != nil {
			return Result{}, err
		}
	}
	return Result{Outcome: Applied, Message: "contact synced"}, nil
}

func (e *Engine) deleteContact(ctx context.Context, ev *Event) (Result, error) {
	local, err := e.findContact(ctx, ev.Contact.ID, ev.Contact.Email)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: SkippedMissing, Message: "contact unknown locally"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if err := e.contacts.Deactivate(ctx, local.ID); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Applied, Message: "contact deactivated"}, nil
}

// findContact locates a local contact by remote id first, then email.
func (e *Engine) findContact(ctx context.Context, brevoID, email string) (*store.Contact, error) {
	if brevoID != "" {
		c, err := e.contacts.GetByBrevoID(ctx, brevoID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if email != "" {
		return e.contacts.GetByEmail(ctx, email)
	}
	return nil, store.ErrNotFound
}

func (e *Engine) applyList(ctx context.Context, ev *Event) (Result, error) {
	p := ev.List
	name := p.Name
	if name == "" {
		name = "list-" + p.ID
	}
	l, err := e.lists.GetByBrevoID(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		_, err := e.lists.Create(ctx, store.ContactList{BrevoID: &p.ID, Name: name, Active: true})
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: Applied, Message: "list created"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	l.Name = name
	l.Active = true
	if err := e.lists.Update(ctx, *l); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Applied, Message: "list updated"}, nil
}

func (e *Engine) deleteList(ctx context.Context, ev *Event) (Result, error) {
	l, err := e.lists.GetByBrevoID(ctx, ev.List.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: SkippedMissing, Message: "list unknown locally"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if err := e.lists.Deactivate(ctx, l.ID); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Applied, Message: "list deactivated"}, nil
}

func (e *Engine) applyBooking(ctx context.Context, ev *Event) (Result, error) {
	b := ev.Booking

	existing, err := e.leads.GetByBookingID(ctx, b.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, err
	}
	if b.StartedOnly {
		if existing != nil {
			return Result{Outcome: Applied, Message: "booking already tracked"}, nil
		}
		// A started event for an untracked booking still seeds the lead,
		// it just carries less detail than a created event would.
	}

	if len(b.Participants) == 0 {
		return Result{}, &MalformedPayloadError{Reason: "booking without participants"}
	}
	lead := store.Lead{
		BookingID:   b.ID,
		Title:       composeTitle(b),
		Description: composeDescription(b),
		Status:      store.LeadOpen,
	}
	if !b.Start.IsZero() {
		start := b.Start
		lead.BookingTime = &start
	}

	contact, err := e.resolveParticipant(ctx, b.Participants[0], ev)
	if err != nil {
		return Result{}, err
	}
	lead.ContactID = contact.ID

	if _, err := e.leads.Upsert(ctx, lead); err != nil {
		return Result{}, err
	}
	if existing != nil {
		return Result{Outcome: Applied, Message: "lead updated"}, nil
	}
	return Result{Outcome: Applied, Message: "lead created"}, nil
}

func (e *Engine) cancelBooking(ctx context.Context, ev *Event) (Result, error) {
	_, err := e.leads.GetByBookingID(ctx, ev.Booking.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: SkippedMissing, Message: "cancellation for untracked booking"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if err := e.leads.MarkLost(ctx, ev.Booking.ID); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Applied, Message: "lead marked lost"}, nil
}

// resolveParticipant finds the contact behind a booking participant,
// creating one when no record matches the email.
func (e *Engine) resolveParticipant(ctx context.Context, p Participant, ev *Event) (*store.Contact, error) {
	if p.Email == "" {
		return nil, &MalformedPayloadError{Reason: "participant without email"}
	}
	c, err := e.contacts.GetByEmail(ctx, p.Email)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return e.contacts.Create(ctx, store.Contact{
		Email:        p.Email,
		Name:         p.Name,
		Active:       true,
		SyncStatus:   store.SyncSynced,
		LastModified: e.eventTime(ev),
	})
}

// resolveLists maps remote list ids to local list ids, lazily creating a
// placeholder list for ids never seen before. Dedup is by remote id; the
// placeholder name is corrected when a list.updated event arrives.
func (e *Engine) resolveLists(ctx context.Context, remote []int64) ([]int64, error) {
	local := make([]int64, 0, len(remote))
	for _, id := range remote {
		rid := strconv.FormatInt(id, 10)
		l, err := e.lists.GetByBrevoID(ctx, rid)
		if errors.Is(err, store.ErrNotFound) {
			l, err = e.lists.Create(ctx, store.ContactList{BrevoID: &rid, Name: "list-" + rid, Active: true})
		}
		if err != nil {
			return nil, err
		}
		local = append(local, l.ID)
	}
	return local, nil
}

func composeTitle(b *BookingPayload) string {
	who := ""
	if len(b.Participants) > 0 {
		who = b.Participants[0].Name
	}
	switch {
	case who != "" && b.Name != "":
		return who + " - " + b.Name
	case b.Name != "":
		return b.Name
	case who != "":
		return who
	}
	return "Booking " + b.ID
}

func composeDescription(b *BookingPayload) string {
	var sb strings.Builder
	if b.Notes != "" {
		sb.WriteString(b.Notes)
	}
	if len(b.Answers) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Questions & Answers:\n")
		for _, qa := range b.Answers {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
	}
	return sb.String()
}

// record appends the terminal outcome to the sync log. Best effort: a log
// write failure must not turn a successful sync into a failed one.
func (e *Engine) record(ctx context.Context, grant Grant, ev *Event, res Result, cause error) {
	entry := store.SyncLogEntry{
		ID:         uuid.New(),
		DeliveryID: ev.DeliveryID,
		Operation:  string(ev.Kind),
		Direction:  "inbound",
		Outcome:    logOutcome(res.Outcome),
		BrevoID:    ev.EntityID,
		Message:    grant.Origin() + ": " + res.Message,
	}
	if ev.Contact != nil {
		entry.Email = ev.Contact.Email
	}
	if cause != nil {
		detail := cause.Error()
		entry.ErrorDetail = &detail
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		log.Printf("[WARN] sync log append failed for delivery %s: %v", ev.DeliveryID, err)
	}
}

func logOutcome(o Outcome) string {
	switch o {
	case Applied:
		return "success"
	case Failed:
		return "error"
	default:
		return "skipped"
	}
}

// applyMapped copies mapped local field values onto a contact record.
func applyMapped(c *store.Contact, m map[string]any) {
	for field, v := range m {
		s, _ := v.(string)
		switch field {
		case "name":
			c.Name = s
		case "email":
			if s != "" {
				c.Email = strings.ToLower(s)
			}
		case "mobile":
			c.Mobile = s
		case "phone":
			c.Phone = s
		case "street":
			c.Street = s
		case "city":
			c.City = s
		case "zip":
			c.Zip = s
		case "website":
			c.Website = s
		case "country":
			if id, err := strconv.ParseInt(s, 10, 64); err == nil {
				c.CountryID = &id
			}
		}
	}
}

// resolver bridges the field mapper's reference lookups to the store.
func (e *Engine) resolver() mapping.Resolver {
	return &storeResolver{countries: e.countries, lists: e.lists}
}

type storeResolver struct {
	countries store.CountryRepository
	lists     store.ListRepository
}

func (r *storeResolver) DisplayName(ctx context.Context, field, id string) (string, error) {
	switch field {
	case "country":
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return "", mapping.ErrUnresolved
		}
		c, err := r.countries.GetByID(ctx, n)
		if errors.Is(err, store.ErrNotFound) {
			return "", mapping.ErrUnresolved
		}
		if err != nil {
			return "", err
		}
		return c.Name, nil
	}
	return "", mapping.ErrUnresolved
}

func (r *storeResolver) Reference(ctx context.Context, field, name string) (string, error) {
	switch field {
	case "country":
		// Countries are reference data, never auto-created.
		c, err := r.countries.GetByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return "", mapping.ErrUnresolved
		}
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(c.ID, 10), nil
	}
	return "", mapping.ErrUnresolved
}
