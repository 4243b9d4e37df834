package sync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
)

// In-memory repository fakes shared by the engine and batch tests.

type fakeContacts struct {
	mu          sync.Mutex
	nextID      int64
	byID        map[int64]*store.Contact
	memberships map[int64][]int64
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{byID: make(map[int64]*store.Contact)}
}

func (f *fakeContacts) GetByID(_ context.Context, id int64) (*store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContacts) GetByBrevoID(_ context.Context, brevoID string) (*store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.BrevoID != nil && *c.BrevoID == brevoID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeContacts) GetByEmail(_ context.Context, email string) (*store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeContacts) Create(_ context.Context, c store.Contact) (*store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	stored := c
	f.byID[c.ID] = &stored
	cp := c
	return &cp, nil
}

func (f *fakeContacts) Update(_ context.Context, c store.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	c.BrevoID = cur.BrevoID
	stored := c
	f.byID[c.ID] = &stored
	return nil
}

func (f *fakeContacts) ClaimBrevoID(_ context.Context, id int64, brevoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.ID != id && c.BrevoID != nil && *c.BrevoID == brevoID {
			return store.ErrRemoteIDTaken
		}
	}
	c, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.BrevoID != nil && *c.BrevoID != brevoID {
		return store.ErrRemoteIDImmutable
	}
	c.BrevoID = &brevoID
	return nil
}

func (f *fakeContacts) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Active = false
	return nil
}

func (f *fakeContacts) ListPendingSync(_ context.Context, limit int) ([]store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Contact
	for _, c := range f.byID {
		if c.Active && c.SyncStatus != store.SyncSynced && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeContacts) SetMemberships(_ context.Context, contactID int64, listIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberships == nil {
		f.memberships = make(map[int64][]int64)
	}
	f.memberships[contactID] = listIDs
	return nil
}

func (f *fakeContacts) Memberships(_ context.Context, contactID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberships[contactID], nil
}

type fakeLists struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*store.ContactList
}

func newFakeLists() *fakeLists {
	return &fakeLists{byID: make(map[int64]*store.ContactList)}
}

func (f *fakeLists) GetByID(_ context.Context, id int64) (*store.ContactList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLists) GetByBrevoID(_ context.Context, brevoID string) (*store.ContactList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byID {
		if l.BrevoID != nil && *l.BrevoID == brevoID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeLists) GetByName(_ context.Context, name string) (*store.ContactList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byID {
		if l.Name == name {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeLists) Create(_ context.Context, l store.ContactList) (*store.ContactList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = f.nextID
	stored := l
	f.byID[l.ID] = &stored
	cp := l
	return &cp, nil
}

func (f *fakeLists) Update(_ context.Context, l store.ContactList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[l.ID]; !ok {
		return store.ErrNotFound
	}
	stored := l
	f.byID[l.ID] = &stored
	return nil
}

func (f *fakeLists) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Active = false
	return nil
}

type fakeCountries struct {
	countries []store.Country
}

func (f *fakeCountries) GetByID(_ context.Context, id int64) (*store.Country, error) {
	for i := range f.countries {
		if f.countries[i].ID == id {
			return &f.countries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCountries) GetByName(_ context.Context, name string) (*store.Country, error) {
	for i := range f.countries {
		if strings.EqualFold(f.countries[i].Name, name) {
			return &f.countries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeLeads struct {
	mu        sync.Mutex
	nextID    int64
	byBooking map[string]*store.Lead
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{byBooking: make(map[string]*store.Lead)}
}

func (f *fakeLeads) GetByBookingID(_ context.Context, bookingID string) (*store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byBooking[bookingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeads) Upsert(_ context.Context, l store.Lead) (*store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.byBooking[l.BookingID]; ok {
		l.ID = cur.ID
	} else {
		f.nextID++
		l.ID = f.nextID
	}
	stored := l
	f.byBooking[l.BookingID] = &stored
	cp := l
	return &cp, nil
}

func (f *fakeLeads) MarkLost(_ context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byBooking[bookingID]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = store.LeadLost
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []store.SyncLogEntry
}

func (f *fakeLogs) Append(_ context.Context, e store.SyncLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLogs) HasSuccessfulDelivery(_ context.Context, deliveryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.DeliveryID == deliveryID && e.Outcome == "success" {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLogs) Recent(_ context.Context, limit int) ([]store.SyncLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.entries)
	if limit > n {
		limit = n
	}
	out := make([]store.SyncLogEntry, limit)
	copy(out, f.entries[n-limit:])
	return out, nil
}
