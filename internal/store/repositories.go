package store

import "context"

// ContactRepository defines persistence operations for synced contacts.
type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*Contact, error)
	GetByBrevoID(ctx context.Context, brevoID string) (*Contact, error)
	GetByEmail(ctx context.Context, email string) (*Contact, error)
	Create(ctx context.Context, c Contact) (*Contact, error)
	Update(ctx context.Context, c Contact) error
	// ClaimBrevoID assigns the remote id to a contact exactly once. It fails
	// with ErrRemoteIDTaken when another contact already holds the id and
	// with ErrRemoteIDImmutable when the contact carries a different one.
	ClaimBrevoID(ctx context.Context, id int64, brevoID string) error
	Deactivate(ctx context.Context, id int64) error
	// ListPendingSync returns active contacts whose local state has not been
	// pushed to Brevo yet (status never, pending, or error).
	ListPendingSync(ctx context.Context, limit int) ([]Contact, error)
	SetMemberships(ctx context.Context, contactID int64, listIDs []int64) error
	Memberships(ctx context.Context, contactID int64) ([]int64, error)
}

// ListRepository manages contact lists (categories).
type ListRepository interface {
	GetByID(ctx context.Context, id int64) (*ContactList, error)
	GetByBrevoID(ctx context.Context, brevoID string) (*ContactList, error)
	GetByName(ctx context.Context, name string) (*ContactList, error)
	Create(ctx context.Context, l ContactList) (*ContactList, error)
	Update(ctx context.Context, l ContactList) error
	Deactivate(ctx context.Context, id int64) error
}

// CountryRepository resolves country references by id or display name.
type CountryRepository interface {
	GetByID(ctx context.Context, id int64) (*Country, error)
	GetByName(ctx context.Context, name string) (*Country, error)
}

// LeadRepository handles CRM leads keyed by external booking id.
type LeadRepository interface {
	GetByBookingID(ctx context.Context, bookingID string) (*Lead, error)
	Upsert(ctx context.Context, l Lead) (*Lead, error)
	MarkLost(ctx context.Context, bookingID string) error
}

// SyncLogRepository is the append-only audit sink for sync attempts.
type SyncLogRepository interface {
	Append(ctx context.Context, e SyncLogEntry) error
	// HasSuccessfulDelivery reports whether a delivery id has already been
	// processed to a successful terminal outcome.
	HasSuccessfulDelivery(ctx context.Context, deliveryID string) (bool, error)
	Recent(ctx context.Context, limit int) ([]SyncLogEntry, error)
}
