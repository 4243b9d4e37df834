package store

import (
	"time"

	"github.com/google/uuid"
)

// Sync status values for contacts.
const (
	SyncNever   = "never"
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Lead status values.
const (
	LeadOpen = "open"
	LeadLost = "lost"
)

// Contact is the canonical person record kept in sync with Brevo.
//
// BrevoID is assigned on first successful sync (or taken from an inbound
// event) and is immutable afterwards; a unique index guarantees no two
// contacts claim the same remote id. Timestamps are stored naive, wall clock
// in UTC.
type Contact struct {
	ID           int64
	BrevoID      *string
	Email        string
	Name         string
	Mobile       string
	Phone        string
	Street       string
	City         string
	Zip          string
	Website      string
	CountryID    *int64
	Active       bool
	SyncStatus   string
	SyncError    *string
	LastModified time.Time
	LastSyncAt   *time.Time
	CreatedAt    time.Time
}

// ContactList mirrors a Brevo contact list as a local category.
type ContactList struct {
	ID        int64
	BrevoID   *string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Country is a reference record used by name-based field mappings.
type Country struct {
	ID   int64
	Code string
	Name string
}

// Lead is a CRM lead seeded from a Brevo booking. BookingID is the external
// booking identifier and is unique: repeated events for the same booking
// update the existing lead instead of creating another.
type Lead struct {
	ID          int64
	ContactID   int64
	BookingID   string
	Title       string
	Description string
	BookingTime *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SyncLogEntry records one sync attempt and its outcome. Entries are
// append-only and never mutated after write.
type SyncLogEntry struct {
	ID          uuid.UUID
	DeliveryID  string
	Operation   string
	Direction   string
	Outcome     string
	BrevoID     string
	Email       string
	Message     string
	ErrorDetail *string
	CreatedAt   time.Time
}
