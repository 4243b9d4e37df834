package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/neuhubereco/odoo-brevo-sync/internal/brevo"
	"github.com/neuhubereco/odoo-brevo-sync/internal/mapping"
	"github.com/neuhubereco/odoo-brevo-sync/internal/metrics"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
)

// Batcher runs the scheduled bidirectional sync: paginated pulls from the
// Brevo API funneled through the engine, and pushes of locally modified
// contacts. API calls go through the blocking limiter path since batch runs
// are not latency sensitive.
type Batcher struct {
	client    *brevo.Client
	engine    *Engine
	batchSize int
}

// NewBatcher wires a batcher over the engine's store and the API client.
func NewBatcher(client *brevo.Client, engine *Engine, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Batcher{client: client, engine: engine, batchSize: batchSize}
}

// RunPeriodic executes a full sync pass every interval until ctx is
// cancelled. The first pass runs immediately.
func (b *Batcher) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		b.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Batcher) runOnce(ctx context.Context) {
	if err := b.SyncLists(ctx); err != nil {
		log.Printf("[ERROR] list sync pass failed: %v", err)
	}
	if err := b.SyncContacts(ctx, nil); err != nil {
		log.Printf("[ERROR] contact pull pass failed: %v", err)
	}
	if err := b.PushPending(ctx); err != nil {
		log.Printf("[ERROR] contact push pass failed: %v", err)
	}
}

// SyncContacts pulls remote contacts page by page and replays each as an
// inbound update through the engine. modifiedSince narrows the pull to
// contacts changed after the given instant; nil pulls everything.
func (b *Batcher) SyncContacts(ctx context.Context, modifiedSince *time.Time) error {
	grant := NewSystemGrant("batch")
	for offset := 0; ; offset += b.batchSize {
		page, total, err := b.client.GetContacts(ctx, b.batchSize, offset, modifiedSince)
		if err != nil {
			return fmt.Errorf("pull contacts at offset %d: %w", offset, err)
		}
		for i := range page {
			ev := contactEvent(&page[i])
			if _, err := b.engine.ProcessEvent(ctx, grant, ev); err != nil {
				log.Printf("[WARN] batch contact %s: %v", ev.EntityID, err)
			}
		}
		if len(page) == 0 || int64(offset+len(page)) >= total {
			return nil
		}
	}
}

// SyncLists pulls remote lists and replays them as inbound list updates.
func (b *Batcher) SyncLists(ctx context.Context) error {
	grant := NewSystemGrant("batch")
	for offset := 0; ; offset += b.batchSize {
		page, total, err := b.client.GetLists(ctx, b.batchSize, offset)
		if err != nil {
			return fmt.Errorf("pull lists at offset %d: %w", offset, err)
		}
		for i := range page {
			l := &page[i]
			ev := &Event{
				Kind:       ListUpdated,
				DeliveryID: "batch:list:" + l.ID.String() + ":" + l.UpdatedAt,
				EntityID:   l.ID.String(),
				Timestamp:  naiveTime(l.UpdatedAt),
				List:       &ListPayload{ID: l.ID.String(), Name: l.Name},
			}
			if _, err := b.engine.ProcessEvent(ctx, grant, ev); err != nil {
				log.Printf("[WARN] batch list %s: %v", ev.EntityID, err)
			}
		}
		if len(page) == 0 || int64(offset+len(page)) >= total {
			return nil
		}
	}
}

// contactEvent converts a pulled API contact into a canonical event. The
// delivery id is derived from id and modification time so an unchanged
// contact seen on consecutive pulls dedups against the sync log.
func contactEvent(c *brevo.Contact) *Event {
	return &Event{
		Kind:       ContactUpdated,
		DeliveryID: "batch:contact:" + c.ID.String() + ":" + c.ModifiedAt,
		EntityID:   c.ID.String(),
		Timestamp:  naiveTime(c.ModifiedAt),
		Contact: &ContactPayload{
			ID:         c.ID.String(),
			Email:      c.Email,
			Attributes: c.Attributes,
			ListIDs:    c.ListIDs,
		},
	}
}

// PushPending pushes locally modified contacts to the API. Before updating
// an already-linked contact the remote modification time is fetched and the
// push skipped when the remote side is newer; the next pull reconciles.
func (b *Batcher) PushPending(ctx context.Context) error {
	pending, err := b.engine.contacts.ListPendingSync(ctx, b.batchSize)
	if err != nil {
		return fmt.Errorf("list pending contacts: %w", err)
	}
	for i := range pending {
		b.pushOne(ctx, &pending[i])
	}
	return nil
}

func (b *Batcher) pushOne(ctx context.Context, c *store.Contact) {
	outcome, pushErr := b.push(ctx, c)
	b.recordPush(ctx, c, outcome, pushErr)
	metrics.CountEvent("contact.push", logOutcome(outcome))

	now := b.engine.now().UTC().Truncate(time.Second)
	switch outcome {
	case Applied, SkippedStale:
		c.SyncStatus = store.SyncSynced
		c.SyncError = nil
		c.LastSyncAt = &now
	default:
		detail := pushErr.Error()
		c.SyncStatus = store.SyncError
		c.SyncError = &detail
	}
	if err := b.engine.contacts.Update(ctx, *c); err != nil {
		log.Printf("[ERROR] update sync status for contact %d: %v", c.ID, err)
	}
}

func (b *Batcher) push(ctx context.Context, c *store.Contact) (Outcome, error) {
	attrs, err := mapping.ToRemote(ctx, b.engine.mappings.Fields(), localRecord(c), b.engine.resolver())
	if err != nil {
		return Failed, err
	}
	listIDs, err := b.remoteListIDs(ctx, c.ID)
	if err != nil {
		return Failed, err
	}

	if c.BrevoID != nil {
		remote, err := b.client.GetContact(ctx, *c.BrevoID)
		if err != nil && !errors.Is(err, brevo.ErrNotFound) {
			return Failed, err
		}
		if remote != nil {
			if mod := naiveTime(remote.ModifiedAt); !mod.IsZero() && mod.After(c.LastModified) {
				return SkippedStale, nil
			}
			if err := b.client.UpdateContact(ctx, *c.BrevoID, brevo.UpdateContact{Attributes: attrs, ListIDs: listIDs}); err != nil {
				return Failed, err
			}
			return Applied, nil
		}
		// Remote record vanished; fall through and recreate it.
	}

	id, err := b.client.CreateContact(ctx, brevo.CreateContact{
		Email:         c.Email,
		Attributes:    attrs,
		ListIDs:       listIDs,
		UpdateEnabled: true,
	})
	if err != nil {
		return Failed, err
	}
	if id != "" && (c.BrevoID == nil || *c.BrevoID != id) {
		if err := b.engine.contacts.ClaimBrevoID(ctx, c.ID, id); err != nil {
			return Failed, err
		}
		c.BrevoID = &id
	}
	return Applied, nil
}

// remoteListIDs resolves a contact's local list memberships to Brevo list
// ids. Lists not yet linked to a remote id are left out; the list sync pass
// links them and the next push carries them along.
func (b *Batcher) remoteListIDs(ctx context.Context, contactID int64) ([]int64, error) {
	local, err := b.engine.contacts.Memberships(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("memberships for contact %d: %w", contactID, err)
	}
	var remote []int64
	for _, id := range local {
		l, err := b.engine.lists.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve list %d: %w", id, err)
		}
		if l.BrevoID == nil {
			continue
		}
		n, err := strconv.ParseInt(*l.BrevoID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("list %d has non-numeric remote id %q", id, *l.BrevoID)
		}
		remote = append(remote, n)
	}
	return remote, nil
}

func (b *Batcher) recordPush(ctx context.Context, c *store.Contact, outcome Outcome, cause error) {
	entry := store.SyncLogEntry{
		ID:         uuid.New(),
		DeliveryID: "push:contact:" + strconv.FormatInt(c.ID, 10) + ":" + c.LastModified.Format("2006-01-02 15:04:05"),
		Operation:  "contact.push",
		Direction:  "outbound",
		Outcome:    logOutcome(outcome),
		Email:      c.Email,
	}
	if c.BrevoID != nil {
		entry.BrevoID = *c.BrevoID
	}
	switch outcome {
	case Applied:
		entry.Message = "batch: contact pushed"
	case SkippedStale:
		entry.Message = "batch: remote record is newer"
	default:
		entry.Message = "batch: push failed"
	}
	if cause != nil {
		detail := cause.Error()
		entry.ErrorDetail = &detail
	}
	if err := b.engine.logs.Append(ctx, entry); err != nil {
		log.Printf("[WARN] sync log append failed for contact %d: %v", c.ID, err)
	}
}

// localRecord flattens a contact into the mapper's field-name keyed form.
func localRecord(c *store.Contact) map[string]any {
	m := map[string]any{
		"name":    c.Name,
		"email":   c.Email,
		"mobile":  c.Mobile,
		"phone":   c.Phone,
		"street":  c.Street,
		"city":    c.City,
		"zip":     c.Zip,
		"website": c.Website,
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if c.CountryID != nil {
		m["country"] = strconv.FormatInt(*c.CountryID, 10)
	}
	return m
}
