package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuhubereco/odoo-brevo-sync/internal/brevo"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
)

func newBatchFixture(t *testing.T, handler http.Handler) (*Batcher, *engineFixture, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fx := newEngineFixture()
	client := brevo.NewClient(brevo.Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Limiter:     brevo.NewLimiter(6000, 100),
		MaxAttempts: 2,
	})
	return NewBatcher(client, fx.engine, 50), fx, srv
}

func TestPushPendingCreatesRemoteContact(t *testing.T) {
	mux := http.NewServeMux()
	var created map[string]any
	mux.HandleFunc("POST /contacts", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			t.Errorf("decode create body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 987}`))
	})
	batcher, fx, _ := newBatchFixture(t, mux)

	c, err := fx.contacts.Create(context.Background(), store.Contact{
		Email:        "a@b.com",
		Name:         "Verena Schweighuber",
		Active:       true,
		SyncStatus:   store.SyncNever,
		LastModified: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := batcher.PushPending(context.Background()); err != nil {
		t.Fatalf("PushPending: %v", err)
	}

	pushed, _ := fx.contacts.GetByID(context.Background(), c.ID)
	if pushed.BrevoID == nil || *pushed.BrevoID != "987" {
		t.Errorf("expected remote id claimed, got %v", pushed.BrevoID)
	}
	if pushed.SyncStatus != store.SyncSynced {
		t.Errorf("expected synced status, got %q", pushed.SyncStatus)
	}
	if pushed.LastSyncAt == nil {
		t.Error("expected last_sync_at set")
	}
	if created["email"] != "a@b.com" {
		t.Errorf("unexpected create payload %v", created)
	}
	attrs, _ := created["attributes"].(map[string]any)
	if attrs["FNAME"] != "Verena" || attrs["LNAME"] != "Schweighuber" {
		t.Errorf("expected split name attributes, got %v", attrs)
	}
}

func TestPushCarriesListMemberships(t *testing.T) {
	mux := http.NewServeMux()
	var created map[string]any
	mux.HandleFunc("POST /contacts", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			t.Errorf("decode create body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 988}`))
	})
	batcher, fx, _ := newBatchFixture(t, mux)

	listBrevoID := "7"
	linked, err := fx.lists.Create(context.Background(), store.ContactList{
		BrevoID: &listBrevoID, Name: "Newsletter", Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	unlinked, err := fx.lists.Create(context.Background(), store.ContactList{
		Name: "Drafts", Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err := fx.contacts.Create(context.Background(), store.Contact{
		Email:        "a@b.com",
		Active:       true,
		SyncStatus:   store.SyncNever,
		LastModified: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := fx.contacts.SetMemberships(context.Background(), c.ID, []int64{linked.ID, unlinked.ID}); err != nil {
		t.Fatal(err)
	}

	if err := batcher.PushPending(context.Background()); err != nil {
		t.Fatalf("PushPending: %v", err)
	}

	ids, ok := created["listIds"].([]any)
	if !ok {
		t.Fatalf("expected listIds in create payload, got %v", created)
	}
	if len(ids) != 1 || ids[0] != float64(7) {
		t.Errorf("expected only the remotely linked list id 7, got %v", ids)
	}
}

func TestPushSkipsWhenRemoteIsNewer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts/55", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 55, "email": "a@b.com", "modifiedAt": "2024-02-01T00:00:00Z"}`))
	})
	mux.HandleFunc("PUT /contacts/55", func(w http.ResponseWriter, r *http.Request) {
		t.Error("push must be skipped when the remote record is newer")
	})
	batcher, fx, _ := newBatchFixture(t, mux)

	brevoID := "55"
	_, err := fx.contacts.Create(context.Background(), store.Contact{
		BrevoID:      &brevoID,
		Email:        "a@b.com",
		Active:       true,
		SyncStatus:   store.SyncPending,
		LastModified: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := batcher.PushPending(context.Background()); err != nil {
		t.Fatalf("PushPending: %v", err)
	}

	entries, _ := fx.logs.Recent(context.Background(), 10)
	if len(entries) != 1 || entries[0].Outcome != "skipped" {
		t.Fatalf("expected one skipped log entry, got %+v", entries)
	}
}

func TestPushUpdatesExistingRemoteContact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts/55", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 55, "email": "a@b.com", "modifiedAt": "2024-01-01T00:00:00Z"}`))
	})
	updated := false
	mux.HandleFunc("PUT /contacts/55", func(w http.ResponseWriter, r *http.Request) {
		updated = true
		w.WriteHeader(http.StatusNoContent)
	})
	batcher, fx, _ := newBatchFixture(t, mux)

	brevoID := "55"
	if _, err := fx.contacts.Create(context.Background(), store.Contact{
		BrevoID:      &brevoID,
		Email:        "a@b.com",
		Name:         "Verena Schweighuber",
		Active:       true,
		SyncStatus:   store.SyncPending,
		LastModified: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	if err := batcher.PushPending(context.Background()); err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if !updated {
		t.Error("expected remote update call")
	}
}

func TestSyncContactsPullsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts", func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		if offset == "0" {
			_, _ = w.Write([]byte(`{"count": 2, "contacts": [
				{"id": 1, "email": "one@example.com", "attributes": {"FNAME": "One"}, "modifiedAt": "2024-01-10T00:00:00Z"}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count": 2, "contacts": [
			{"id": 2, "email": "two@example.com", "attributes": {"FNAME": "Two"}, "modifiedAt": "2024-01-11T00:00:00Z"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fx := newEngineFixture()
	client := brevo.NewClient(brevo.Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Limiter: brevo.NewLimiter(6000, 100),
	})
	batcher := NewBatcher(client, fx.engine, 1)

	if err := batcher.SyncContacts(context.Background(), nil); err != nil {
		t.Fatalf("SyncContacts: %v", err)
	}
	if len(fx.contacts.byID) != 2 {
		t.Fatalf("expected 2 contacts pulled, got %d", len(fx.contacts.byID))
	}
	if _, err := fx.contacts.GetByEmail(context.Background(), "two@example.com"); err != nil {
		t.Errorf("expected second page applied: %v", err)
	}
}

func TestSyncListsCreatesLocalLists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contacts/lists", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 1, "lists": [
			{"id": 3, "name": "Newsletter", "updatedAt": "2024-01-10T00:00:00Z"}
		]}`))
	})
	batcher, fx, _ := newBatchFixture(t, mux)

	if err := batcher.SyncLists(context.Background()); err != nil {
		t.Fatalf("SyncLists: %v", err)
	}
	l, err := fx.lists.GetByBrevoID(context.Background(), "3")
	if err != nil {
		t.Fatalf("list not created: %v", err)
	}
	if l.Name != "Newsletter" || !l.Active {
		t.Errorf("unexpected list %+v", l)
	}
}
