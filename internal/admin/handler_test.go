package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/neuhubereco/odoo-brevo-sync/internal/mapping"
	"github.com/neuhubereco/odoo-brevo-sync/internal/store"
)

type stubLogs struct {
	entries []store.SyncLogEntry
}

func (s *stubLogs) Append(_ context.Context, e store.SyncLogEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubLogs) HasSuccessfulDelivery(context.Context, string) (bool, error) {
	return false, nil
}

func (s *stubLogs) Recent(_ context.Context, limit int) ([]store.SyncLogEntry, error) {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func testToken(t *testing.T) (hash, token string) {
	t.Helper()
	token = "super-secret-token"
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h), token
}

func protectedOK(h *Handler) http.Handler {
	return h.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireTokenRejectsMissingToken(t *testing.T) {
	hash, _ := testToken(t)
	h := NewHandler(hash, nil, nil, "", &stubLogs{})

	req := httptest.NewRequest(http.MethodPost, "/admin/push", nil)
	rec := httptest.NewRecorder()
	protectedOK(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireTokenRejectsWrongToken(t *testing.T) {
	hash, _ := testToken(t)
	h := NewHandler(hash, nil, nil, "", &stubLogs{})

	req := httptest.NewRequest(http.MethodPost, "/admin/push", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	protectedOK(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireTokenAcceptsValidToken(t *testing.T) {
	hash, token := testToken(t)
	h := NewHandler(hash, nil, nil, "", &stubLogs{})

	req := httptest.NewRequest(http.MethodPost, "/admin/push", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protectedOK(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireTokenWithNoHashDisablesAdmin(t *testing.T) {
	h := NewHandler("", nil, nil, "", &stubLogs{})
	if h.Enabled() {
		t.Error("admin surface must be disabled without a token hash")
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/push", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	protectedOK(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestReloadMappingInstallsValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	if err := os.WriteFile(path, []byte(`{"fields": [{"local": "email", "remote": "EMAIL"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	table := mapping.NewTable(mapping.Defaults())
	hash, token := testToken(t)
	h := NewHandler(hash, nil, table, path, &stubLogs{})

	req := httptest.NewRequest(http.MethodPost, "/admin/mapping/reload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ReloadMapping(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := len(table.Fields()); got != 1 {
		t.Errorf("expected reloaded document with 1 field, got %d", got)
	}
}

func TestReloadMappingRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	if err := os.WriteFile(path, []byte(`{"fields": []}`), 0o600); err != nil {
		t.Fatal(err)
	}

	table := mapping.NewTable(mapping.Defaults())
	before := len(table.Fields())
	h := NewHandler("hash", nil, table, path, &stubLogs{})

	rec := httptest.NewRecorder()
	h.ReloadMapping(rec, httptest.NewRequest(http.MethodPost, "/admin/mapping/reload", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := len(table.Fields()); got != before {
		t.Error("invalid file must not replace the active mapping")
	}
}

func TestRecentLogLimits(t *testing.T) {
	logs := &stubLogs{}
	for i := 0; i < 5; i++ {
		_ = logs.Append(context.Background(), store.SyncLogEntry{Operation: "contact.created", Outcome: "success"})
	}
	hash, token := testToken(t)
	h := NewHandler(hash, nil, nil, "", logs)

	req := httptest.NewRequest(http.MethodGet, "/admin/log?limit=3", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.RecentLog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.RecentLog(rec, httptest.NewRequest(http.MethodGet, "/admin/log?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", rec.Code)
	}
}
