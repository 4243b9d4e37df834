package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/neuhubereco/odoo-brevo-sync/internal/metrics"
)

// Client issues authenticated calls against the Brevo REST API. Every call
// consumes one token from the shared Limiter before touching the network.
type Client struct {
	baseURL        string
	apiKey         string
	hc             *http.Client
	limiter        *Limiter
	maxAttempts    int
	retryBase      time.Duration
	acquireTimeout time.Duration
}

// Config holds client construction settings. Zero values fall back to
// sensible defaults.
type Config struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	Limiter        *Limiter
	MaxAttempts    int
	RetryBase      time.Duration
	AcquireTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		hc:             cfg.HTTPClient,
		limiter:        cfg.Limiter,
		maxAttempts:    cfg.MaxAttempts,
		retryBase:      cfg.RetryBase,
		acquireTimeout: cfg.AcquireTimeout,
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.brevo.com/v3"
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 20 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(300, 20)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 4
	}
	if c.retryBase <= 0 {
		c.retryBase = 500 * time.Millisecond
	}
	if c.acquireTimeout <= 0 {
		c.acquireTimeout = 5 * time.Second
	}
	return c
}

type ctxKey struct{}

// WithBoundedWait marks calls on ctx as latency-sensitive: token
// acquisition uses a bounded wait instead of blocking until refill.
// Webhook-triggered work runs under this mode.
func WithBoundedWait(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, true)
}

func boundedWait(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKey{}).(bool)
	return v
}

// CreateContact creates a contact and returns its Brevo id.
func (c *Client) CreateContact(ctx context.Context, req CreateContact) (string, error) {
	var out createdID
	if err := c.do(ctx, http.MethodPost, "/contacts", "contacts.create", req, &out); err != nil {
		return "", err
	}
	return out.ID.String(), nil
}

// UpdateContact updates an existing contact by id or email.
func (c *Client) UpdateContact(ctx context.Context, idOrEmail string, req UpdateContact) error {
	return c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(idOrEmail), "contacts.update", req, nil)
}

// GetContact fetches a contact by Brevo id or email. A 404 surfaces as
// ErrNotFound.
func (c *Client) GetContact(ctx context.Context, idOrEmail string) (*Contact, error) {
	var out Contact
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(idOrEmail), "contacts.get", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContact removes a contact from Brevo.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(id), "contacts.delete", nil, nil)
}

// GetContacts pages through contacts, optionally restricted to those
// modified since the given instant.
func (c *Client) GetContacts(ctx context.Context, limit, offset int, modifiedSince *time.Time) ([]Contact, int64, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if modifiedSince != nil {
		q.Set("modifiedSince", modifiedSince.UTC().Format(time.RFC3339))
	}
	var out contactsPage
	if err := c.do(ctx, http.MethodGet, "/contacts?"+q.Encode(), "contacts.list", nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Contacts, out.Count, nil
}

// CreateList creates a contact list and returns its Brevo id.
func (c *Client) CreateList(ctx context.Context, req CreateList) (string, error) {
	var out createdID
	if err := c.do(ctx, http.MethodPost, "/contacts/lists", "lists.create", req, &out); err != nil {
		return "", err
	}
	return out.ID.String(), nil
}

// GetLists pages through contact lists.
func (c *Client) GetLists(ctx context.Context, limit, offset int) ([]List, int64, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out listsPage
	if err := c.do(ctx, http.MethodGet, "/contacts/lists?"+q.Encode(), "lists.list", nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Lists, out.Count, nil
}

// AddToList adds contacts (by email) to a list.
func (c *Client) AddToList(ctx context.Context, listID string, emails []string) error {
	body := map[string]any{"emails": emails}
	return c.do(ctx, http.MethodPost,
		"/contacts/lists/"+url.PathEscape(listID)+"/contacts/add", "lists.add_contacts", body, nil)
}

// RemoveFromList removes contacts (by email) from a list.
func (c *Client) RemoveFromList(ctx context.Context, listID string, emails []string) error {
	body := map[string]any{"emails": emails}
	return c.do(ctx, http.MethodPost,
		"/contacts/lists/"+url.PathEscape(listID)+"/contacts/remove", "lists.remove_contacts", body, nil)
}

// do performs one logical API call: acquire a rate token, send, classify
// the response, and retry transient failures with exponential backoff plus
// jitter. A 429 gets exactly one limiter-aware retry before it is surfaced
// as ErrRateLimited.
func (c *Client) do(ctx context.Context, method, path, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("brevo: encode request: %w", err)
		}
	}

	var lastErr error
	rateRetried := false
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return err
			}
		}
		if err := c.acquire(ctx); err != nil {
			return err
		}

		status, respBody, err := c.send(ctx, method, path, payload)
		if err != nil {
			lastErr = &TransportError{Err: err}
			continue
		}
		metrics.CountAPICall(endpoint, status)

		switch {
		case status >= 200 && status < 300:
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("brevo: decode response: %w", err)
				}
			}
			return nil
		case status == http.StatusTooManyRequests:
			if rateRetried {
				return ErrRateLimited
			}
			rateRetried = true
			lastErr = ErrRateLimited
		case status == http.StatusNotFound:
			return ErrNotFound
		case status >= 500:
			lastErr = apiError(status, respBody)
		default:
			// Permanent rejection: do not retry.
			return apiError(status, respBody)
		}
	}
	return lastErr
}

func (c *Client) acquire(ctx context.Context) error {
	if boundedWait(ctx) {
		return c.limiter.Acquire(ctx, c.acquireTimeout)
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryBase << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(c.retryBase)))
	return d + jitter
}

func apiError(status int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	if parsed.Message == "" {
		parsed.Message = http.StatusText(status)
	}
	return &APIError{Status: status, Code: parsed.Code, Message: parsed.Message}
}
