// Package webhook implements the inbound HTTP boundary: signature
// verification, payload normalization, and response-code policy for the
// event endpoints.
package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/neuhubereco/odoo-brevo-sync/internal/brevo"
	httperrors "github.com/neuhubereco/odoo-brevo-sync/internal/http/errors"
	"github.com/neuhubereco/odoo-brevo-sync/internal/sync"
)

// DeliveryIDHeader carries the sender's delivery id for idempotent replay.
const DeliveryIDHeader = "X-Brevo-Delivery-Id"

const maxBodyBytes = 1 << 20

// Handler serves the webhook endpoints. Both endpoints share one pipeline;
// they exist separately because the sender configures general events and
// booking events as distinct webhook targets.
type Handler struct {
	engine           *sync.Engine
	secret           string
	requireSignature bool
}

func NewHandler(engine *sync.Engine, secret string, requireSignature bool) *Handler {
	return &Handler{engine: engine, secret: secret, requireSignature: requireSignature}
}

// HandleEvent accepts contact.* and list.* events.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r)
}

// HandleBooking accepts meeting.* and call.* events.
func (h *Handler) HandleBooking(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r)
}

// Response-code policy: signature failures are 401 and nothing runs; bodies
// the sender would resend unchanged (malformed JSON) are 400; recognized
// but skipped events (unknown kind, duplicate delivery, stale update) are
// acknowledged with 200 so the sender stops retrying; rate-limit exhaustion
// and transient failures return 429/500 to invite redelivery; permanent
// failures are acknowledged with an error body since redelivery cannot
// change the outcome. The inbound apply path is store-local today, so the
// rate-limit and permanent branches only fire once an apply step starts
// calling the remote API.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httperrors.BadRequest(w, r, err, "unreadable body")
		return
	}

	if h.requireSignature {
		if !Verify(h.secret, body, r.Header.Get(SignatureHeader)) {
			httperrors.Unauthorized(w, r, "webhook signature mismatch")
			return
		}
	}

	ev, err := sync.Normalize(body, r.Header.Get(DeliveryIDHeader))
	if err != nil {
		var malformed *sync.MalformedPayloadError
		switch {
		case errors.Is(err, sync.ErrUnknownEvent):
			httperrors.LogInfo(r, "skipping unrecognized event: "+err.Error())
			httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "unknown event"})
		case errors.As(err, &malformed):
			httperrors.BadRequest(w, r, err, "malformed payload")
		default:
			httperrors.InternalError(w, r, err, "normalize webhook payload")
		}
		return
	}

	grant := sync.NewSystemGrant("webhook")
	res, err := h.engine.ProcessEvent(brevo.WithBoundedWait(r.Context()), grant, ev)
	if err != nil {
		var malformed *sync.MalformedPayloadError
		switch {
		case errors.As(err, &malformed):
			httperrors.BadRequest(w, r, err, "malformed payload")
		case errors.Is(err, brevo.ErrRateLimited):
			httperrors.LogError(r, "rate limit exhausted processing webhook", err)
			httperrors.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"status": "error", "message": "rate limited"})
		case brevo.IsPermanent(err):
			httperrors.LogError(r, "permanent failure processing webhook", err)
			httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "error"})
		default:
			httperrors.InternalError(w, r, err, "process webhook event")
		}
		return
	}

	switch res.Outcome {
	case sync.Applied:
		httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
	default:
		httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": res.Message})
	}
}
