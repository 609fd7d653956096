package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salonpulse/salonpulse/libs/httpx"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/inbox"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeWebhook receives point-of-sale payment confirmations (no JWT auth;
// signature verification is the auth). checkout.session.completed flips the
// matching order to paid in the read model.
func (h *Handler) StripeWebhook(inboxRepo *inbox.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.TrimSpace(h.stripeWebhookSecret) == "" {
			http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if strings.TrimSpace(sigHeader) == "" {
			http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.stripeWebhookSecret, h.stripeWebhookTolerance)
		if err != nil {
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		occurredAt := time.Unix(evt.Created, 0).UTC()
		evtType := string(evt.Type)
		h.logger.Info("payment provider event received",
			"provider", "stripe",
			"provider_event_id", evt.ID,
			"event_type", evtType,
			"occurred_at", occurredAt.Format(time.RFC3339),
		)

		// Replays are acknowledged without reprocessing.
		fresh, err := inboxRepo.Record(r.Context(), "stripe:"+evt.ID, evtType)
		if err != nil {
			http.Error(w, "failed to record provider event", http.StatusInternalServerError)
			return
		}
		if !fresh {
			h.logger.Info("stripe event duplicate ignored", "provider_event_id", evt.ID)
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			return
		}

		switch evtType {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
				h.logger.Error("stripe: invalid checkout session payload", "err", err)
				break
			}
			companyID := strings.TrimSpace(session.Metadata["company_id"])
			if companyID == "" {
				h.logger.Warn("stripe: checkout session missing company_id metadata")
				break
			}
			matched, err := h.orders.MarkPaidByReference(r.Context(), companyID, session.ID, occurredAt)
			if err != nil {
				http.Error(w, "failed to apply payment", http.StatusInternalServerError)
				return
			}
			if !matched {
				h.logger.Warn("stripe: no order matched checkout session",
					"company_id", companyID, "session_id", session.ID)
			}

		case "checkout.session.expired":
			// Nothing to update; the order simply stays unpaid.

		default:
			h.logger.Debug("stripe event ignored", "event_type", evtType)
		}

		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
