package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/notification"
)

// postmarkBounce is the subset of Postmark's bounce webhook payload the
// service consumes. Outbound messages carry the notification id in the
// Metadata map so bounces can be tied back to their notification.
type postmarkBounce struct {
	RecordType  string            `json:"RecordType"`
	Type        string            `json:"Type"`
	Email       string            `json:"Email"`
	Description string            `json:"Description"`
	BouncedAt   time.Time         `json:"BouncedAt"`
	Metadata    map[string]string `json:"Metadata"`
}

// postmarkWebhook records a bounced event for the referenced notification.
// The webhook is always acknowledged with 200 once the payload parses;
// Postmark retries on any other status and a malformed or unmatched bounce
// will not get better on retry.
func (a *API) postmarkWebhook(w http.ResponseWriter, r *http.Request) {
	var bounce postmarkBounce
	if err := decodeWebhookJSON(r, &bounce); err != nil {
		a.respondError(w, r, err)
		return
	}
	if bounce.RecordType != "Bounce" {
		a.respond(w, http.StatusOK, envelope{Success: true})
		return
	}

	id, err := uuid.Parse(bounce.Metadata["notification_id"])
	if err != nil {
		a.log.WarnContext(r.Context(), "bounce without notification metadata",
			logger.Recipient(bounce.Email))
		a.respond(w, http.StatusOK, envelope{Success: true})
		return
	}

	a.recordBounce(r, id, bounce)
	a.respond(w, http.StatusOK, envelope{Success: true})
}

func (a *API) recordBounce(r *http.Request, id uuid.UUID, bounce postmarkBounce) {
	ctx := r.Context()
	if _, err := a.service.Get(ctx, id); err != nil {
		if !errors.Is(err, notification.ErrNotFound) {
			a.log.ErrorContext(ctx, "bounce lookup failed",
				logger.NotificationID(id), logger.Error(err))
		}
		return
	}

	opts := []eventlog.RecordOption{
		eventlog.WithDetails(map[string]any{
			"bounce_type": bounce.Type,
			"description": bounce.Description,
		}),
	}
	if !bounce.BouncedAt.IsZero() {
		opts = append(opts, eventlog.WithOccurredAt(bounce.BouncedAt))
	}
	if _, err := a.events.Record(ctx, id, eventlog.KindBounced, opts...); err != nil {
		a.log.ErrorContext(ctx, "record bounce event failed",
			logger.NotificationID(id), logger.Error(err))
	}
}
