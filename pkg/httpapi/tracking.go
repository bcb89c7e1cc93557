package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schooldesk/notifier/pkg/clientip"
	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/notification"
)

// trackingPixel is a 1x1 transparent GIF.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// trackOpen records an opened event and serves the pixel. The pixel is
// served even for unknown ids so broken tracking never renders a broken
// image in the recipient's mail client.
func (a *API) trackOpen(w http.ResponseWriter, r *http.Request) {
	if id, err := uuid.Parse(chi.URLParam(r, "id")); err == nil {
		a.recordEngagement(r, id, eventlog.KindOpened)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trackingPixel)
}

// trackClick records a clicked event and redirects to the url query
// parameter. Only absolute http(s) targets are accepted.
func (a *API) trackClick(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(r.URL.Query().Get("url"))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		a.respondError(w, r, fmt.Errorf("%w: url must be absolute http(s)", errBadRequest))
		return
	}

	if id, err := uuid.Parse(chi.URLParam(r, "id")); err == nil {
		a.recordEngagement(r, id, eventlog.KindClicked)
	}

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// recordEngagement appends an engagement event with the requester's client
// info. Unknown notifications are skipped, recording failures only logged:
// tracking must never break the recipient-facing response.
func (a *API) recordEngagement(r *http.Request, id uuid.UUID, kind eventlog.Kind) {
	ctx := r.Context()
	if _, err := a.service.Get(ctx, id); err != nil {
		if !errors.Is(err, notification.ErrNotFound) {
			a.log.ErrorContext(ctx, "engagement lookup failed",
				logger.NotificationID(id), logger.Error(err))
		}
		return
	}

	_, err := a.events.Record(ctx, id, kind,
		eventlog.WithClientInfo(clientip.GetIPFromContext(ctx), r.UserAgent()))
	if err != nil {
		a.log.ErrorContext(ctx, "record engagement event failed",
			logger.NotificationID(id), logger.EventKind(kind), logger.Error(err))
	}
}
