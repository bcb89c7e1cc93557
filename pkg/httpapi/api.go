package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/schooldesk/notifier/pkg/clientip"
	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/notification"
)

// API bundles the HTTP handlers around the notification service and the
// event recorder used by the tracking endpoints.
type API struct {
	service *notification.Service
	events  *eventlog.Recorder
	log     *slog.Logger
	now     func() time.Time
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithClock overrides the time source used for scheduled_at validation.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates the API around the given service and event recorder.
func New(service *notification.Service, events *eventlog.Recorder, opts ...Option) *API {
	a := &API{
		service: service,
		events:  events,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router mounts all endpoints on a fresh chi router.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(clientip.Middleware)

	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", a.listNotifications)
		r.Post("/", a.createNotification)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getNotification)
			r.Patch("/", a.updateNotification)
			r.Delete("/", a.deleteNotification)
			r.Get("/stats", a.getStats)
			r.Post("/retry", a.retryNotification)
		})
	})

	r.Get("/track/{id}/open.gif", a.trackOpen)
	r.Get("/track/{id}/click", a.trackClick)
	r.Post("/webhooks/postmark", a.postmarkWebhook)

	return r
}
