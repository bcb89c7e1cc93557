package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/template"
)

// envelope is the uniform JSON response shape. Data and Meta are set on
// success, Error on failure.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Meta    *listMeta  `json:"meta,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type listMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Count   int `json:"count"`
}

// notificationPayload is a notification plus, when requested, its aggregate
// event stats.
type notificationPayload struct {
	notification.Notification
	Stats *eventlog.Stats `json:"stats,omitempty"`
}

func (a *API) respond(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		a.log.Error("write response", logger.Error(err))
	}
}

func (a *API) respondData(w http.ResponseWriter, status int, data any) {
	a.respond(w, status, envelope{Success: true, Data: data})
}

func (a *API) respondList(w http.ResponseWriter, data any, meta listMeta) {
	a.respond(w, http.StatusOK, envelope{Success: true, Data: data, Meta: &meta})
}

// respondError translates a domain error into the envelope shape. Unmapped
// errors become opaque 500s so storage details never leak to callers.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), logger.Error(err))
		msg = "internal server error"
	}
	a.respond(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: msg}})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, notification.ErrNotFound),
		errors.Is(err, template.ErrTemplateNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, notification.ErrNotDraft),
		errors.Is(err, notification.ErrNotFailed),
		errors.Is(err, notification.ErrNotDeletable):
		return http.StatusConflict, "conflict"
	case errors.Is(err, notification.ErrInvalidType),
		errors.Is(err, notification.ErrRecipientEmailInvalid),
		errors.Is(err, notification.ErrRecipientNameRequired),
		errors.Is(err, notification.ErrTemplateMissing),
		errors.Is(err, errValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
