package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schooldesk/notifier/pkg/notification"
)

// maxBodySize caps JSON request bodies at 1 MB.
const maxBodySize = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errValidation = errors.New("validation failed")
)

// decodeJSON strictly decodes the request body into v: the content type must
// be application/json, unknown fields are rejected, and trailing data after
// the JSON value is an error.
func decodeJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return fmt.Errorf("%w: missing content-type header", errBadRequest)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: expected application/json, got %q", errBadRequest, ct)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", errBadRequest)
	}
	return nil
}

// decodeWebhookJSON decodes a provider webhook payload. Unlike decodeJSON
// it tolerates unknown fields, since providers add payload fields without
// notice.
func decodeWebhookJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid notification id", errBadRequest)
	}
	return id, nil
}

type createRequest struct {
	Type           string            `json:"type"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	Variables      map[string]string `json:"variables"`
	ScheduledAt    *string           `json:"scheduled_at"`
}

// params validates the request and converts it into service input. A
// scheduled_at in the past is rejected here so the caller learns about it
// synchronously instead of the notification silently going out immediately.
func (req createRequest) params(now time.Time) (notification.CreateParams, error) {
	p := notification.CreateParams{
		Type:           notification.Type(req.Type),
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Variables:      req.Variables,
	}
	if req.ScheduledAt != nil && *req.ScheduledAt != "" {
		at, err := parseFutureTime(*req.ScheduledAt, now)
		if err != nil {
			return notification.CreateParams{}, err
		}
		p.ScheduledAt = &at
	}
	return p, nil
}

type updateRequest struct {
	RecipientEmail *string `json:"recipient_email"`
	RecipientName  *string `json:"recipient_name"`
	Subject        *string `json:"subject"`
	Body           *string `json:"body"`
	ScheduledAt    *string `json:"scheduled_at"`
}

func (req updateRequest) params(now time.Time) (notification.UpdateParams, error) {
	p := notification.UpdateParams{
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Subject:        req.Subject,
		Body:           req.Body,
	}
	if req.ScheduledAt != nil && *req.ScheduledAt != "" {
		at, err := parseFutureTime(*req.ScheduledAt, now)
		if err != nil {
			return notification.UpdateParams{}, err
		}
		p.ScheduledAt = &at
	}
	return p, nil
}

func parseFutureTime(value string, now time.Time) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: scheduled_at must be RFC 3339", errValidation)
	}
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: scheduled_at must be in the future", errValidation)
	}
	return at, nil
}

// listQuery parses list filters and pagination from the URL query. Page and
// per_page default to 1 and 20; per_page is capped at 100.
func listQuery(r *http.Request) (notification.Filter, listMeta, error) {
	q := r.URL.Query()

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return notification.Filter{}, listMeta{}, fmt.Errorf("%w: invalid page", errBadRequest)
		}
		page = n
	}
	perPage := 20
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return notification.Filter{}, listMeta{}, fmt.Errorf("%w: invalid per_page", errBadRequest)
		}
		perPage = min(n, 100)
	}

	filter := notification.Filter{
		RecipientEmail: q.Get("recipient"),
		Limit:          perPage,
		Offset:         (page - 1) * perPage,
	}
	if raw := q.Get("status"); raw != "" {
		status := notification.Status(raw)
		if !status.Valid() {
			return notification.Filter{}, listMeta{}, fmt.Errorf("%w: unknown status %q", errBadRequest, raw)
		}
		filter.Status = &status
	}
	if raw := q.Get("type"); raw != "" {
		kind := notification.Type(raw)
		if !kind.Valid() {
			return notification.Filter{}, listMeta{}, fmt.Errorf("%w: unknown type %q", errBadRequest, raw)
		}
		filter.Type = &kind
	}

	return filter, listMeta{Page: page, PerPage: perPage}, nil
}
