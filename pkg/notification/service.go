package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/template"
)

// Dispatcher hands a notification to the delivery queue. Implementations
// must honor ScheduledAt: a future-dated notification is not attempted
// before that instant.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *Notification) error
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service orchestrates the notification lifecycle: creation with template
// rendering, draft promotion, retry re-activation and deletion, delegating
// delivery itself to the Dispatcher.
type Service struct {
	storage    Storage
	templates  template.Storage
	events     eventlog.Storage
	dispatcher Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a notification service.
func NewService(storage Storage, templates template.Storage, events eventlog.Storage, dispatcher Dispatcher, opts ...ServiceOption) (*Service, error) {
	if storage == nil || templates == nil || events == nil {
		return nil, ErrStorageNil
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	s := &Service{
		storage:    storage,
		templates:  templates,
		events:     events,
		dispatcher: dispatcher,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateParams carries the inputs of a send request.
type CreateParams struct {
	Type           Type
	RecipientEmail string
	RecipientName  string
	Variables      map[string]string
	ScheduledAt    *time.Time
}

func (p CreateParams) validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	if !emailRegex.MatchString(p.RecipientEmail) {
		return fmt.Errorf("%w: %q", ErrRecipientEmailInvalid, p.RecipientEmail)
	}
	if p.RecipientName == "" {
		return ErrRecipientNameRequired
	}
	return nil
}

// Create renders the active template for the requested type and persists a
// new notification. A notification due immediately is promoted to scheduled
// and handed to the dispatcher right away; a future-dated one is stored as
// scheduled and enqueued with the remaining delay. When no active template
// exists for the type, nothing is persisted.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Notification, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	tpl, err := s.templates.FindActiveByType(ctx, string(params.Type))
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return nil, fmt.Errorf("%w for type %q", ErrTemplateMissing, params.Type)
		}
		return nil, fmt.Errorf("failed to resolve template: %w", err)
	}

	vars := make(map[string]string, len(params.Variables)+1)
	for k, v := range params.Variables {
		vars[k] = v
	}
	if _, ok := vars["recipient_name"]; !ok {
		vars["recipient_name"] = params.RecipientName
	}
	subject, body := template.RenderTemplate(*tpl, vars)

	now := s.now()
	n := &Notification{
		ID:             uuid.New(),
		TemplateID:     &tpl.ID,
		Type:           params.Type,
		Status:         StatusDraft,
		RecipientEmail: params.RecipientEmail,
		RecipientName:  params.RecipientName,
		Subject:        subject,
		Body:           body,
		Variables:      vars,
	}
	if params.ScheduledAt != nil {
		at := params.ScheduledAt.Truncate(time.Second)
		n.ScheduledAt = &at
		if at.After(now) {
			n.Status = StatusScheduled
		}
	}

	if err := s.storage.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if err := s.dispatch(ctx, n); err != nil {
		// Creation already succeeded; dispatch marked the record failed, so
		// an operator retry can re-dispatch it.
		s.log.ErrorContext(ctx, "failed to dispatch notification",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}

	s.log.InfoContext(ctx, "notification created",
		logger.NotificationID(n.ID),
		logger.Recipient(n.RecipientEmail),
		logger.Status(string(n.Status)),
	)
	return n, nil
}

// SendPaymentReminder creates a payment reminder with the conventional
// variable names the stock template expects.
func (s *Service) SendPaymentReminder(ctx context.Context, email, name, studentName, amount, dueDate, tranche string, scheduledAt *time.Time) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		Type:           TypePaymentReminder,
		RecipientEmail: email,
		RecipientName:  name,
		Variables: map[string]string{
			"student_name": studentName,
			"amount":       amount,
			"due_date":     dueDate,
			"tranche":      tranche,
		},
		ScheduledAt: scheduledAt,
	})
}

// SendUrgentNotification creates an urgent notification about a student.
func (s *Service) SendUrgentNotification(ctx context.Context, email, name, studentName, urgencyType, message string, scheduledAt *time.Time) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		Type:           TypeUrgentInfo,
		RecipientEmail: email,
		RecipientName:  name,
		Variables: map[string]string{
			"student_name": studentName,
			"urgency_type": urgencyType,
			"message":      message,
		},
		ScheduledAt: scheduledAt,
	})
}

// SendGeneralNotification creates a free-form notification.
func (s *Service) SendGeneralNotification(ctx context.Context, email, name, subject, message string, scheduledAt *time.Time) (*Notification, error) {
	return s.Create(ctx, CreateParams{
		Type:           TypeGeneral,
		RecipientEmail: email,
		RecipientName:  name,
		Variables: map[string]string{
			"subject": subject,
			"message": message,
		},
		ScheduledAt: scheduledAt,
	})
}

// Get retrieves a notification by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.storage.GetByID(ctx, id)
}

// GetWithStats retrieves a notification together with its aggregated event
// stats.
func (s *Service) GetWithStats(ctx context.Context, id uuid.UUID) (*Notification, eventlog.Stats, error) {
	n, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, eventlog.Stats{}, err
	}
	stats, err := s.events.Stats(ctx, id)
	if err != nil {
		return nil, eventlog.Stats{}, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	return n, stats, nil
}

// Stats aggregates the event log of a notification.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (eventlog.Stats, error) {
	if _, err := s.storage.GetByID(ctx, id); err != nil {
		return eventlog.Stats{}, err
	}
	return s.events.Stats(ctx, id)
}

// List returns notifications matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Notification, error) {
	return s.storage.List(ctx, filter)
}

// UpdateParams carries the editable fields of a draft. Nil fields are left
// unchanged.
type UpdateParams struct {
	RecipientEmail *string
	RecipientName  *string
	Subject        *string
	Body           *string
	ScheduledAt    *time.Time
}

// Update modifies a draft notification. Setting ScheduledAt promotes the
// draft to scheduled and enqueues delivery for that instant. Non-draft
// notifications are rejected with ErrNotDraft and left unchanged.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Notification, error) {
	n, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != StatusDraft {
		return nil, ErrNotDraft
	}

	if params.RecipientEmail != nil {
		if !emailRegex.MatchString(*params.RecipientEmail) {
			return nil, fmt.Errorf("%w: %q", ErrRecipientEmailInvalid, *params.RecipientEmail)
		}
		n.RecipientEmail = *params.RecipientEmail
	}
	if params.RecipientName != nil {
		if *params.RecipientName == "" {
			return nil, ErrRecipientNameRequired
		}
		n.RecipientName = *params.RecipientName
	}
	if params.Subject != nil {
		n.Subject = *params.Subject
	}
	if params.Body != nil {
		n.Body = *params.Body
	}
	if params.ScheduledAt != nil {
		at := params.ScheduledAt.Truncate(time.Second)
		n.ScheduledAt = &at
	}

	if err := s.storage.UpdateDraft(ctx, n); err != nil {
		return nil, err
	}

	if params.ScheduledAt != nil {
		if err := s.dispatch(ctx, n); err != nil {
			s.log.ErrorContext(ctx, "failed to dispatch notification",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
		}
	}
	return n, nil
}

// Delete removes a draft or failed notification together with its event log.
// Sent notifications are an audit trail and scheduled ones would race a
// pending delivery attempt, so both are rejected.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.storage.Delete(ctx, id, StatusDraft, StatusFailed); err != nil {
		return err
	}
	if err := s.events.DeleteByNotification(ctx, id); err != nil {
		return fmt.Errorf("failed to delete notification events: %w", err)
	}

	s.log.InfoContext(ctx, "notification deleted", logger.NotificationID(id))
	return nil
}

// Retry re-activates a failed notification: it moves back to scheduled with
// its error cleared and is handed to the dispatcher for an immediate
// attempt. The retry counter keeps its value.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*Notification, error) {
	if err := s.storage.ResetForRetry(ctx, id); err != nil {
		return nil, err
	}

	n, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// A manual retry is an immediate attempt regardless of the original
	// schedule.
	due := *n
	due.ScheduledAt = nil

	if err := s.dispatch(ctx, &due); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "notification retried",
		logger.NotificationID(n.ID),
		logger.RetryCount(n.RetryCount),
	)
	return n, nil
}

// dispatch promotes a draft to scheduled and enqueues the delivery task.
// Future-dated notifications are enqueued with their remaining delay. A
// scheduled notification without a queued task would be stranded, so an
// enqueue failure marks the notification failed, keeping the operator retry
// path open.
func (s *Service) dispatch(ctx context.Context, n *Notification) error {
	if n.Status == StatusDraft {
		if err := s.storage.PromoteToScheduled(ctx, n.ID); err != nil {
			return fmt.Errorf("failed to schedule notification: %w", err)
		}
		n.Status = StatusScheduled
	}

	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		dispatchErr := fmt.Errorf("failed to enqueue delivery: %w", err)
		msg := dispatchErr.Error()
		if markErr := s.storage.MarkFailed(ctx, n.ID, msg); markErr != nil {
			return errors.Join(dispatchErr, markErr)
		}
		n.Status = StatusFailed
		n.ErrorMessage = &msg
		return dispatchErr
	}
	return nil
}
