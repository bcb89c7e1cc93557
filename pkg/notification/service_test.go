package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/template"
)

type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []notification.Notification
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, *n)
	return nil
}

func (d *recordingDispatcher) last(t *testing.T) notification.Notification {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.dispatched)
	return d.dispatched[len(d.dispatched)-1]
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

type serviceFixture struct {
	svc        *notification.Service
	storage    *notification.MemoryStorage
	events     *eventlog.MemoryStorage
	dispatcher *recordingDispatcher
	now        time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		storage:    notification.NewMemoryStorage(),
		events:     eventlog.NewMemoryStorage(),
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}

	templates := template.NewMemoryStorage()
	require.NoError(t, template.Seed(context.Background(), templates))

	svc, err := notification.NewService(f.storage, templates, f.events, f.dispatcher,
		notification.WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestService_CreateImmediate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	n, err := f.svc.Create(ctx, notification.CreateParams{
		Type:           notification.TypePaymentReminder,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Variables: map[string]string{
			"student_name": "Jean Dupont",
			"amount":       "500",
			"due_date":     "2025-02-01",
			"tranche":      "1",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, n.Subject, "Jean Dupont")
	assert.Contains(t, n.Body, "500")
	assert.Contains(t, n.Body, "Marie Dupont")
	assert.NotContains(t, n.Body, "{{", "all placeholders resolved")
	assert.Equal(t, notification.StatusScheduled, n.Status, "due notifications are promoted immediately")
	require.NotNil(t, n.TemplateID)

	stored, err := f.storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, stored.Status)

	dispatched := f.dispatcher.last(t)
	assert.Equal(t, n.ID, dispatched.ID)
}

func TestService_CreateFutureDated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	at := f.now.Add(48*time.Hour + 300*time.Millisecond)
	n, err := f.svc.Create(ctx, notification.CreateParams{
		Type:           notification.TypeGeneral,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Variables:      map[string]string{"subject": "Réunion", "message": "Jeudi 18h"},
		ScheduledAt:    &at,
	})
	require.NoError(t, err)

	assert.Equal(t, notification.StatusScheduled, n.Status)
	require.NotNil(t, n.ScheduledAt)
	assert.Equal(t, at.Truncate(time.Second), *n.ScheduledAt, "second precision")

	dispatched := f.dispatcher.last(t)
	require.NotNil(t, dispatched.ScheduledAt)
	assert.True(t, dispatched.ScheduledAt.After(f.now))
}

func TestService_CreateTemplateMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	dispatcher := &recordingDispatcher{}
	svc, err := notification.NewService(storage, template.NewMemoryStorage(), eventlog.NewMemoryStorage(), dispatcher)
	require.NoError(t, err)

	_, err = svc.Create(ctx, notification.CreateParams{
		Type:           notification.TypeGeneral,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
	})
	assert.ErrorIs(t, err, notification.ErrTemplateMissing)

	all, err := storage.List(ctx, notification.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all, "nothing persisted on template miss")
	assert.Zero(t, dispatcher.count())
}

func TestService_CreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	_, err := f.svc.Create(ctx, notification.CreateParams{
		Type:           notification.Type("sms"),
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
	})
	assert.ErrorIs(t, err, notification.ErrInvalidType)

	_, err = f.svc.Create(ctx, notification.CreateParams{
		Type:           notification.TypeGeneral,
		RecipientEmail: "not-an-email",
		RecipientName:  "Marie Dupont",
	})
	assert.ErrorIs(t, err, notification.ErrRecipientEmailInvalid)

	_, err = f.svc.Create(ctx, notification.CreateParams{
		Type:           notification.TypeGeneral,
		RecipientEmail: "parent@example.com",
	})
	assert.ErrorIs(t, err, notification.ErrRecipientNameRequired)
}

func TestService_TypedHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	urgent, err := f.svc.SendUrgentNotification(ctx, "parent@example.com", "Marie Dupont",
		"Jean Dupont", "santé", "Merci de venir chercher Jean.", nil)
	require.NoError(t, err)
	assert.Equal(t, notification.TypeUrgentInfo, urgent.Type)
	assert.Contains(t, urgent.Subject, "Jean Dupont")
	assert.Contains(t, urgent.Body, "santé")
	assert.Nil(t, urgent.ScheduledAt)

	urgentAt := f.now.Add(30 * time.Minute)
	urgentLater, err := f.svc.SendUrgentNotification(ctx, "parent@example.com", "Marie Dupont",
		"Jean Dupont", "santé", "Rendez-vous demain matin.", &urgentAt)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, urgentLater.Status)
	require.NotNil(t, urgentLater.ScheduledAt)
	assert.True(t, urgentLater.ScheduledAt.Equal(urgentAt))

	general, err := f.svc.SendGeneralNotification(ctx, "parent@example.com", "Marie Dupont",
		"Réunion parents-professeurs", "Jeudi à 18h.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Réunion parents-professeurs", general.Subject)
	assert.Contains(t, general.Body, "Jeudi à 18h.")
}

func TestService_UpdateDraftOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	draft := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusDraft,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Ancien sujet",
		Body:           "Ancien corps",
	}
	require.NoError(t, f.storage.Create(ctx, draft))

	subject := "Nouveau sujet"
	updated, err := f.svc.Update(ctx, draft.ID, notification.UpdateParams{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau sujet", updated.Subject)
	assert.Equal(t, notification.StatusDraft, updated.Status)
	assert.Zero(t, f.dispatcher.count(), "no dispatch without a schedule change")

	sent := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusSent,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Envoyé",
		Body:           "Corps",
	}
	require.NoError(t, f.storage.Create(ctx, sent))

	_, err = f.svc.Update(ctx, sent.ID, notification.UpdateParams{Subject: &subject})
	assert.ErrorIs(t, err, notification.ErrNotDraft)

	unchanged, err := f.storage.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Envoyé", unchanged.Subject)
}

func TestService_UpdateScheduleDispatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	draft := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusDraft,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Sujet",
		Body:           "Corps",
	}
	require.NoError(t, f.storage.Create(ctx, draft))

	at := f.now.Add(2 * time.Hour)
	updated, err := f.svc.Update(ctx, draft.ID, notification.UpdateParams{ScheduledAt: &at})
	require.NoError(t, err)
	require.NotNil(t, updated.ScheduledAt)

	stored, err := f.storage.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, stored.Status, "setting a schedule promotes the draft")
	assert.Equal(t, 1, f.dispatcher.count())

	dispatched := f.dispatcher.last(t)
	require.NotNil(t, dispatched.ScheduledAt, "the queued task must carry the future instant")
	assert.True(t, dispatched.ScheduledAt.Equal(at))
}

func TestService_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	failed := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusFailed,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Sujet",
		Body:           "Corps",
	}
	require.NoError(t, f.storage.Create(ctx, failed))
	require.NoError(t, f.events.Append(ctx, eventlog.Event{
		ID:             uuid.New(),
		NotificationID: failed.ID,
		Kind:           eventlog.KindFailed,
		OccurredAt:     f.now,
	}))

	require.NoError(t, f.svc.Delete(ctx, failed.ID))

	_, err := f.storage.GetByID(ctx, failed.ID)
	assert.ErrorIs(t, err, notification.ErrNotFound)

	events, err := f.events.ListByNotification(ctx, failed.ID)
	require.NoError(t, err)
	assert.Empty(t, events, "event log deleted with the notification")

	scheduled := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusScheduled,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Sujet",
		Body:           "Corps",
	}
	require.NoError(t, f.storage.Create(ctx, scheduled))
	assert.ErrorIs(t, f.svc.Delete(ctx, scheduled.ID), notification.ErrNotDeletable)

	assert.ErrorIs(t, f.svc.Delete(ctx, uuid.New()), notification.ErrNotFound)
}

func TestService_Retry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	errMsg := "smtp timeout"
	failed := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusFailed,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Sujet",
		Body:           "Corps",
		RetryCount:     3,
		ErrorMessage:   &errMsg,
	}
	require.NoError(t, f.storage.Create(ctx, failed))

	retried, err := f.svc.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, retried.Status)
	assert.Nil(t, retried.ErrorMessage, "error cleared on retry")
	assert.Equal(t, 3, retried.RetryCount, "retry counter keeps its value")
	assert.Equal(t, 1, f.dispatcher.count())

	dispatched := f.dispatcher.last(t)
	assert.Nil(t, dispatched.ScheduledAt, "manual retry is immediate")
}

func TestService_RetryConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	sent := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         notification.StatusSent,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Sujet",
		Body:           "Corps",
	}
	require.NoError(t, f.storage.Create(ctx, sent))

	_, err := f.svc.Retry(ctx, sent.ID)
	assert.ErrorIs(t, err, notification.ErrNotFailed)
	assert.Zero(t, f.dispatcher.count())

	unchanged, err := f.storage.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, unchanged.Status)

	_, err = f.svc.Retry(ctx, uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestService_GetWithStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t)

	n, err := f.svc.SendGeneralNotification(ctx, "parent@example.com", "Marie Dupont", "Sujet", "Corps", nil)
	require.NoError(t, err)

	require.NoError(t, f.events.Append(ctx, eventlog.Event{
		ID: uuid.New(), NotificationID: n.ID, Kind: eventlog.KindSent, OccurredAt: f.now,
	}))
	require.NoError(t, f.events.Append(ctx, eventlog.Event{
		ID: uuid.New(), NotificationID: n.ID, Kind: eventlog.KindOpened, OccurredAt: f.now.Add(time.Minute),
	}))

	got, stats, err := f.svc.GetWithStats(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Opened)
	assert.Equal(t, 0, stats.Clicked)
	require.NotNil(t, stats.LastOpenedAt)

	_, _, err = f.svc.GetWithStats(ctx, uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

// flakyDispatcher fails every Dispatch while broken is set.
type flakyDispatcher struct {
	mu     sync.Mutex
	broken bool
	count  int
}

func (d *flakyDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.broken {
		return errors.New("queue unavailable")
	}
	d.count++
	return nil
}

func (d *flakyDispatcher) setBroken(broken bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broken = broken
}

func TestService_CreateDispatchFailureMarksFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	templates := template.NewMemoryStorage()
	require.NoError(t, template.Seed(ctx, templates))
	dispatcher := &flakyDispatcher{broken: true}

	svc, err := notification.NewService(storage, templates, eventlog.NewMemoryStorage(), dispatcher)
	require.NoError(t, err)

	n, err := svc.SendGeneralNotification(ctx, "parent@example.com", "Marie Dupont",
		"Sujet", "Corps", nil)
	require.NoError(t, err, "creation succeeds even when enqueueing fails")

	// Without a queued task the record must not sit in scheduled forever;
	// it is failed so the operator retry path stays available.
	assert.Equal(t, notification.StatusFailed, n.Status)
	require.NotNil(t, n.ErrorMessage)
	assert.Contains(t, *n.ErrorMessage, "failed to enqueue delivery")

	stored, err := storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, stored.Status)

	dispatcher.setBroken(false)

	retried, err := svc.Retry(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, retried.Status)
	assert.Nil(t, retried.ErrorMessage)
	assert.Equal(t, 1, dispatcher.count)
}

func TestService_RetryDispatchFailureMarksFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	templates := template.NewMemoryStorage()
	require.NoError(t, template.Seed(ctx, templates))
	dispatcher := &flakyDispatcher{}

	svc, err := notification.NewService(storage, templates, eventlog.NewMemoryStorage(), dispatcher)
	require.NoError(t, err)

	n, err := svc.SendGeneralNotification(ctx, "parent@example.com", "Marie Dupont",
		"Sujet", "Corps", nil)
	require.NoError(t, err)
	require.NoError(t, storage.MarkFailed(ctx, n.ID, "mailbox unavailable"))

	dispatcher.setBroken(true)

	_, err = svc.Retry(ctx, n.ID)
	require.Error(t, err)

	stored, err := storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, stored.Status, "a stranded retry falls back to failed")
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "failed to enqueue delivery")

	dispatcher.setBroken(false)
	retried, err := svc.Retry(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, retried.Status)
}
