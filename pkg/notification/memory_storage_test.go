package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/notification"
)

func newStoredNotification(t *testing.T, s *notification.MemoryStorage, status notification.Status) *notification.Notification {
	t.Helper()

	n := &notification.Notification{
		ID:             uuid.New(),
		Type:           notification.TypeGeneral,
		Status:         status,
		RecipientEmail: "parent@example.com",
		RecipientName:  "Marie Dupont",
		Subject:        "Bonjour",
		Body:           "Corps du message",
	}
	require.NoError(t, s.Create(context.Background(), n))
	return n
}

func TestMemoryStorage_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	n := newStoredNotification(t, storage, notification.StatusDraft)

	got, err := storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, notification.StatusDraft, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = storage.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestMemoryStorage_StatusTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()

	t.Run("draft to scheduled to sent", func(t *testing.T) {
		n := newStoredNotification(t, storage, notification.StatusDraft)

		require.NoError(t, storage.PromoteToScheduled(ctx, n.ID))

		sentAt := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, storage.MarkSent(ctx, n.ID, sentAt))

		got, err := storage.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.Equal(t, sentAt, *got.SentAt)
	})

	t.Run("promote rejects non-draft", func(t *testing.T) {
		n := newStoredNotification(t, storage, notification.StatusSent)
		assert.ErrorIs(t, storage.PromoteToScheduled(ctx, n.ID), notification.ErrNotDraft)
	})

	t.Run("mark sent rejects non-scheduled", func(t *testing.T) {
		n := newStoredNotification(t, storage, notification.StatusDraft)
		err := storage.MarkSent(ctx, n.ID, time.Now())
		assert.ErrorIs(t, err, notification.ErrNotScheduled)

		got, err := storage.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusDraft, got.Status)
		assert.Nil(t, got.SentAt)
	})

	t.Run("failed to scheduled on retry", func(t *testing.T) {
		n := newStoredNotification(t, storage, notification.StatusFailed)
		require.NoError(t, storage.ResetForRetry(ctx, n.ID))

		got, err := storage.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusScheduled, got.Status)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("retry rejects non-failed", func(t *testing.T) {
		n := newStoredNotification(t, storage, notification.StatusDraft)
		assert.ErrorIs(t, storage.ResetForRetry(ctx, n.ID), notification.ErrNotFailed)
	})
}

func TestMemoryStorage_RecordFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	n := newStoredNotification(t, storage, notification.StatusScheduled)

	count, err := storage.RecordFailure(ctx, n.ID, "smtp timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = storage.RecordFailure(ctx, n.ID, "smtp timeout again")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusScheduled, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "smtp timeout again", *got.ErrorMessage)

	require.NoError(t, storage.MarkFailed(ctx, n.ID, "smtp timeout again"))
	_, err = storage.RecordFailure(ctx, n.ID, "nope")
	assert.ErrorIs(t, err, notification.ErrNotScheduled)
}

func TestMemoryStorage_UpdateDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()
	n := newStoredNotification(t, storage, notification.StatusDraft)

	n.Subject = "Nouveau sujet"
	require.NoError(t, storage.UpdateDraft(ctx, n))

	got, err := storage.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nouveau sujet", got.Subject)

	sent := newStoredNotification(t, storage, notification.StatusSent)
	sent.Subject = "changed"
	assert.ErrorIs(t, storage.UpdateDraft(ctx, sent), notification.ErrNotDraft)

	unchanged, err := storage.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", unchanged.Subject)
}

func TestMemoryStorage_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := notification.NewMemoryStorage()

	draft := newStoredNotification(t, storage, notification.StatusDraft)
	require.NoError(t, storage.Delete(ctx, draft.ID, notification.StatusDraft, notification.StatusFailed))
	_, err := storage.GetByID(ctx, draft.ID)
	assert.ErrorIs(t, err, notification.ErrNotFound)

	sent := newStoredNotification(t, storage, notification.StatusSent)
	err = storage.Delete(ctx, sent.ID, notification.StatusDraft, notification.StatusFailed)
	assert.ErrorIs(t, err, notification.ErrNotDeletable)

	err = storage.Delete(ctx, uuid.New(), notification.StatusDraft)
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestMemoryStorage_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	storage := notification.NewMemoryStorage(notification.WithMemoryClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	first := newStoredNotification(t, storage, notification.StatusDraft)
	second := newStoredNotification(t, storage, notification.StatusSent)
	third := newStoredNotification(t, storage, notification.StatusSent)

	all, err := storage.List(ctx, notification.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[2].ID)

	sent := notification.StatusSent
	filtered, err := storage.List(ctx, notification.Filter{Status: &sent})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	paged, err := storage.List(ctx, notification.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, second.ID, paged[0].ID)
}
