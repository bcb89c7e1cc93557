package template_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/template"
)

func newTemplate(kind string, active bool) template.Template {
	return template.Template{
		ID:       uuid.New(),
		Name:     "tpl-" + uuid.NewString(),
		Type:     kind,
		Subject:  "subject {{x}}",
		Body:     "body {{x}}",
		IsActive: active,
	}
}

func TestMemoryStorage_FindActiveByType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := template.NewMemoryStorage()

	inactive := newTemplate("general", false)
	active := newTemplate("general", true)
	require.NoError(t, store.Create(ctx, inactive))
	require.NoError(t, store.Create(ctx, active))

	got, err := store.FindActiveByType(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = store.FindActiveByType(ctx, "payment_reminder")
	assert.ErrorIs(t, err, template.ErrNotFound)
}

func TestMemoryStorage_SingleActivePerType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := template.NewMemoryStorage()
	require.NoError(t, store.Create(ctx, newTemplate("general", true)))

	err := store.Create(ctx, newTemplate("general", true))
	assert.ErrorIs(t, err, template.ErrDuplicateActive)

	// A second inactive template for the same type is fine.
	assert.NoError(t, store.Create(ctx, newTemplate("general", false)))

	// Activating it via update must also be rejected.
	third := newTemplate("general", false)
	require.NoError(t, store.Create(ctx, third))
	third.IsActive = true
	assert.ErrorIs(t, store.Update(ctx, third), template.ErrDuplicateActive)
}

func TestMemoryStorage_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := template.NewMemoryStorage()
	tpl := newTemplate("general", true)
	tpl.Subject = ""
	assert.ErrorIs(t, store.Create(ctx, tpl), template.ErrSubjectRequired)
}

func TestMemoryStorage_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := template.NewMemoryStorage()
	tpl := newTemplate("general", true)
	require.NoError(t, store.Create(ctx, tpl))

	require.NoError(t, store.Delete(ctx, tpl.ID))
	_, err := store.GetByID(ctx, tpl.ID)
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)

	assert.ErrorIs(t, store.Delete(ctx, tpl.ID), template.ErrTemplateNotFound)
}

func TestSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := template.NewMemoryStorage()
	require.NoError(t, template.Seed(ctx, store))

	for _, kind := range []string{"payment_reminder", "urgent_info", "general"} {
		tpl, err := store.FindActiveByType(ctx, kind)
		require.NoError(t, err, kind)
		assert.True(t, tpl.IsActive)
	}

	// Seeding twice must not duplicate active templates.
	require.NoError(t, template.Seed(ctx, store))
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
