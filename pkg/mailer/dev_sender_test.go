package mailer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/mailer"
)

func TestDevSender_Send(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := mailer.NewDevSender(dir)

	err := sender.Send(context.Background(), mailer.Message{
		To:      "parent@example.com",
		ToName:  "Marie Dupont",
		Subject: "Rappel de paiement",
		Body:    "Bonjour Marie Dupont",
		Tag:     "payment_reminder",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "body and metadata files")

	var bodyFile string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".txt") {
			bodyFile = entry.Name()
		}
	}
	require.NotEmpty(t, bodyFile)
	assert.Contains(t, bodyFile, "payment_reminder")

	body, err := os.ReadFile(filepath.Join(dir, bodyFile))
	require.NoError(t, err)
	assert.Equal(t, "Bonjour Marie Dupont", string(body))
}

func TestDevSender_RejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	sender := mailer.NewDevSender(t.TempDir())
	err := sender.Send(context.Background(), mailer.Message{To: "bad"})
	assert.ErrorIs(t, err, mailer.ErrInvalidMessage)
}
