package logmail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/studentdash/internal/ports"
)

func TestMailer_LogsAndRetains(t *testing.T) {
	var buf bytes.Buffer
	m := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), ports.MailMessage{To: "ada@example.com", Subject: "Verify"}))
	assert.Contains(t, buf.String(), `"to":"ada@example.com"`)
	assert.Contains(t, buf.String(), `"subject":"Verify"`)
	assert.Len(t, m.Sent(), 1)
}

func TestMailer_RetentionBound(t *testing.T) {
	m := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	for i := range 60 {
		require.NoError(t, m.Send(context.Background(), ports.MailMessage{Subject: fmt.Sprint(i)}))
	}
	sent := m.Sent()
	require.Len(t, sent, 50)
	assert.Equal(t, "10", sent[0].Subject)
	assert.Equal(t, "59", sent[49].Subject)
}
