package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_DisabledIsNoop(t *testing.T) {
	c := NewClient("")
	assert.False(t, c.Enabled())
	assert.NoError(t, c.SendMessage(context.Background(), WebhookMessage{Content: "hi"}))
}

func TestSendLoadReport(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendLoadReport(context.Background(), LoadSummary{
		Source:             "metro.json",
		Version:            "v1",
		Stations:           10,
		Connections:        9,
		DroppedConnections: 1,
		Unresolved:         []string{"A", "B"},
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, 0xFFA500, embed.Color)
	assert.Equal(t, "metro.json", embed.Description)
	last := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "stations_without_line", last.Name)
	assert.Equal(t, "A, B", last.Value)
}

func TestSendMessage_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SendLogMessage("ERROR", "failed", map[string]interface{}{"k": "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 2000)
	assert.Len(t, truncate(long), maxFieldValue)
	assert.Equal(t, "short", truncate("short"))
}
