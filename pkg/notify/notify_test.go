package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDelivery(t *testing.T) {
	received := make(chan models.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n models.Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Notify.WebhookURL = srv.URL

	wh := NewWebhook(cfg)
	wh.Notify(models.Notification{
		Event:     models.NotifyTurnCompleted,
		SessionID: "s1",
		Owner:     "alice",
	})

	select {
	case n := <-received:
		assert.Equal(t, models.NotifyTurnCompleted, n.Event)
		assert.Equal(t, "s1", n.SessionID)
		assert.False(t, n.Timestamp.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestWebhookNoURLIsNoop(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	wh := NewWebhook(cfg)
	// Must not panic or block.
	wh.Notify(models.Notification{Event: models.NotifySessionCreated})
}

func TestWebhookUnreachableEndpointSwallowed(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Notify.WebhookURL = "http://127.0.0.1:1/unreachable"

	wh := NewWebhook(cfg)
	wh.Notify(models.Notification{Event: models.NotifySessionDeleted, SessionID: "s2"})
	// Failure is logged and swallowed; nothing to assert beyond no panic.
	time.Sleep(50 * time.Millisecond)
}
