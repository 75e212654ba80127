// Package notify delivers fire-and-forget lifecycle notifications.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/sirupsen/logrus"
)

// Notifier receives session lifecycle notifications. Implementations must
// never block the caller on delivery.
type Notifier interface {
	Notify(n models.Notification)
}

// Webhook posts notifications as JSON to a configured URL. Delivery runs on
// its own goroutine; failures are logged and swallowed.
type Webhook struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

// NewWebhook returns a webhook notifier, or a no-op one when no URL is
// configured.
func NewWebhook(cfg *config.Config) *Webhook {
	return &Webhook{
		url:    cfg.Notify.WebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logging.NewLogger("notify"),
	}
}

// Notify dispatches the notification asynchronously.
func (w *Webhook) Notify(n models.Notification) {
	if w.url == "" {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	go func() {
		body, err := json.Marshal(n)
		if err != nil {
			w.log.WithError(err).Warn("Failed to encode notification")
			return
		}

		resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
		if err != nil {
			w.log.WithError(err).WithField("event", n.Event).Warn("Notification delivery failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			w.log.WithFields(logrus.Fields{
				"event":  n.Event,
				"status": resp.StatusCode,
			}).Warn("Notification endpoint returned an error")
		}
	}()
}
