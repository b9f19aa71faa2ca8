package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ekadashi.app/config"
	"ekadashi.app/errors"
	"ekadashi.app/models"
)

// LogNotifier writes notifications to the structured log. The default sink
// for development and headless deployments.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

// Send logs the notification
func (n *LogNotifier) Send(_ context.Context, notification *models.Notification) error {
	slog.Info("notification",
		"notification_id", notification.NotificationID,
		"title", notification.Title,
		"body", notification.Body,
	)
	return nil
}

// WebhookNotifier POSTs notifications to a configured endpoint, typically a
// push-relay that forwards them to the user's device.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook-backed notifier
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Send delivers the notification to the webhook endpoint
func (n *WebhookNotifier) Send(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return errors.NewNotifierError("marshal notification", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return errors.NewNotifierError("build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.NewNotifierError("webhook request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewNotifierError(
			fmt.Sprintf("webhook returned status code %d", resp.StatusCode), nil)
	}
	return nil
}

// NewNotifierFromConfig selects the notifier implementation by configuration
func NewNotifierFromConfig(cfg *config.NotifierConfig) (Notifier, error) {
	switch cfg.Type {
	case "log":
		return NewLogNotifier(), nil
	case "webhook":
		return NewWebhookNotifier(cfg.WebhookURL), nil
	}
	return nil, errors.NewConfigurationError(fmt.Sprintf("unknown notifier type %q", cfg.Type), nil)
}
