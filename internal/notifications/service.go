package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stitch/internal/config"
)

const userAgent = "Stitch-Go/0.1.0"

// Service defines the notification surface exposed to the engine and daemon.
type Service interface {
	NotifyDetectionCompleted(ctx context.Context, suggestions, highConfidence, servicesScanned int) error
	NotifyMappingsCreated(ctx context.Context, created, failed int) error
	NotifySyncFailure(ctx context.Context, centralUserID, serviceName, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
// The per-event booleans on the config suppress individual notifications
// without disabling the channel.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		detection:    cfg.Notifications.Detection,
		mappings:     cfg.Notifications.Mappings,
		syncFailures: cfg.Notifications.SyncFailures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	detection    bool
	mappings     bool
	syncFailures bool
}

func (n *ntfyService) NotifyDetectionCompleted(ctx context.Context, suggestions, highConfidence, servicesScanned int) error {
	if !n.detection {
		return nil
	}
	message := fmt.Sprintf("🔍 Detection complete: %d suggestions across %d services", suggestions, servicesScanned)
	if highConfidence > 0 {
		message = fmt.Sprintf("%s (%d high confidence)", message, highConfidence)
	}
	data := payload{
		title:   "Stitch - Detection Complete",
		message: message,
		tags:    []string{"stitch", "detect", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMappingsCreated(ctx context.Context, created, failed int) error {
	if !n.mappings {
		return nil
	}
	data := payload{
		title:   "Stitch - Mappings Created",
		message: fmt.Sprintf("🔗 Created %d user mappings", created),
		tags:    []string{"stitch", "mappings", "created"},
	}
	if failed > 0 {
		data.title = "Stitch - Mappings Created (with errors)"
		data.message = fmt.Sprintf("🔗 Created %d user mappings, %d failed", created, failed)
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncFailure(ctx context.Context, centralUserID, serviceName, reason string) error {
	if !n.syncFailures {
		return nil
	}
	centralUserID = strings.TrimSpace(centralUserID)
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		serviceName = "unknown service"
	}

	var builder strings.Builder
	builder.WriteString("❌ Sync failed for ")
	builder.WriteString(centralUserID)
	builder.WriteString(" on ")
	builder.WriteString(serviceName)
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(": ")
		builder.WriteString(reason)
	}

	data := payload{
		title:    "Stitch - Sync Failure",
		message:  builder.String(),
		tags:     []string{"stitch", "sync", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Stitch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"stitch", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDetectionCompleted(context.Context, int, int, int) error { return nil }
func (noopService) NotifyMappingsCreated(context.Context, int, int) error { return nil }
func (noopService) NotifySyncFailure(context.Context, string, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error { return nil }
