package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"greylit/internal/config"
)

const userAgent = "Greylit/0.1.0"

// Event identifies a run lifecycle moment worth announcing.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventSessionReady Event = "session_ready"
)

// Payload carries the event's fields. Sinks that structure their output
// forward it verbatim; the webhook sink renders it into a human message.
type Payload map[string]string

func (p Payload) get(key, fallback string) string {
	if value := strings.TrimSpace(p[key]); value != "" {
		return value
	}
	return fallback
}

// Service publishes run lifecycle events to the configured sinks.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds a notification service from config. With neither a
// webhook URL nor a Redis address configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	enabled := map[Event]bool{
		EventRunStarted:   cfg.Notifications.RunStarted,
		EventRunCompleted: cfg.Notifications.RunCompleted,
		EventRunFailed:    cfg.Notifications.RunFailed,
		EventSessionReady: cfg.Notifications.SessionReady,
	}

	var sinks []sink
	if endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL); endpoint != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sinks = append(sinks, &webhookSink{
			endpoint: endpoint,
			client:   &http.Client{Timeout: timeout},
		})
	}
	if addr := strings.TrimSpace(cfg.Notifications.RedisAddr); addr != "" {
		sinks = append(sinks, newRedisSink(addr, cfg.Notifications.RedisChannel))
	}
	if len(sinks) == 0 {
		return noopService{}
	}
	return &service{sinks: sinks, enabled: enabled}
}

// message is the rendered, human-readable form of an event.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type sink interface {
	send(ctx context.Context, event Event, payload Payload, msg message) error
	close() error
}

type service struct {
	sinks   []sink
	enabled map[Event]bool
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	if !s.enabled[event] {
		return nil
	}
	msg := render(event, payload)
	var errs []error
	for _, target := range s.sinks {
		if err := target.send(ctx, event, payload, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *service) Close() error {
	var errs []error
	for _, target := range s.sinks {
		if err := target.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// render produces the sink-agnostic human form of an event.
func render(event Event, payload Payload) message {
	session := payload.get("session", "unknown session")
	switch event {
	case EventRunStarted:
		return message{
			title: "Greylit - Processing Started",
			body:  fmt.Sprintf("Processing started for %s: %s raw results", session, payload.get("total", "0")),
			tags:  []string{"greylit", "run", "started"},
		}
	case EventRunCompleted:
		processed := payload.get("processed", "0")
		duplicates := payload.get("duplicates", "0")
		duration := payload.get("duration", "0s")
		switch payload.get("status", "completed") {
		case "cancelled":
			return message{
				title: "Greylit - Processing Cancelled",
				body:  fmt.Sprintf("Processing cancelled for %s: %s results kept", session, processed),
				tags:  []string{"greylit", "run", "cancelled"},
			}
		case "partial":
			return message{
				title: "Greylit - Processing Complete (with errors)",
				body: fmt.Sprintf("Processing complete for %s: %s succeeded, %s failed, %s duplicates in %s",
					session, processed, payload.get("errors", "0"), duplicates, duration),
				tags: []string{"greylit", "run", "completed"},
			}
		default:
			return message{
				title: "Greylit - Processing Complete",
				body: fmt.Sprintf("✅ Processing complete for %s: %s results, %s duplicates in %s",
					session, processed, duplicates, duration),
				tags: []string{"greylit", "run", "completed"},
			}
		}
	case EventRunFailed:
		return message{
			title:    "Greylit - Processing Failed",
			body:     fmt.Sprintf("❌ Processing failed for %s: %s", session, payload.get("reason", "unknown error")),
			tags:     []string{"greylit", "run", "failed"},
			priority: "high",
		}
	case EventSessionReady:
		return message{
			title: "Greylit - Session Ready",
			body:  fmt.Sprintf("✅ %s is ready for review: %s results", session, payload.get("results", "0")),
			tags:  []string{"greylit", "session", "ready"},
		}
	default:
		return message{
			title: "Greylit",
			body:  string(event),
			tags:  []string{"greylit"},
		}
	}
}

type webhookSink struct {
	endpoint string
	client   *http.Client
}

func (w *webhookSink) send(ctx context.Context, _ Event, _ Payload, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (w *webhookSink) close() error { return nil }

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }
