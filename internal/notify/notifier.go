// Package notify provides notification backends for session and repository events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/jayteealao/colab/internal/config"
)

// Event represents a notification event.
type Event struct {
	Type      EventType
	SessionID string
	Branch    string
	Commit    string
	Status    string
	Message   string
	Timestamp time.Time
	Details   map[string]string
}

// EventType represents the type of notification event.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventSessionFinished EventType = "session_finished"
	EventSessionFailed   EventType = "session_failed"
	EventSessionStopped  EventType = "session_stopped"
	EventRepoCloned      EventType = "repo_cloned"
	EventRepoPulled      EventType = "repo_pulled"
	EventRepoCheckedOut  EventType = "repo_checked_out"
)

// Notifier is the interface for notification backends.
type Notifier interface {
	// Name returns the name of the notifier.
	Name() string

	// Send sends a notification event.
	Send(ctx context.Context, event Event) error

	// Close cleans up any resources.
	Close() error
}

// Sender is what event producers depend on.
type Sender interface {
	Notify(ctx context.Context, event Event) error
}

// Manager manages multiple notification backends.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
	}
}

// FromSettings builds a manager with every notifier configured in settings.
func FromSettings(s config.NotificationSettings) *Manager {
	m := NewManager()
	for _, wh := range s.Webhooks {
		if wh.URL != "" {
			m.Register(NewWebhookNotifier(wh.URL, wh.Headers))
		}
	}
	if s.Slack.WebhookURL != "" {
		m.Register(NewSlackNotifier(s.Slack.WebhookURL, s.Slack.Channel, s.Slack.Username))
	}
	if s.Discord.WebhookURL != "" {
		m.Register(NewDiscordNotifier(s.Discord.WebhookURL, s.Discord.Username))
	}
	return m
}

// Register adds a notifier to the manager.
func (m *Manager) Register(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Notify sends an event to all registered notifiers concurrently.
func (m *Manager) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, n := range m.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			if err := notifier.Send(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close closes all registered notifiers.
func (m *Manager) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of registered notifiers.
func (m *Manager) Count() int {
	return len(m.notifiers)
}

// FormatMessage creates a human-readable message from an event.
func FormatMessage(event Event) string {
	at := shortCommit(event.Commit)
	switch event.Type {
	case EventSessionStarted:
		return fmt.Sprintf("🚀 Editing session started on %s (%s)", event.Branch, at)
	case EventSessionFinished:
		return fmt.Sprintf("✅ Editing session finished on %s: %s", event.Branch, event.Message)
	case EventSessionFailed:
		return fmt.Sprintf("❌ Editing session failed: %s", event.Message)
	case EventSessionStopped:
		return fmt.Sprintf("🛑 Editor exited on %s (%s), session awaits finish", event.Branch, at)
	case EventRepoCloned:
		return fmt.Sprintf("📥 Repository cloned at %s (%s)", event.Branch, at)
	case EventRepoPulled:
		return fmt.Sprintf("⬇️ %s fast-forwarded to %s", event.Branch, at)
	case EventRepoCheckedOut:
		return fmt.Sprintf("🔀 Checked out %s (%s)", event.Branch, at)
	default:
		return fmt.Sprintf("[%s] %s", event.Type, event.Message)
	}
}

// GetEventTitle returns a human-readable title for an event type.
func GetEventTitle(event Event) string {
	switch event.Type {
	case EventSessionStarted:
		return "🚀 Session Started"
	case EventSessionFinished:
		return "✅ Session Finished"
	case EventSessionFailed:
		return "❌ Session Failed"
	case EventSessionStopped:
		return "🛑 Editor Exited"
	case EventRepoCloned:
		return "📥 Repository Cloned"
	case EventRepoPulled:
		return "⬇️ Repository Pulled"
	case EventRepoCheckedOut:
		return "🔀 Checked Out"
	default:
		return string(event.Type)
	}
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// retryBackoff is the first retry delay; it doubles on every attempt.
var retryBackoff = time.Second

// retryableSend executes an HTTP request with retry logic for transient failures.
func retryableSend(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff << (attempt - 1)):
			}

			// The previous attempt consumed the body.
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Don't retry client errors (4xx), only server errors (5xx)
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

type field struct {
	name, value string
}

// eventFields lists the non-empty event attributes, details sorted by key.
func eventFields(event Event) []field {
	var fields []field
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, field{name, value})
		}
	}
	add("Session", event.SessionID)
	add("Branch", event.Branch)
	add("Commit", shortCommit(event.Commit))
	add("Status", event.Status)

	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		add(k, event.Details[k])
	}
	return fields
}
