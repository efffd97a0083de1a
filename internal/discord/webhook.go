// Package discord posts stack notifications to a Discord webhook.
// Webhooks need no bot token or gateway connection, which keeps the
// coordinator's footprint at a single HTTPS POST per announcement.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// Embed colors (Discord uses decimal RGB).
const (
	colorGreen  = 0x2ecc71
	colorYellow = 0xf1c40f
	colorRed    = 0xe74c3c
	colorBlue   = 0x3498db
)

// Message is the webhook payload. Content and Embeds may both be set.
type Message struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed is a single rich block in a Discord message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // RFC3339
}

// EmbedField is a name/value pair rendered inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small line under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Notifier sends messages through one configured webhook.
type Notifier struct {
	webhookURL string
	username   string
	httpClient *http.Client
}

// NewNotifier creates a notifier for the given webhook URL.
// A nil httpClient gets a default with a 10s timeout.
func NewNotifier(webhookURL, username string, httpClient *http.Client) (*Notifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		httpClient: httpClient,
	}, nil
}

// Send posts a message to the webhook. The notifier's username is applied
// when the message doesn't set its own.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if msg.Username == "" {
		msg.Username = n.username
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()

	// Discord answers 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// TaskUpdate builds the announcement for a task event. Returns the zero
// Message when the event carries no task; callers skip empty messages.
func TaskUpdate(ev *taskboard.Event) Message {
	task := ev.Task
	if task == nil {
		return Message{}
	}

	var title string
	color := colorBlue
	switch {
	case ev.Kind == taskboard.EventTaskCreated:
		title = fmt.Sprintf("📋 New task: %s", task.Title)
	case ev.Kind == taskboard.EventTaskClaimed:
		title = fmt.Sprintf("🙋 %s claimed: %s", task.ClaimedBy, task.Title)
	case task.Status == taskboard.StatusComplete:
		title = fmt.Sprintf("✅ Completed: %s", task.Title)
		color = colorGreen
	case task.Status == taskboard.StatusFailed:
		title = fmt.Sprintf("❌ Failed: %s", task.Title)
		color = colorRed
	case task.Status == taskboard.StatusBlocked:
		title = fmt.Sprintf("🚧 Blocked: %s", task.Title)
		color = colorYellow
	default:
		title = fmt.Sprintf("🔄 %s → %s", task.Title, task.Status)
	}

	fields := []EmbedField{
		{Name: "Priority", Value: string(task.Priority), Inline: true},
		{Name: "Type", Value: string(task.Type), Inline: true},
	}
	if task.ClaimedBy != "" {
		fields = append(fields, EmbedField{Name: "Instance", Value: task.ClaimedBy, Inline: true})
	}
	if task.BlockedNote != "" {
		fields = append(fields, EmbedField{Name: "Blocked on", Value: task.BlockedNote})
	}

	return Message{
		Embeds: []Embed{{
			Title:       title,
			Description: task.Description,
			Color:       color,
			Fields:      fields,
			Footer:      &EmbedFooter{Text: shortID(task.ID)},
			Timestamp:   time.UnixMilli(ev.AtMs).UTC().Format(time.RFC3339),
		}},
	}
}

// ConflictAlert builds the announcement for a claim or reservation conflict.
func ConflictAlert(ev *taskboard.Event) Message {
	what := "task"
	name := ""
	if ev.Task != nil {
		name = ev.Task.Title
	}
	if ev.Reservation != nil {
		what = "resource"
		name = ev.Reservation.Resource
	}

	return Message{
		Embeds: []Embed{{
			Title:       fmt.Sprintf("⚡ Conflict on %s %q", what, name),
			Description: fmt.Sprintf("%s tried to take it but the %s", ev.Instance, ev.Detail),
			Color:       colorRed,
			Timestamp:   time.UnixMilli(ev.AtMs).UTC().Format(time.RFC3339),
		}},
	}
}

// InstanceOffline builds the announcement for an instance whose heartbeat expired.
func InstanceOffline(name string, lastSeen time.Time) Message {
	return Message{
		Embeds: []Embed{{
			Title:       fmt.Sprintf("💤 %s went offline", name),
			Description: fmt.Sprintf("Last heartbeat %s", lastSeen.UTC().Format(time.RFC3339)),
			Color:       colorYellow,
		}},
	}
}

// CoordinatorOnline announces the daemon starting up.
func CoordinatorOnline(project string) Message {
	return Message{
		Embeds: []Embed{{
			Title:       "🟢 Coordinator online",
			Description: fmt.Sprintf("Watching the %s board", project),
			Color:       colorGreen,
		}},
	}
}

// shortID truncates a task UUID to its first 8 characters for footers.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
