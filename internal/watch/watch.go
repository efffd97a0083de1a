// Package watch streams live board events to a terminal, either as
// human-readable lines or as line-delimited JSON.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// OutputFormat selects how events are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// formatter renders one board event to the output stream.
type formatter interface {
	Format(ev *taskboard.Event) error
}

// defaultFormatter writes human-readable lines with timestamps and emojis.
type defaultFormatter struct {
	writer io.Writer
}

// Format renders one event as a single line. Anything else on the shared
// channel may publish events, so a task or reservation event missing its
// payload is dropped rather than trusted.
func (f *defaultFormatter) Format(ev *taskboard.Event) error {
	switch ev.Kind {
	case taskboard.EventTaskCreated, taskboard.EventTaskClaimed, taskboard.EventTaskUpdated:
		if ev.Task == nil {
			return nil
		}
	case taskboard.EventReservationAcquired, taskboard.EventReservationReleased:
		if ev.Reservation == nil {
			return nil
		}
	}

	ts := time.UnixMilli(ev.AtMs).Format("15:04:05")

	var line string
	switch ev.Kind {
	case taskboard.EventTaskCreated:
		line = fmt.Sprintf("📋 Task Created: %q type=%s priority=%s id=%s",
			ev.Task.Title, ev.Task.Type, ev.Task.Priority, shortID(ev.Task.ID))

	case taskboard.EventTaskClaimed:
		line = fmt.Sprintf("🙋 Task Claimed: %q by=%s id=%s",
			ev.Task.Title, ev.Task.ClaimedBy, shortID(ev.Task.ID))

	case taskboard.EventTaskUpdated:
		line = fmt.Sprintf("🔄 Task Updated: %q status=%s id=%s",
			ev.Task.Title, ev.Task.Status, shortID(ev.Task.ID))
		if ev.Task.Status == taskboard.StatusBlocked && ev.Task.BlockedNote != "" {
			line += fmt.Sprintf(" blocked-on=%q", ev.Task.BlockedNote)
		}

	case taskboard.EventReservationAcquired:
		line = fmt.Sprintf("🔒 Reserved: %q by=%s", ev.Reservation.Resource, ev.Instance)

	case taskboard.EventReservationReleased:
		line = fmt.Sprintf("🔓 Released: %q by=%s", ev.Reservation.Resource, ev.Instance)

	case taskboard.EventConflict:
		line = fmt.Sprintf("⚡ Conflict: instance=%s %s", ev.Instance, ev.Detail)

	case taskboard.EventHeartbeat:
		line = fmt.Sprintf("💓 Heartbeat: %s role=%s", ev.Instance, ev.Detail)

	default:
		line = fmt.Sprintf("Event: %s instance=%s", ev.Kind, ev.Instance)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, line)
	return err
}

// jsonFormatter writes one JSON document per line.
type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) Format(ev *taskboard.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", payload)
	return err
}

// StreamActivity subscribes to board events and writes them to the output
// stream until the context is cancelled.
func StreamActivity(ctx context.Context, client *taskboard.Client, format OutputFormat, out io.Writer) error {
	var f formatter
	switch format {
	case OutputFormatJSON:
		f = &jsonFormatter{writer: out}
	default:
		f = &defaultFormatter{writer: out}
	}

	subscription, err := client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer subscription.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(out, "Watching board '%s' (Ctrl+C to stop)...\n", client.Project())
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-subscription.Events():
			if !ok {
				return nil
			}
			if err := f.Format(ev); err != nil {
				return err
			}

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			// Non-fatal: a malformed event is skipped.
			fmt.Fprintf(out, "warning: %v\n", err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
