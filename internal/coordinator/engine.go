// Package coordinator implements the daemon that watches the task board and
// mirrors every change out to the human-facing surfaces: the Google Sheet,
// the Discord channel and the MQTT Unified Namespace. Integrations degrade
// independently; a Sheets outage never stops Discord announcements.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/internal/discord"
	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// notifier is the slice of the Discord client the engine uses.
type notifier interface {
	Send(ctx context.Context, msg discord.Message) error
}

// mirror is the slice of the Sheets client the engine uses.
type mirror interface {
	EnsureHeader(ctx context.Context) error
	AppendTask(ctx context.Context, t *taskboard.Task) error
	UpdateTask(ctx context.Context, t *taskboard.Task) error
}

// publisher is the slice of the UNS publisher the engine uses.
type publisher interface {
	TaskStatus(t *taskboard.Task) error
	InstanceAvailability(instanceName string, online bool) error
	BoardSnapshot(project string, tasks []*taskboard.Task) error
	Connected() bool
}

// Options wires the engine to its board client and optional integrations.
// Any of Notifier, Mirror and Publisher may be nil; the engine simply skips
// that surface.
type Options struct {
	Client    *taskboard.Client
	Notifier  notifier
	Mirror    mirror
	Publisher publisher

	// Instances is the configured instance list; the liveness sweep reports
	// any of these whose heartbeat disappears.
	Instances []string

	// StaleAfter is how old a heartbeat may be before the instance counts as
	// stale. Defaults to 2 minutes.
	StaleAfter time.Duration

	// SweepInterval is how often the liveness sweep runs. Defaults to 30s.
	SweepInterval time.Duration

	// HealthAddr is the health endpoint bind address. Defaults to ":8080".
	HealthAddr string
}

// Engine is the coordinator daemon core.
type Engine struct {
	client        *taskboard.Client
	notifier      notifier
	mirror        mirror
	publisher     publisher
	instances     []string
	staleAfter    time.Duration
	sweepInterval time.Duration
	healthServer  *HealthServer

	// lastOnline tracks which configured instances were alive on the previous
	// sweep, so each offline transition is announced exactly once.
	lastOnline map[string]bool
}

// NewEngine creates a coordinator engine. The board client is required.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("board client is required")
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.HealthAddr == "" {
		opts.HealthAddr = ":8080"
	}

	e := &Engine{
		client:        opts.Client,
		notifier:      opts.Notifier,
		mirror:        opts.Mirror,
		publisher:     opts.Publisher,
		instances:     opts.Instances,
		staleAfter:    opts.StaleAfter,
		sweepInterval: opts.SweepInterval,
		lastOnline:    make(map[string]bool),
	}
	e.healthServer = NewHealthServer(opts.Client, opts.Publisher, opts.HealthAddr)
	return e, nil
}

// Run starts the coordinator and blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer e.healthServer.Shutdown(context.Background())

	project := e.client.Project()
	log.Printf("[Coordinator] Starting for project '%s'", project)

	if e.mirror != nil {
		if err := e.mirror.EnsureHeader(ctx); err != nil {
			// Sheets being down must not stop the daemon.
			log.Printf("[Coordinator] Sheets header check failed: %v", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.Send(ctx, discord.CoordinatorOnline(project)); err != nil {
			log.Printf("[Coordinator] Startup announcement failed: %v", err)
		}
	}

	subscription, err := e.client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer subscription.Close()

	log.Printf("[Coordinator] Subscribed to board events")

	sweep := time.NewTicker(e.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Coordinator] Shutting down...")
			return nil

		case ev, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Coordinator] Subscription closed")
				return nil
			}
			e.handleEvent(ctx, ev)

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Coordinator] Error channel closed")
				return nil
			}
			log.Printf("[Coordinator] Subscription error: %v", err)
			// Continue processing - errors are non-fatal

		case <-sweep.C:
			e.sweepLiveness(ctx)
		}
	}
}

// handleEvent fans one board event out to every configured surface.
// Integration failures are logged and swallowed so one dead surface cannot
// stall the others.
func (e *Engine) handleEvent(ctx context.Context, ev *taskboard.Event) {
	e.logEvent("board_event", map[string]interface{}{
		"kind":     string(ev.Kind),
		"instance": ev.Instance,
	})

	switch ev.Kind {
	case taskboard.EventTaskCreated:
		if ev.Task == nil {
			e.logEvent("malformed_event", map[string]interface{}{"kind": string(ev.Kind)})
			return
		}
		e.mirrorTask(ctx, ev.Task, true)
		e.announce(ctx, discord.TaskUpdate(ev))
		e.publishTask(ctx, ev.Task)

	case taskboard.EventTaskClaimed, taskboard.EventTaskUpdated:
		if ev.Task == nil {
			e.logEvent("malformed_event", map[string]interface{}{"kind": string(ev.Kind)})
			return
		}
		e.mirrorTask(ctx, ev.Task, false)
		e.announce(ctx, discord.TaskUpdate(ev))
		e.publishTask(ctx, ev.Task)

	case taskboard.EventConflict:
		e.announce(ctx, discord.ConflictAlert(ev))

	case taskboard.EventHeartbeat:
		if e.publisher != nil {
			if err := e.publisher.InstanceAvailability(ev.Instance, true); err != nil {
				log.Printf("[Coordinator] UNS availability publish failed: %v", err)
			}
		}

	case taskboard.EventReservationAcquired, taskboard.EventReservationReleased:
		// Reservations are working-level detail; logged but not announced.
	}
}

// mirrorTask writes a task row into the sheet.
func (e *Engine) mirrorTask(ctx context.Context, t *taskboard.Task, isNew bool) {
	if e.mirror == nil || t == nil {
		return
	}

	var err error
	if isNew {
		err = e.mirror.AppendTask(ctx, t)
	} else {
		err = e.mirror.UpdateTask(ctx, t)
	}
	if err != nil {
		log.Printf("[Coordinator] Sheets mirror failed for task %s: %v", t.ID, err)
	}
}

// announce posts a message to Discord.
func (e *Engine) announce(ctx context.Context, msg discord.Message) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		log.Printf("[Coordinator] Discord announcement failed: %v", err)
	}
}

// publishTask pushes the task status and a fresh board snapshot into the UNS.
func (e *Engine) publishTask(ctx context.Context, t *taskboard.Task) {
	if e.publisher == nil || t == nil {
		return
	}

	if err := e.publisher.TaskStatus(t); err != nil {
		log.Printf("[Coordinator] UNS task publish failed: %v", err)
		return
	}

	tasks, err := e.client.ListTasks(ctx)
	if err != nil {
		log.Printf("[Coordinator] Board snapshot read failed: %v", err)
		return
	}
	if err := e.publisher.BoardSnapshot(e.client.Project(), tasks); err != nil {
		log.Printf("[Coordinator] UNS snapshot publish failed: %v", err)
	}
}

// sweepLiveness compares live heartbeats against the configured instance list
// and announces each instance exactly once when it drops off the board.
func (e *Engine) sweepLiveness(ctx context.Context) {
	infos, err := e.client.Instances(ctx, e.staleAfter)
	if err != nil {
		log.Printf("[Coordinator] Liveness sweep failed: %v", err)
		return
	}

	online := make(map[string]bool, len(infos))
	lastSeen := make(map[string]int64, len(infos))
	for _, info := range infos {
		online[info.Name] = info.State == taskboard.InstanceOnline
		lastSeen[info.Name] = info.LastSeen
	}

	for _, name := range e.instances {
		isUp := online[name]

		if !isUp && e.lastOnline[name] {
			e.logEvent("instance_offline", map[string]interface{}{
				"name": name,
			})
			e.announce(ctx, discord.InstanceOffline(name, time.UnixMilli(lastSeen[name])))
			if e.publisher != nil {
				if err := e.publisher.InstanceAvailability(name, false); err != nil {
					log.Printf("[Coordinator] UNS availability publish failed: %v", err)
				}
			}
		}

		e.lastOnline[name] = isUp
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "coordinator"
	data["event_type"] = eventType
	data["project"] = e.client.Project()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Coordinator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
