package taskboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task represents a single unit of work on the board. Tasks are created by
// humans or Claude instances, claimed atomically by exactly one instance, and
// progress through a small status lifecycle until complete or failed.
type Task struct {
	ID           string   `json:"id"`            // UUID - unique identifier for this task
	Title        string   `json:"title"`         // One-line summary shown on the board
	Description  string   `json:"description"`   // Free-form detail (may be empty)
	Instance     string   `json:"instance"`      // Claude instance the task is assigned to (may be empty until claimed)
	Type         TaskType `json:"type"`          // Work category
	Priority     Priority `json:"priority"`      // Scheduling hint for instances picking work
	Status       Status   `json:"status"`        // Current lifecycle state
	Dependencies []string `json:"dependencies"`  // Task IDs that must complete first
	ClaimedBy    string   `json:"claimed_by"`    // Instance holding the claim (empty while pending)
	BlockedNote  string   `json:"blocked_note"`  // Why the task is blocked (only when status=blocked)
	CreatedAtMs  int64    `json:"created_at_ms"` // Unix timestamp in milliseconds
	UpdatedAtMs  int64    `json:"updated_at_ms"` // Unix timestamp in milliseconds of last write
}

// TaskType categorises the work a task represents.
type TaskType string

const (
	TaskTypeBuild       TaskType = "build"
	TaskTypeResearch    TaskType = "research"
	TaskTypeMonitor     TaskType = "monitor"
	TaskTypeIntegration TaskType = "integration"
	TaskTypeDeploy      TaskType = "deploy"
)

// Priority is the scheduling hint attached to a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status defines the lifecycle state of a task.
// Tasks progress: pending → claimed → in_progress → complete, with blocked and
// failed as side exits.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// legalTransitions maps each status to the set of statuses it may move to.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusClaimed, StatusFailed},
	StatusClaimed:    {StatusInProgress, StatusBlocked, StatusComplete, StatusFailed, StatusPending},
	StatusInProgress: {StatusBlocked, StatusComplete, StatusFailed},
	StatusBlocked:    {StatusInProgress, StatusFailed, StatusPending},
	StatusComplete:   {},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether a task may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation marks a shared resource (a file path, a sheet range, an MQTT
// topic) as in use by one instance. Reservations expire automatically so a
// crashed instance cannot hold a resource forever.
type Reservation struct {
	Resource    string        `json:"resource"`      // What is reserved
	Instance    string        `json:"instance"`      // Who holds it
	TaskID      string        `json:"task_id"`       // Task the work belongs to (may be empty)
	Note        string        `json:"note"`          // Short human-readable intent
	CreatedAtMs int64         `json:"created_at_ms"` // Unix timestamp in milliseconds
	TTL         time.Duration `json:"ttl"`           // Expiry applied in Redis
}

// EventKind identifies what happened on the board.
type EventKind string

const (
	EventTaskCreated         EventKind = "task_created"
	EventTaskClaimed         EventKind = "task_claimed"
	EventTaskUpdated         EventKind = "task_updated"
	EventReservationAcquired EventKind = "reservation_acquired"
	EventReservationReleased EventKind = "reservation_released"
	EventConflict            EventKind = "conflict"
	EventHeartbeat           EventKind = "heartbeat"
)

// Event is the full payload published on the project events channel whenever
// the board changes. Task and Reservation are populated depending on Kind.
type Event struct {
	Kind        EventKind    `json:"kind"`
	Task        *Task        `json:"task,omitempty"`
	Reservation *Reservation `json:"reservation,omitempty"`
	Instance    string       `json:"instance,omitempty"` // Instance that caused the event
	Detail      string       `json:"detail,omitempty"`   // Extra context (conflict holder, block reason)
	AtMs        int64        `json:"at_ms"`
}

// InstanceState is the derived liveness of a registered instance.
type InstanceState string

const (
	InstanceOnline  InstanceState = "Online"
	InstanceStale   InstanceState = "Stale"
	InstanceOffline InstanceState = "Offline"
)

// InstanceInfo describes one instance's presence on the board.
type InstanceInfo struct {
	Name     string        `json:"name"`
	Role     string        `json:"role"`
	State    InstanceState `json:"state"`
	LastSeen int64         `json:"last_seen_ms"`
}

// NewTask constructs a pending task with a fresh UUID and timestamps.
func NewTask(title string, taskType TaskType, priority Priority) *Task {
	now := time.Now().UnixMilli()
	return &Task{
		ID:           uuid.New().String(),
		Title:        title,
		Type:         taskType,
		Priority:     priority,
		Status:       StatusPending,
		Dependencies: []string{},
		CreatedAtMs:  now,
		UpdatedAtMs:  now,
	}
}

// Validate checks if the Task has valid field values.
// Returns an error if any validation fails.
func (t *Task) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid task ID: not a valid UUID")
	}

	if t.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}

	if err := t.Type.Validate(); err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	if err := t.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	// Validate all dependency IDs
	for i, depID := range t.Dependencies {
		if !isValidUUID(depID) {
			return fmt.Errorf("invalid dependency at index %d: not a valid UUID", i)
		}
	}

	return nil
}

// Validate checks if the TaskType is a valid enum value.
func (tt TaskType) Validate() error {
	switch tt {
	case TaskTypeBuild, TaskTypeResearch, TaskTypeMonitor, TaskTypeIntegration, TaskTypeDeploy:
		return nil
	default:
		return fmt.Errorf("unknown task type: %q", tt)
	}
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusClaimed, StatusInProgress, StatusBlocked, StatusComplete, StatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Validate checks if the Reservation has valid field values.
func (r *Reservation) Validate() error {
	if r.Resource == "" {
		return fmt.Errorf("reservation resource cannot be empty")
	}

	if r.Instance == "" {
		return fmt.Errorf("reservation instance cannot be empty")
	}

	if r.TaskID != "" && !isValidUUID(r.TaskID) {
		return fmt.Errorf("invalid reservation task ID: not a valid UUID")
	}

	if r.TTL < 0 {
		return fmt.Errorf("reservation TTL cannot be negative")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
