package taskboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors returned by board operations. Callers should test with
// errors.Is; the wrapped message carries the holder's name where relevant.
var (
	// ErrTaskClaimed is returned when another instance already holds the claim.
	ErrTaskClaimed = errors.New("task already claimed")

	// ErrResourceReserved is returned when another instance holds a reservation.
	ErrResourceReserved = errors.New("resource already reserved")

	// ErrNotReservationOwner is returned when releasing a reservation held by
	// someone else.
	ErrNotReservationOwner = errors.New("reservation held by another instance")

	// ErrBadTransition is returned for an illegal status change.
	ErrBadTransition = errors.New("illegal status transition")
)

// releaseScript deletes a reservation only if the caller still owns it.
// KEYS[1] = reservation key, ARGV[1] = instance name.
// Returns 1 on delete, 0 when owned by someone else, -1 when absent.
var releaseScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == false then
  return -1
end
local data = cjson.decode(holder)
if data["instance"] == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// DefaultReservationTTL is applied when a reservation is acquired without an
// explicit TTL. Expiry keeps a crashed instance from holding a resource forever.
const DefaultReservationTTL = 30 * time.Minute

// Client provides project-scoped Redis operations for the task board.
// All keys and channels are automatically namespaced with the project name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	project string
}

// NewClient creates a new task board client for the specified project.
// The client automatically namespaces all keys and channels with the project name.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Project returns the project namespace this client operates on.
func (c *Client) Project() string {
	return c.project
}

// CreateTask writes a task to Redis and publishes a task_created event.
// Validates the task before writing. Publishes the full event JSON to
// iotstack:{project}:events after a successful write.
func (c *Client) CreateTask(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	hash, err := TaskToHash(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	key := TaskKey(c.project, t.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	return c.publishEvent(ctx, &Event{
		Kind:     EventTaskCreated,
		Task:     t,
		Instance: t.Instance,
		AtMs:     time.Now().UnixMilli(),
	})
}

// GetTask retrieves a task by ID.
// Returns (nil, redis.Nil) if the task doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	key := TaskKey(c.project, taskID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	task, err := HashToTask(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}

	return task, nil
}

// ListTasks retrieves every task in the project.
// The board is small (tens of tasks) so a KEYS scan is acceptable here.
func (c *Client) ListTasks(ctx context.Context) ([]*Task, error) {
	keys, err := c.rdb.Keys(ctx, TaskKeyPattern(c.project)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list task keys: %w", err)
	}

	tasks := make([]*Task, 0, len(keys))
	for _, key := range keys {
		// The task pattern also matches claim marker keys.
		if strings.HasSuffix(key, ":claim") {
			continue
		}

		hashData, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read task %s: %w", key, err)
		}
		if len(hashData) == 0 {
			continue
		}

		task, err := HashToTask(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize task %s: %w", key, err)
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// UpdateTask replaces an existing task with new data (full HSET replacement)
// and publishes a task_updated event. Validates the task before writing.
func (c *Client) UpdateTask(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	t.UpdatedAtMs = time.Now().UnixMilli()

	hash, err := TaskToHash(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	key := TaskKey(c.project, t.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to update task in Redis: %w", err)
	}

	return c.publishEvent(ctx, &Event{
		Kind:     EventTaskUpdated,
		Task:     t,
		Instance: t.ClaimedBy,
		AtMs:     time.Now().UnixMilli(),
	})
}

// ClaimTask atomically claims a pending task for an instance.
// The claim marker is written with SETNX so exactly one instance wins; the
// loser receives ErrTaskClaimed (with the holder's name) and a conflict event
// is published so the coordinator can announce it.
func (c *Client) ClaimTask(ctx context.Context, taskID, instanceName string) (*Task, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	task, err := c.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Terminal states reject the claim outright; a task someone actively
	// holds is the ordinary lose path and reports the holder instead.
	if !task.Status.CanTransition(StatusClaimed) {
		if task.Status == StatusComplete || task.Status == StatusFailed {
			return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, ErrBadTransition)
		}
		return nil, c.claimConflict(ctx, task, instanceName)
	}

	claimKey := TaskClaimKey(c.project, taskID)
	ok, err := c.rdb.SetNX(ctx, claimKey, instanceName, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to write claim marker: %w", err)
	}

	if !ok {
		return nil, c.claimConflict(ctx, task, instanceName)
	}

	task.Status = StatusClaimed
	task.ClaimedBy = instanceName
	task.Instance = instanceName
	task.UpdatedAtMs = time.Now().UnixMilli()

	hash, err := TaskToHash(task)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize task: %w", err)
	}
	if err := c.rdb.HSet(ctx, TaskKey(c.project, taskID), hash).Err(); err != nil {
		return nil, fmt.Errorf("failed to update claimed task: %w", err)
	}

	if err := c.publishEvent(ctx, &Event{
		Kind:     EventTaskClaimed,
		Task:     task,
		Instance: instanceName,
		AtMs:     time.Now().UnixMilli(),
	}); err != nil {
		return nil, err
	}

	return task, nil
}

// claimConflict publishes the conflict event and returns ErrTaskClaimed
// naming the holder. The claim marker is the authority on who holds the
// task; the task's own ClaimedBy field covers a marker lost to expiry.
func (c *Client) claimConflict(ctx context.Context, task *Task, instanceName string) error {
	holder, err := c.rdb.Get(ctx, TaskClaimKey(c.project, task.ID)).Result()
	if err != nil || holder == "" {
		holder = task.ClaimedBy
	}
	if holder == "" {
		holder = "unknown"
	}

	// Best-effort conflict announcement; the claim result stands regardless.
	_ = c.publishEvent(ctx, &Event{
		Kind:     EventConflict,
		Task:     task,
		Instance: instanceName,
		Detail:   fmt.Sprintf("claim held by %s", holder),
		AtMs:     time.Now().UnixMilli(),
	})

	return fmt.Errorf("task %s held by %s: %w", task.ID, holder, ErrTaskClaimed)
}

// SetTaskStatus moves a task to a new status, enforcing legal transitions.
// Terminal transitions (complete, failed) and a return to pending also drop
// the claim marker so the task can be claimed again if reopened.
func (c *Client) SetTaskStatus(ctx context.Context, taskID string, next Status, note string) (*Task, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}

	task, err := c.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.Status.CanTransition(next) {
		return nil, fmt.Errorf("cannot move task %s from %s to %s: %w", taskID, task.Status, next, ErrBadTransition)
	}

	task.Status = next
	task.BlockedNote = ""
	if next == StatusBlocked {
		task.BlockedNote = note
	}
	if next == StatusComplete || next == StatusFailed || next == StatusPending {
		if err := c.rdb.Del(ctx, TaskClaimKey(c.project, taskID)).Err(); err != nil {
			return nil, fmt.Errorf("failed to drop claim marker: %w", err)
		}
		if next == StatusPending {
			task.ClaimedBy = ""
		}
	}
	task.UpdatedAtMs = time.Now().UnixMilli()

	hash, err := TaskToHash(task)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize task: %w", err)
	}
	if err := c.rdb.HSet(ctx, TaskKey(c.project, taskID), hash).Err(); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	if err := c.publishEvent(ctx, &Event{
		Kind:     EventTaskUpdated,
		Task:     task,
		Instance: task.ClaimedBy,
		Detail:   note,
		AtMs:     time.Now().UnixMilli(),
	}); err != nil {
		return nil, err
	}

	return task, nil
}

// CompleteTask marks a task complete. Shorthand for SetTaskStatus.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (*Task, error) {
	return c.SetTaskStatus(ctx, taskID, StatusComplete, "")
}

// AcquireReservation atomically reserves a shared resource for an instance.
// The reservation JSON is written with SETNX plus a TTL; a losing acquirer
// receives ErrResourceReserved naming the holder, and a conflict event is
// published.
func (c *Client) AcquireReservation(ctx context.Context, r *Reservation) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid reservation: %w", err)
	}

	if r.TTL == 0 {
		r.TTL = DefaultReservationTTL
	}
	r.CreatedAtMs = time.Now().UnixMilli()

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	key := ReservationKey(c.project, r.Resource)
	ok, err := c.rdb.SetNX(ctx, key, payload, r.TTL).Result()
	if err != nil {
		return fmt.Errorf("failed to write reservation: %w", err)
	}

	if !ok {
		holder := "unknown"
		if existing, err := c.getReservation(ctx, r.Resource); err == nil {
			holder = existing.Instance
		}

		_ = c.publishEvent(ctx, &Event{
			Kind:        EventConflict,
			Reservation: r,
			Instance:    r.Instance,
			Detail:      fmt.Sprintf("resource held by %s", holder),
			AtMs:        time.Now().UnixMilli(),
		})

		return fmt.Errorf("resource %q held by %s: %w", r.Resource, holder, ErrResourceReserved)
	}

	return c.publishEvent(ctx, &Event{
		Kind:        EventReservationAcquired,
		Reservation: r,
		Instance:    r.Instance,
		AtMs:        time.Now().UnixMilli(),
	})
}

// ReleaseReservation drops a reservation if (and only if) the caller owns it.
// The ownership check and delete run as one Lua script so a holder can never
// delete a reservation that expired and was re-acquired in between.
// Releasing an absent reservation is a no-op.
func (c *Client) ReleaseReservation(ctx context.Context, resource, instanceName string) error {
	key := ReservationKey(c.project, resource)

	res, err := releaseScript.Run(ctx, c.rdb, []string{key}, instanceName).Int()
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	switch res {
	case -1:
		// Already expired or never existed; nothing to announce.
		return nil
	case 0:
		return fmt.Errorf("resource %q: %w", resource, ErrNotReservationOwner)
	}

	return c.publishEvent(ctx, &Event{
		Kind:        EventReservationReleased,
		Reservation: &Reservation{Resource: resource, Instance: instanceName},
		Instance:    instanceName,
		AtMs:        time.Now().UnixMilli(),
	})
}

// ActiveReservations returns every live reservation in the project.
func (c *Client) ActiveReservations(ctx context.Context) ([]*Reservation, error) {
	keys, err := c.rdb.Keys(ctx, ReservationKeyPattern(c.project)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation keys: %w", err)
	}

	reservations := make([]*Reservation, 0, len(keys))
	for _, key := range keys {
		payload, err := c.rdb.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired between KEYS and GET.
				continue
			}
			return nil, fmt.Errorf("failed to read reservation %s: %w", key, err)
		}

		var r Reservation
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reservation %s: %w", key, err)
		}
		reservations = append(reservations, &r)
	}

	return reservations, nil
}

func (c *Client) getReservation(ctx context.Context, resource string) (*Reservation, error) {
	payload, err := c.rdb.Get(ctx, ReservationKey(c.project, resource)).Result()
	if err != nil {
		return nil, err
	}

	var r Reservation
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation: %w", err)
	}
	return &r, nil
}

// heartbeatValue is the JSON stored under an instance heartbeat key.
type heartbeatValue struct {
	Role string `json:"role"`
	AtMs int64  `json:"at_ms"`
}

// Heartbeat registers an instance as alive. The key expires after ttl so a
// silent instance disappears from the board on its own.
func (c *Client) Heartbeat(ctx context.Context, instanceName, role string, ttl time.Duration) error {
	if instanceName == "" {
		return fmt.Errorf("instance name cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("heartbeat TTL must be positive")
	}

	payload, err := json.Marshal(heartbeatValue{Role: role, AtMs: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	key := HeartbeatKey(c.project, instanceName)
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}

	return c.publishEvent(ctx, &Event{
		Kind:     EventHeartbeat,
		Instance: instanceName,
		Detail:   role,
		AtMs:     time.Now().UnixMilli(),
	})
}

// Instances reports every instance with a live heartbeat key. An instance is
// Online while its last beat is younger than staleAfter, Stale after that, and
// gone entirely once the key expires (the coordinator compares against the
// configured instance list to report Offline).
func (c *Client) Instances(ctx context.Context, staleAfter time.Duration) ([]InstanceInfo, error) {
	keys, err := c.rdb.Keys(ctx, HeartbeatKeyPattern(c.project)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list heartbeat keys: %w", err)
	}

	prefix := fmt.Sprintf("iotstack:%s:instance:", c.project)
	now := time.Now().UnixMilli()

	infos := make([]InstanceInfo, 0, len(keys))
	for _, key := range keys {
		payload, err := c.rdb.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read heartbeat %s: %w", key, err)
		}

		var hb heartbeatValue
		if err := json.Unmarshal([]byte(payload), &hb); err != nil {
			return nil, fmt.Errorf("failed to unmarshal heartbeat %s: %w", key, err)
		}

		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ":heartbeat")
		state := InstanceOnline
		if now-hb.AtMs > staleAfter.Milliseconds() {
			state = InstanceStale
		}

		infos = append(infos, InstanceInfo{
			Name:     name,
			Role:     hb.Role,
			State:    state,
			LastSeen: hb.AtMs,
		})
	}

	return infos, nil
}

// publishEvent marshals and publishes a board event on the project channel.
func (c *Client) publishEvent(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.rdb.Publish(ctx, EventsChannel(c.project), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to board events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full event objects via the Events() channel.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to board events for this project.
// Returns a Subscription that delivers full event objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.project))

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetTask returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
