package taskboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by project name so that
// multiple projects can safely coexist on a single Redis server.
//
// Key pattern: iotstack:{project}:{entity}:{id}
// Channel pattern: iotstack:{project}:events

// TaskKey returns the Redis key for a task hash.
// Pattern: iotstack:{project}:task:{task_id}
func TaskKey(project, taskID string) string {
	return fmt.Sprintf("iotstack:%s:task:%s", project, taskID)
}

// TaskKeyPattern returns the glob pattern matching every task in a project.
func TaskKeyPattern(project string) string {
	return fmt.Sprintf("iotstack:%s:task:*", project)
}

// TaskClaimKey returns the Redis key holding a task's claim marker.
// The claim is a plain string value (the claiming instance) written with SETNX
// so exactly one instance wins.
// Pattern: iotstack:{project}:task:{task_id}:claim
func TaskClaimKey(project, taskID string) string {
	return fmt.Sprintf("iotstack:%s:task:%s:claim", project, taskID)
}

// ReservationKey returns the Redis key for a resource reservation.
// The value is the reservation JSON, written with SETNX and a TTL.
// Pattern: iotstack:{project}:reservation:{resource}
func ReservationKey(project, resource string) string {
	return fmt.Sprintf("iotstack:%s:reservation:%s", project, resource)
}

// ReservationKeyPattern returns the glob pattern matching every reservation.
func ReservationKeyPattern(project string) string {
	return fmt.Sprintf("iotstack:%s:reservation:*", project)
}

// HeartbeatKey returns the Redis key for an instance heartbeat.
// The value is the instance role; the key carries a TTL so liveness can be
// derived from its remaining lifetime.
// Pattern: iotstack:{project}:instance:{name}:heartbeat
func HeartbeatKey(project, instanceName string) string {
	return fmt.Sprintf("iotstack:%s:instance:%s:heartbeat", project, instanceName)
}

// HeartbeatKeyPattern returns the glob pattern matching every heartbeat.
func HeartbeatKeyPattern(project string) string {
	return fmt.Sprintf("iotstack:%s:instance:*:heartbeat", project)
}

// EventsChannel returns the Pub/Sub channel name for board events.
// Pattern: iotstack:{project}:events
func EventsChannel(project string) string {
	return fmt.Sprintf("iotstack:%s:events", project)
}
