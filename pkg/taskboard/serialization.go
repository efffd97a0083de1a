package taskboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Array fields are
// JSON-encoded into single hash fields. This keeps individual fields queryable
// while allowing structured values where needed.

// TaskToHash converts a Task struct to a Redis hash format.
// The dependencies array is JSON-encoded.
func TaskToHash(t *Task) (map[string]interface{}, error) {
	depsJSON, err := json.Marshal(t.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dependencies: %w", err)
	}

	hash := map[string]interface{}{
		"id":            t.ID,
		"title":         t.Title,
		"description":   t.Description,
		"instance":      t.Instance,
		"type":          string(t.Type),
		"priority":      string(t.Priority),
		"status":        string(t.Status),
		"dependencies":  string(depsJSON),
		"claimed_by":    t.ClaimedBy,
		"blocked_note":  t.BlockedNote,
		"created_at_ms": t.CreatedAtMs,
		"updated_at_ms": t.UpdatedAtMs,
	}

	return hash, nil
}

// HashToTask converts a Redis hash to a Task struct.
// JSON fields are decoded back to Go types.
func HashToTask(hash map[string]string) (*Task, error) {
	var dependencies []string
	if depsJSON := hash["dependencies"]; depsJSON != "" {
		if err := json.Unmarshal([]byte(depsJSON), &dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
	}

	// Ensure we have an empty slice instead of nil for consistency
	if dependencies == nil {
		dependencies = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	task := &Task{
		ID:           hash["id"],
		Title:        hash["title"],
		Description:  hash["description"],
		Instance:     hash["instance"],
		Type:         TaskType(hash["type"]),
		Priority:     Priority(hash["priority"]),
		Status:       Status(hash["status"]),
		Dependencies: dependencies,
		ClaimedBy:    hash["claimed_by"],
		BlockedNote:  hash["blocked_note"],
		CreatedAtMs:  createdAtMs,
		UpdatedAtMs:  updatedAtMs,
	}

	return task, nil
}
