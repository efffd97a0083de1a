// Package sheets mirrors the task board into a Google Sheet so humans can
// watch (and hand-edit priorities on) the board without touching Redis.
package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// Header is the column layout of the task tab. Column order is part of the
// contract with the humans reading the sheet; append, never reorder.
var Header = []string{
	"Task ID", "Title", "Instance", "Type", "Priority", "Status",
	"Dependencies", "Claimed By", "Notes", "Created", "Updated",
}

const timeLayout = "2006-01-02 15:04:05"

// TaskToRow flattens a task into one sheet row matching Header.
func TaskToRow(t *taskboard.Task) []interface{} {
	return []interface{}{
		t.ID,
		t.Title,
		t.Instance,
		string(t.Type),
		string(t.Priority),
		string(t.Status),
		strings.Join(t.Dependencies, ", "),
		t.ClaimedBy,
		t.BlockedNote,
		formatMillis(t.CreatedAtMs),
		formatMillis(t.UpdatedAtMs),
	}
}

// RowToTask rebuilds a task from a sheet row. Only the columns the board owns
// are read back; timestamps are display-only and left at zero.
func RowToTask(row []interface{}) (*taskboard.Task, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("row has %d columns, need at least 6", len(row))
	}

	t := &taskboard.Task{
		ID:       cell(row, 0),
		Title:    cell(row, 1),
		Instance: cell(row, 2),
		Type:     taskboard.TaskType(cell(row, 3)),
		Priority: taskboard.Priority(cell(row, 4)),
		Status:   taskboard.Status(cell(row, 5)),
	}
	if t.ID == "" {
		return nil, fmt.Errorf("row has no task ID")
	}

	if deps := cell(row, 6); deps != "" {
		for _, dep := range strings.Split(deps, ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				t.Dependencies = append(t.Dependencies, dep)
			}
		}
	}
	t.ClaimedBy = cell(row, 7)
	t.BlockedNote = cell(row, 8)

	return t, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return strings.TrimSpace(s)
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}
