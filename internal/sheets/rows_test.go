package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

func TestTaskToRow(t *testing.T) {
	task := &taskboard.Task{
		ID:           "a1b2c3",
		Title:        "wire glycol temp to UNS",
		Instance:     "mac-claude",
		Type:         taskboard.TaskTypeIntegration,
		Priority:     taskboard.PriorityHigh,
		Status:       taskboard.StatusClaimed,
		Dependencies: []string{"d4e5", "f6a7"},
		ClaimedBy:    "mac-claude",
		CreatedAtMs:  1700000000000,
	}

	row := TaskToRow(task)
	require.Len(t, row, len(Header))

	assert.Equal(t, "a1b2c3", row[0])
	assert.Equal(t, "wire glycol temp to UNS", row[1])
	assert.Equal(t, "integration", row[3])
	assert.Equal(t, "high", row[4])
	assert.Equal(t, "claimed", row[5])
	assert.Equal(t, "d4e5, f6a7", row[6])
	assert.Equal(t, "mac-claude", row[7])
	assert.Equal(t, "2023-11-14 22:13:20", row[9])
	assert.Equal(t, "", row[10]) // never updated
}

func TestRowToTask(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		orig := taskboard.NewTask("check FV-03 sensor drift", taskboard.TaskTypeMonitor, taskboard.PriorityMedium)
		orig.Dependencies = []string{"x1"}
		orig.ClaimedBy = "server-claude"
		orig.Status = taskboard.StatusInProgress

		row := TaskToRow(orig)
		// The Sheets API hands values back as strings.
		strRow := make([]interface{}, len(row))
		for i, v := range row {
			strRow[i] = v.(string)
		}

		got, err := RowToTask(strRow)
		require.NoError(t, err)
		assert.Equal(t, orig.ID, got.ID)
		assert.Equal(t, orig.Title, got.Title)
		assert.Equal(t, orig.Type, got.Type)
		assert.Equal(t, orig.Status, got.Status)
		assert.Equal(t, orig.Dependencies, got.Dependencies)
		assert.Equal(t, orig.ClaimedBy, got.ClaimedBy)
	})

	t.Run("short row rejected", func(t *testing.T) {
		_, err := RowToTask([]interface{}{"id", "title"})
		require.Error(t, err)
	})

	t.Run("missing ID rejected", func(t *testing.T) {
		_, err := RowToTask([]interface{}{"", "title", "", "build", "low", "pending"})
		require.Error(t, err)
	})

	t.Run("row without optional columns", func(t *testing.T) {
		got, err := RowToTask([]interface{}{"abc", "t", "mac-claude", "build", "low", "pending"})
		require.NoError(t, err)
		assert.Empty(t, got.Dependencies)
		assert.Empty(t, got.ClaimedBy)
	})
}

func TestHeaderMatches(t *testing.T) {
	row := make([]interface{}, len(Header))
	for i, h := range Header {
		row[i] = h
	}
	assert.True(t, headerMatches(row))

	row[0] = "ID"
	assert.False(t, headerMatches(row))
	assert.False(t, headerMatches(row[:3]))
}
