package taskboard

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHashRoundTrip(t *testing.T) {
	task := validTask()
	task.Description = "walk the Modbus map for FV-03"
	task.Instance = "mac-claude"
	task.ClaimedBy = "mac-claude"
	task.Status = StatusClaimed
	task.Dependencies = []string{"0d2394a5-bf56-4a63-9b0c-9e32b8f5ab11"}

	hash, err := TaskToHash(task)
	require.NoError(t, err)

	// HSet sends strings over the wire; mimic that here.
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			stringHash[k] = val
		case int64:
			stringHash[k] = strconv.FormatInt(val, 10)
		}
	}

	got, err := HashToTask(stringHash)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestHashToTaskEmptyDependencies(t *testing.T) {
	t.Run("missing field becomes empty slice", func(t *testing.T) {
		got, err := HashToTask(map[string]string{
			"id":     "0d2394a5-bf56-4a63-9b0c-9e32b8f5ab11",
			"title":  "x",
			"status": "pending",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{}, got.Dependencies)
	})

	t.Run("encoded empty array stays empty slice", func(t *testing.T) {
		got, err := HashToTask(map[string]string{
			"id":           "0d2394a5-bf56-4a63-9b0c-9e32b8f5ab11",
			"title":        "x",
			"status":       "pending",
			"dependencies": "[]",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{}, got.Dependencies)
	})

	t.Run("malformed dependencies rejected", func(t *testing.T) {
		_, err := HashToTask(map[string]string{
			"id":           "0d2394a5-bf56-4a63-9b0c-9e32b8f5ab11",
			"title":        "x",
			"status":       "pending",
			"dependencies": "{broken",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dependencies")
	})
}
