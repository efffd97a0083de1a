package taskboard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() *Task {
	return NewTask("map fermenter sensors", TaskTypeResearch, PriorityMedium)
}

func TestNewTask(t *testing.T) {
	task := validTask()

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, []string{}, task.Dependencies)
	assert.NotZero(t, task.CreatedAtMs)
	assert.Equal(t, task.CreatedAtMs, task.UpdatedAtMs)
	require.NoError(t, task.Validate())
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{
			name:   "valid task",
			mutate: func(t *Task) {},
		},
		{
			name:    "invalid ID",
			mutate:  func(t *Task) { t.ID = "not-a-uuid" },
			wantErr: "invalid task ID",
		},
		{
			name:    "empty title",
			mutate:  func(t *Task) { t.Title = "" },
			wantErr: "title cannot be empty",
		},
		{
			name:    "unknown type",
			mutate:  func(t *Task) { t.Type = "espionage" },
			wantErr: "unknown task type",
		},
		{
			name:    "unknown priority",
			mutate:  func(t *Task) { t.Priority = "urgent" },
			wantErr: "unknown priority",
		},
		{
			name:    "unknown status",
			mutate:  func(t *Task) { t.Status = "paused" },
			wantErr: "unknown status",
		},
		{
			name:    "bad dependency",
			mutate:  func(t *Task) { t.Dependencies = []string{"nope"} },
			wantErr: "invalid dependency at index 0",
		},
		{
			name: "good dependency",
			mutate: func(t *Task) {
				t.Dependencies = []string{uuid.New().String()}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(task)

			err := task.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusClaimed, true},
		{StatusClaimed, StatusInProgress, true},
		{StatusClaimed, StatusComplete, true},
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusBlocked, true},
		{StatusBlocked, StatusInProgress, true},
		{StatusFailed, StatusPending, true},
		{StatusComplete, StatusPending, false},
		{StatusComplete, StatusClaimed, false},
		{StatusPending, StatusComplete, false},
		{StatusPending, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestReservationValidate(t *testing.T) {
	t.Run("valid reservation", func(t *testing.T) {
		r := &Reservation{Resource: "sheets:CLAUDE_TASKS!A2:K2", Instance: "mac-claude"}
		assert.NoError(t, r.Validate())
	})

	t.Run("empty resource", func(t *testing.T) {
		r := &Reservation{Instance: "mac-claude"}
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resource cannot be empty")
	})

	t.Run("empty instance", func(t *testing.T) {
		r := &Reservation{Resource: "docker-compose.yml"}
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance cannot be empty")
	})

	t.Run("bad task ID", func(t *testing.T) {
		r := &Reservation{Resource: "docker-compose.yml", Instance: "server-claude", TaskID: "xyz"}
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task ID")
	})

	t.Run("task ID optional", func(t *testing.T) {
		r := &Reservation{Resource: "docker-compose.yml", Instance: "server-claude"}
		assert.NoError(t, r.Validate())
	})
}
