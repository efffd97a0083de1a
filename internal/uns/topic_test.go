package uns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Brewery", "brewery"},
		{"Cold Side", "cold_side"},
		{"  FV-03 ", "fv-03"},
		{"bad/segment", "badsegment"},
		{"wild+card#", "wildcard"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestRootJoin(t *testing.T) {
	t.Run("full root", func(t *testing.T) {
		root := Root{Site: "Brewery", Area: "Cold Side", Line: "FV-03"}
		assert.Equal(t, "brewery/cold_side/fv-03/temp", root.Join("temp"))
	})

	t.Run("empty segments skipped", func(t *testing.T) {
		root := Root{Site: "brewery"}
		assert.Equal(t, "brewery/coordination/board", root.Join("coordination", "", "board"))
	})
}

func TestWellKnownTopics(t *testing.T) {
	root := Root{Site: "brewery", Area: "cellar"}

	assert.Equal(t,
		"brewery/cellar/coordination/tasks/abc123/status",
		root.TaskStatusTopic("abc123"))
	assert.Equal(t,
		"brewery/cellar/coordination/instances/mac-claude/availability",
		root.AvailabilityTopic("mac-claude"))
	assert.Equal(t,
		"brewery/cellar/coordination/board",
		root.BoardSnapshotTopic())
}
