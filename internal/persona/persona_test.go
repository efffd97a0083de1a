package persona

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	personas := Builtin()
	require.Len(t, personas, 4)

	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.Name
		assert.NotEmpty(t, p.Role, "persona %s has no role", p.Name)
		assert.NotEmpty(t, p.Briefing, "persona %s has no briefing", p.Name)
	}

	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "mac-claude")
	assert.Contains(t, names, "server-claude")
	assert.Contains(t, names, "discord-claude")
	assert.Contains(t, names, "scanner-claude")
}

func TestLookup(t *testing.T) {
	t.Run("known", func(t *testing.T) {
		p, err := Lookup("scanner-claude")
		require.NoError(t, err)
		assert.Equal(t, "scanner-claude", p.Name)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Lookup("fridge-claude")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown persona")
	})
}

func TestRender(t *testing.T) {
	p, err := Lookup("mac-claude")
	require.NoError(t, err)

	rendered := p.Render("steel-bonnet")
	assert.Contains(t, rendered, "steel-bonnet")
	assert.False(t, strings.Contains(rendered, "{{project}}"))
}
