package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsEmptyHistory(t *testing.T) {
	t.Parallel()

	for _, s := range []*Session{{ID: "a"}, {ID: "b", History: []Turn{}}} {
		c := s.Clone()
		require.NotNil(t, c.History)

		raw, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"history":[]`)
	}
}

func TestCloneDoesNotShareHistory(t *testing.T) {
	t.Parallel()

	s := &Session{ID: "a", History: []Turn{{Role: RoleUser, Text: "hi"}}}
	c := s.Clone()
	c.History[0].Text = "changed"
	c.History = append(c.History, Turn{Role: RoleAssistant, Text: "more"})

	assert.Equal(t, "hi", s.History[0].Text)
	assert.Len(t, s.History, 1)
}
