package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendKeepsOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append(AssistantTurn("greeting"))
	tr.Append(UserTurn("Hello"))
	tr.Append(AssistantTurn("Test reply"))

	turns := tr.All()
	require.Len(t, turns, 3)
	assert.Equal(t, []Turn{
		{Role: RoleAssistant, Content: "greeting"},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Test reply"},
	}, turns)
	assert.Equal(t, 3, tr.Len())
}

func TestTranscript_AllReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(UserTurn("Hello"))

	turns := tr.All()
	turns[0].Content = "changed"

	assert.Equal(t, "Hello", tr.All()[0].Content, "callers must not be able to mutate stored turns")
}

func TestTranscript_ObserversSeeEveryAppend(t *testing.T) {
	tr := NewTranscript()
	var seen []int
	var lens []int
	tr.Subscribe(func(turn Turn, index int) {
		seen = append(seen, index)
		// observers run outside the lock and may read the transcript
		lens = append(lens, tr.Len())
	})

	tr.Append(UserTurn("a"))
	tr.Append(AssistantTurn("b"))

	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, []int{1, 2}, lens)
}

func TestTranscript_Unsubscribe(t *testing.T) {
	tr := NewTranscript()
	calls := 0
	cancel := tr.Subscribe(func(Turn, int) { calls++ })

	tr.Append(UserTurn("a"))
	cancel()
	tr.Append(UserTurn("b"))

	assert.Equal(t, 1, calls)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
}

func TestErrorTurn_IsFailedAssistant(t *testing.T) {
	turn := ErrorTurn("oops")
	assert.Equal(t, RoleAssistant, turn.Role)
	assert.True(t, turn.Failed)
}
