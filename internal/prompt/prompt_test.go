package prompt_test

import (
	"strings"
	"testing"

	"github.com/myrjola/noir/internal/prompt"
	"github.com/stretchr/testify/require"
)

func TestSystem(t *testing.T) {
	base := prompt.System("")
	require.Contains(t, base, `"visual_prompt"`)
	require.Contains(t, base, "game_over")
	require.Equal(t, base, prompt.System("  \n"))

	withScenario := prompt.System("STORY MODE: test")
	require.True(t, strings.HasPrefix(withScenario, base))
	require.True(t, strings.HasSuffix(withScenario, "\n\nSTORY MODE: test"))
}

func TestMessage(t *testing.T) {
	got := prompt.Message([]string{"SYSTEM: Rain.", "USER: > look"}, `ask about the "vial"`)
	require.Equal(t, "Game History:\nSYSTEM: Rain.\nUSER: > look\n\nUser Input: \"ask about the \\\"vial\\\"\"\n\nRespond in JSON.", got)

	require.Equal(t, "Game History:\n\nUser Input: \"START_GAME\"\n\nRespond in JSON.", prompt.Message(nil, prompt.StartGame))
}
