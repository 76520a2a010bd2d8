package gamestate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/models"
	"github.com/stretchr/testify/require"
)

func opened() models.GameState {
	return gamestate.Apply(gamestate.New("story_docks"), gamestate.Turn{
		Response: models.TurnResponse{
			Narrative:   "Pier 13. A body floats between the hulls.",
			Location:    "Pier 13",
			Time:        "23:45",
			Evidence:    []string{"Bullet casing"},
			Suspects:    []models.Suspect{{Name: "Vinny", Status: models.SuspectAlive, Notes: "Cleaning his gun."}},
			CaseSummary: "Slippery Jack was shot in the back.",
		},
		SceneImageURL: "https://example.com/pier.png",
	})
}

func TestApply_Opening(t *testing.T) {
	got := opened()
	want := models.GameState{
		ScenarioID: "story_docks",
		Logs: []models.LogEntry{
			{Type: models.SpeakerSystem, Text: "Pier 13. A body floats between the hulls.", Timestamp: "23:45"},
		},
		Evidence:         []string{"Bullet casing"},
		Suspects:         []models.Suspect{{Name: "Vinny", Status: models.SuspectAlive, Notes: "Cleaning his gun."}},
		CurrentLocation:  "Pier 13",
		CurrentTime:      "23:45",
		CurrentObjective: gamestate.DefaultObjective,
		CaseSummary:      "Slippery Jack was shot in the back.",
		SceneImageURL:    "https://example.com/pier.png",
		Gallery:          []string{"https://example.com/pier.png"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Turn(t *testing.T) {
	prev := opened()
	next := gamestate.Apply(prev, gamestate.Turn{
		Input: "examine the casing",
		Response: models.TurnResponse{
			Narrative: "It's a .38. Vinny carries a .38.",
			Evidence:  []string{"Bullet casing", "Gun oil"},
			Suspects: []models.Suspect{
				{Name: "Vinny", Status: models.SuspectArrested, Notes: "Gun matches."},
				{Name: "Madame Rouge", Status: models.SuspectAlive, Notes: "Smoking."},
			},
			GameOver: true,
		},
		SceneImageURL: "https://example.com/casing.png",
	})

	require.Equal(t, []models.LogEntry{
		{Type: models.SpeakerSystem, Text: "Pier 13. A body floats between the hulls.", Timestamp: "23:45"},
		{Type: models.SpeakerUser, Text: "> examine the casing", Timestamp: "23:45"},
		{Type: models.SpeakerSystem, Text: "It's a .38. Vinny carries a .38.", Timestamp: "23:45"},
	}, next.Logs)
	require.Equal(t, []string{"Bullet casing", "Gun oil"}, next.Evidence)
	require.Equal(t, []models.Suspect{
		{Name: "Vinny", Status: models.SuspectArrested, Notes: "Gun matches."},
		{Name: "Madame Rouge", Status: models.SuspectAlive, Notes: "Smoking."},
	}, next.Suspects)
	// Empty scalars keep their previous value.
	require.Equal(t, "Pier 13", next.CurrentLocation)
	require.Equal(t, "Slippery Jack was shot in the back.", next.CaseSummary)
	require.Equal(t, []string{"https://example.com/casing.png", "https://example.com/pier.png"}, next.Gallery)
	require.Equal(t, "https://example.com/casing.png", next.SceneImageURL)
	require.True(t, next.GameOver)

	// The previous state is untouched.
	require.Len(t, prev.Logs, 1)
	require.Equal(t, []string{"Bullet casing"}, prev.Evidence)
	require.Equal(t, models.SuspectAlive, prev.Suspects[0].Status)
	require.Len(t, prev.Gallery, 1)
}

func TestApply_GameOverIsMonotonic(t *testing.T) {
	state := opened()
	for _, gameOver := range []bool{true, false, false} {
		state = gamestate.Apply(state, gamestate.Turn{
			Input:    "look around",
			Response: models.TurnResponse{Narrative: "Rain.", GameOver: gameOver},
		})
		require.True(t, state.GameOver || !gameOver)
	}
	require.True(t, state.GameOver)
}

func TestApply_EvidenceIsIdempotent(t *testing.T) {
	turn := gamestate.Turn{
		Input:    "search",
		Response: models.TurnResponse{Narrative: "Found it.", Evidence: []string{"Vial", "Vial", "Scotch glass"}},
	}
	once := gamestate.Apply(opened(), turn)
	twice := gamestate.Apply(once, turn)
	require.Equal(t, []string{"Bullet casing", "Vial", "Scotch glass"}, once.Evidence)
	require.Equal(t, once.Evidence, twice.Evidence)
}

func TestApply_Fallback(t *testing.T) {
	prev := opened()
	next := gamestate.Apply(prev, gamestate.Turn{
		Input: "accuse Vinny",
		Response: models.TurnResponse{
			Narrative:    "The line crackles. (System Error: connection lost)",
			Location:     "Nowhere",
			VisualPrompt: "static",
		},
		Fallback:      true,
		SceneImageURL: "https://example.com/static.png",
	})

	last := next.Logs[len(next.Logs)-1]
	require.True(t, last.Error)
	require.Equal(t, models.SpeakerSystem, last.Type)
	require.Len(t, next.Logs, 3)

	// Only the transcript changes.
	next.Logs = prev.Logs
	if diff := cmp.Diff(prev, next); diff != "" {
		t.Errorf("fallback changed state (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	got := gamestate.Normalize(models.GameState{
		Evidence: []string{"Vial", " ", "Vial", "Note"},
		Suspects: []models.Suspect{
			{Name: "Julian", Status: "sweating"},
			{Name: ""},
			{Name: "Julian", Status: models.SuspectArrested, Notes: "Caught."},
			{Name: "Eleanor", Status: models.SuspectDead},
		},
	})
	require.Equal(t, []string{"Vial", "Note"}, got.Evidence)
	require.Equal(t, []models.Suspect{
		{Name: "Julian", Status: models.SuspectArrested, Notes: "Caught."},
		{Name: "Eleanor", Status: models.SuspectDead},
	}, got.Suspects)
	require.NotNil(t, got.Logs)
	require.NotNil(t, got.Gallery)
}

func TestTranscript(t *testing.T) {
	state := opened()
	state = gamestate.Apply(state, gamestate.Turn{
		Input:    "call a cab",
		Response: models.TurnResponse{Narrative: "No signal."},
		Fallback: true,
	})
	require.Equal(t, []string{
		"SYSTEM: Pier 13. A body floats between the hulls.",
		"USER: > call a cab",
	}, gamestate.Transcript(state))
}
