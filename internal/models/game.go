package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/myrjola/noir/internal/errors"
)

// Speaker tells who authored a narrative log entry.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// LogEntry is one line in the case transcript shown to the detective.
type LogEntry struct {
	Type      Speaker `json:"type"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	// Error marks a synthetic fallback narrative that was not authored by the model.
	Error bool `json:"error,omitempty"`
}

type SuspectStatus string

const (
	SuspectAlive    SuspectStatus = "alive"
	SuspectDead     SuspectStatus = "dead"
	SuspectArrested SuspectStatus = "arrested"
)

// Valid reports whether s is one of the known suspect statuses.
func (s SuspectStatus) Valid() bool {
	switch s {
	case SuspectAlive, SuspectDead, SuspectArrested:
		return true
	default:
		return false
	}
}

// Suspect is a person of interest. Names are unique within a GameState.
type Suspect struct {
	Name   string        `json:"name"`
	Status SuspectStatus `json:"status"`
	Notes  string        `json:"notes"`
}

// GameState is everything the detective sees of an investigation. It is persisted as a JSON blob.
type GameState struct {
	CaseID           string     `json:"caseId,omitempty"`
	Title            string     `json:"title,omitempty"`
	ScenarioID       string     `json:"scenarioId,omitempty"`
	Logs             []LogEntry `json:"logs"`
	Evidence         []string   `json:"evidence"`
	Suspects         []Suspect  `json:"suspects"`
	CurrentLocation  string     `json:"currentLocation"`
	CurrentTime      string     `json:"currentTime"`
	CurrentObjective string     `json:"currentObjective"`
	CaseSummary      string     `json:"caseSummary"`
	SceneImageURL    string     `json:"sceneImageUrl"`
	Gallery          []string   `json:"gallery"`
	GameOver         bool       `json:"gameOver"`
}

// Value implements [driver.Valuer] so that the state can be stored in a TEXT column.
func (s GameState) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "JSON encode game state")
	}
	return string(b), nil
}

// Scan implements [sql.Scanner] for reading the JSON blob back.
func (s *GameState) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported game state column type")
	}
	if err := json.Unmarshal(data, s); err != nil {
		return errors.Wrap(err, "JSON decode game state")
	}
	return nil
}

// TurnResponse is the validated reply of the game master model for a single turn.
type TurnResponse struct {
	Narrative        string    `json:"narrative"`
	VisualPrompt     string    `json:"visual_prompt"`
	Location         string    `json:"location"`
	Time             string    `json:"time"`
	Evidence         []string  `json:"evidence"`
	Suspects         []Suspect `json:"suspects"`
	CurrentObjective string    `json:"current_objective"`
	CaseSummary      string    `json:"case_summary"`
	GameOver         bool      `json:"game_over"`
}
