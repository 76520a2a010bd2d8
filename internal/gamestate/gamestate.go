// Package gamestate merges game master turns into the detective's view of a case.
//
// Every function is pure: previous state in, next state out. Slices of the input are never mutated so callers can
// keep the previous state around, e.g. for a pending autosave.
package gamestate

import (
	"slices"
	"strings"

	"github.com/myrjola/noir/internal/models"
)

const (
	DefaultLocation  = "Unknown"
	DefaultTime      = "00:00"
	DefaultObjective = "SOLVE THE MURDER"
	DefaultSummary   = "Investigation started."
	// DefaultSceneImageURL is the rainy alley shown before the first scene image arrives.
	DefaultSceneImageURL = "https://image.pollinations.ai/prompt/dark%20rainy%20alleyway%20at%20night%20with%20a%20" +
		"body%20covered%20by%20a%20sheet%20near%20a%20dumpster%20film%20noir%20style%20black%20and%20white" +
		"?width=1024&height=1024&nologo=true"
)

// Turn is one exchange with the game master.
type Turn struct {
	// Input is what the detective typed. It is empty for the case opening.
	Input    string
	Response models.TurnResponse
	// Fallback marks a synthetic response produced when the model could not be reached or understood.
	Fallback bool
	// SceneImageURL is the image reference for Response.VisualPrompt, computed by the caller.
	SceneImageURL string
}

// New returns the state of a case that has not been opened yet.
func New(scenarioID string) models.GameState {
	return models.GameState{
		ScenarioID:       scenarioID,
		Logs:             []models.LogEntry{},
		Evidence:         []string{},
		Suspects:         []models.Suspect{},
		CurrentLocation:  DefaultLocation,
		CurrentTime:      DefaultTime,
		CurrentObjective: DefaultObjective,
		CaseSummary:      DefaultSummary,
		SceneImageURL:    DefaultSceneImageURL,
		Gallery:          []string{},
	}
}

// Apply merges turn into prev.
func Apply(prev models.GameState, turn Turn) models.GameState {
	next := prev
	next.Logs = slices.Clone(prev.Logs)
	if turn.Input != "" {
		next.Logs = append(next.Logs, models.LogEntry{
			Type:      models.SpeakerUser,
			Text:      "> " + turn.Input,
			Timestamp: prev.CurrentTime,
		})
	}

	resp := turn.Response
	timestamp := prev.CurrentTime
	if resp.Time != "" && !turn.Fallback {
		timestamp = resp.Time
	}
	next.Logs = append(next.Logs, models.LogEntry{
		Type:      models.SpeakerSystem,
		Text:      resp.Narrative,
		Timestamp: timestamp,
		Error:     turn.Fallback,
	})

	// A fallback carries no knowledge about the case, only the transcript grows.
	if turn.Fallback {
		return next
	}

	next.CurrentLocation = overwrite(prev.CurrentLocation, resp.Location)
	next.CurrentTime = overwrite(prev.CurrentTime, resp.Time)
	next.CurrentObjective = overwrite(prev.CurrentObjective, resp.CurrentObjective)
	next.CaseSummary = overwrite(prev.CaseSummary, resp.CaseSummary)
	next.Evidence = mergeEvidence(prev.Evidence, resp.Evidence)
	next.Suspects = mergeSuspects(prev.Suspects, resp.Suspects)
	next.GameOver = prev.GameOver || resp.GameOver

	next.Gallery = slices.Clone(prev.Gallery)
	if turn.SceneImageURL != "" {
		next.SceneImageURL = turn.SceneImageURL
		next.Gallery = append([]string{turn.SceneImageURL}, next.Gallery...)
	}
	return next
}

func overwrite(prev, value string) string {
	if value == "" {
		return prev
	}
	return value
}

// mergeEvidence returns the union of prev and found in first-appearance order.
func mergeEvidence(prev, found []string) []string {
	merged := make([]string, 0, len(prev)+len(found))
	seen := make(map[string]struct{}, len(prev)+len(found))
	for _, item := range slices.Concat(prev, found) {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}

// mergeSuspects replaces known suspects by name and appends new ones.
func mergeSuspects(prev, updates []models.Suspect) []models.Suspect {
	merged := make([]models.Suspect, 0, len(prev)+len(updates))
	index := make(map[string]int, len(prev)+len(updates))
	for _, s := range slices.Concat(prev, updates) {
		if i, ok := index[s.Name]; ok {
			merged[i] = s
			continue
		}
		index[s.Name] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

// Normalize re-establishes the invariants of a state that has travelled through a client: unique evidence, unique
// suspect names with known statuses and non-nil collections.
func Normalize(state models.GameState) models.GameState {
	state.Logs = slices.Clone(state.Logs)
	if state.Logs == nil {
		state.Logs = []models.LogEntry{}
	}
	state.Evidence = mergeEvidence(nil, slices.DeleteFunc(slices.Clone(state.Evidence), isBlank))

	suspects := make([]models.Suspect, 0, len(state.Suspects))
	for _, s := range state.Suspects {
		if isBlank(s.Name) {
			continue
		}
		if !s.Status.Valid() {
			s.Status = models.SuspectAlive
		}
		suspects = append(suspects, s)
	}
	state.Suspects = mergeSuspects(nil, suspects)

	state.Gallery = slices.Clone(state.Gallery)
	if state.Gallery == nil {
		state.Gallery = []string{}
	}
	return state
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Transcript renders the log as the history lines sent to the game master. Fallback entries are left out because
// the model never said them.
func Transcript(state models.GameState) []string {
	lines := make([]string, 0, len(state.Logs))
	for _, entry := range state.Logs {
		if entry.Error {
			continue
		}
		lines = append(lines, strings.ToUpper(string(entry.Type))+": "+entry.Text)
	}
	return lines
}
