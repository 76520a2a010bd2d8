package main

import (
	"context"
	"log/slog"

	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/prompt"
	"github.com/myrjola/noir/internal/sceneimage"
	"github.com/myrjola/noir/internal/turn"
)

// play runs one turn against the game master and merges the reply into state. An empty input opens the case.
func (app *application) play(ctx context.Context, state models.GameState, input string) (models.GameState, turn.Result) {
	req := turn.Request{
		History:    gamestate.Transcript(state),
		Input:      input,
		ScenarioID: state.ScenarioID,
	}
	if input == "" {
		req.History = nil
		req.Input = prompt.StartGame
	}
	result := app.turns.Process(ctx, req)

	var imageURL string
	if !result.Fallback {
		var err error
		if imageURL, err = sceneimage.RandomURL(result.Response.VisualPrompt); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "no scene image for turn", errors.SlogError(err))
			imageURL = ""
		}
	}

	next := gamestate.Apply(state, gamestate.Turn{
		Input:         input,
		Response:      result.Response,
		Fallback:      result.Fallback,
		SceneImageURL: imageURL,
	})
	return next, result
}

// persist stores state for the signed in detective. New cases are created right away so that the id is known,
// later states go through the debounced autosave.
func (app *application) persist(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error) {
	if len(userID) == 0 {
		return state, nil
	}
	if state.CaseID == "" {
		saved, err := app.autosave.Flush(ctx, userID, state)
		if err != nil {
			return state, errors.Wrap(err, "create case")
		}
		return saved, nil
	}
	app.autosave.Schedule(userID, state)
	return state, nil
}
