package main

import (
	"context"
	"encoding/gob"

	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/models"
)

type sessionKey string

const (
	// gameSessionKey holds the investigation in progress.
	gameSessionKey  = sessionKey("game")
	flashSessionKey = sessionKey("flash")
)

func init() {
	gob.Register(models.GameState{})
}

func (app *application) currentGame(ctx context.Context) (models.GameState, bool) {
	state, ok := app.sessionManager.Get(ctx, string(gameSessionKey)).(models.GameState)
	if !ok {
		return models.GameState{}, false
	}
	// gob turns empty slices into nil.
	return gamestate.Normalize(state), true
}

func (app *application) putGame(ctx context.Context, state models.GameState) {
	app.sessionManager.Put(ctx, string(gameSessionKey), state)
}

func (app *application) removeGame(ctx context.Context) {
	app.sessionManager.Remove(ctx, string(gameSessionKey))
}

func (app *application) flash(ctx context.Context, msg string) {
	app.sessionManager.Put(ctx, string(flashSessionKey), msg)
}

func (app *application) popFlash(ctx context.Context) string {
	return app.sessionManager.PopString(ctx, string(flashSessionKey))
}
