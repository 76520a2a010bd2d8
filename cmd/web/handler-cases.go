package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/logging"
	"github.com/myrjola/noir/internal/repositories"
)

// caseCreate opens a new investigation, optionally following one of the fixed scenarios.
func (app *application) caseCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := r.PostFormValue("scenario")
	if scenarioID != "" {
		if _, ok := app.scenarios.Lookup(scenarioID); !ok {
			app.clientError(w, r, http.StatusBadRequest)
			return
		}
	}
	ctx = logging.WithAttrs(ctx, slog.String("scenario_id", scenarioID))

	release, ok := app.beginTurn(ctx)
	if !ok {
		app.clientError(w, r, http.StatusConflict)
		return
	}
	defer release()

	state, _ := app.play(ctx, gamestate.New(scenarioID), "")

	var err error
	if state, err = app.persist(ctx, contexthelpers.AuthenticatedUserID(ctx), state); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "failed to create case", errors.SlogError(err))
		app.flash(ctx, "Failed to save case.")
	}
	app.putGame(ctx, state)
	redirect(w, r, "/game")
}

// caseResume loads a saved case into the session.
func (app *application) caseResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	ctx = logging.WithAttrs(ctx, slog.String("case_id", caseID))
	c, err := app.cases.Get(ctx, caseID, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			app.flash(ctx, "Case not found.")
			redirect(w, r, "/")
			return
		}
		app.serverError(w, r, errors.Wrap(err, "get case", slog.String("case_id", caseID)))
		return
	}
	app.putGame(ctx, gamestate.Normalize(c.State))
	redirect(w, r, "/game")
}

func (app *application) caseDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	ctx = logging.WithAttrs(ctx, slog.String("case_id", caseID))
	if err := app.cases.Delete(ctx, caseID, contexthelpers.AuthenticatedUserID(ctx)); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			app.logger.LogAttrs(ctx, slog.LevelError, "failed to delete case", errors.SlogError(err))
		}
		app.flash(ctx, "Failed to delete case.")
		redirect(w, r, "/")
		return
	}
	if state, ok := app.currentGame(ctx); ok && state.CaseID == caseID {
		app.removeGame(ctx)
	}
	app.flash(ctx, "Case deleted.")
	redirect(w, r, "/")
}
