package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/repositories"
)

type apiTurnRequest struct {
	// State is the game held by the client. Omitted for the opening turn of a new case.
	State *models.GameState `json:"state"`
	// ScenarioID picks the plot of a new case and is ignored when State is present.
	ScenarioID string `json:"scenarioId"`
	// Input is the detective's action. Empty opens the case and is rejected when State is present.
	Input string `json:"input"`
}

type apiTurnResponse struct {
	Response models.TurnResponse `json:"response"`
	Fallback bool                `json:"fallback"`
	State    models.GameState    `json:"state"`
}

type apiResult struct {
	Success bool              `json:"success"`
	State   *models.GameState `json:"state,omitempty"`
}

// apiTurn plays one turn of a client held game. Nothing is stored, clients save through apiSaveCase.
func (app *application) apiTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req apiTurnRequest
	if err := readJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}

	// A state without input would only replay the opening, new cases omit the state instead.
	if req.State != nil && strings.TrimSpace(req.Input) == "" {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}

	var state models.GameState
	if req.State != nil {
		state = gamestate.Normalize(*req.State)
	} else {
		if _, ok := app.scenarios.Lookup(req.ScenarioID); req.ScenarioID != "" && !ok {
			app.clientError(w, r, http.StatusBadRequest)
			return
		}
		state = gamestate.New(req.ScenarioID)
	}
	if state.GameOver {
		app.writeJSON(w, r, http.StatusConflict, apiResult{Success: false, State: &state})
		return
	}

	release, ok := app.beginTurn(ctx)
	if !ok {
		app.writeJSON(w, r, http.StatusConflict, apiResult{Success: false, State: nil})
		return
	}
	defer release()

	next, result := app.play(ctx, state, req.Input)
	app.writeJSON(w, r, http.StatusOK, apiTurnResponse{
		Response: result.Response,
		Fallback: result.Fallback,
		State:    next,
	})
}

func (app *application) apiListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cases, err := app.cases.List(ctx, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list cases"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, cases)
}

// apiSaveCase creates or updates a case. Anonymous detectives get success false and their state back unchanged.
func (app *application) apiSaveCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var state models.GameState
	if err := readJSON(w, r, &state); err != nil {
		app.clientError(w, r, http.StatusBadRequest)
		return
	}
	state = gamestate.Normalize(state)

	userID := contexthelpers.AuthenticatedUserID(ctx)
	if len(userID) == 0 {
		app.writeJSON(w, r, http.StatusOK, apiResult{Success: false, State: &state})
		return
	}
	saved, err := app.autosave.Flush(ctx, userID, state)
	if err != nil {
		app.apiCaseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, apiResult{Success: true, State: &saved})
}

func (app *application) apiGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := app.cases.Get(ctx, r.PathValue("caseID"), contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		app.apiCaseError(w, r, err)
		return
	}
	state := gamestate.Normalize(c.State)
	app.writeJSON(w, r, http.StatusOK, apiResult{Success: true, State: &state})
}

func (app *application) apiDeleteCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("caseID")
	if err := app.cases.Delete(ctx, caseID, contexthelpers.AuthenticatedUserID(ctx)); err != nil {
		app.apiCaseError(w, r, err)
		return
	}
	if state, ok := app.currentGame(ctx); ok && state.CaseID == caseID {
		app.removeGame(ctx)
	}
	app.writeJSON(w, r, http.StatusOK, apiResult{Success: true, State: nil})
}

func (app *application) apiScenarios(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.scenarios.All())
}

// apiCaseError reports cases that don't exist or belong to someone else as 404 without telling them apart.
func (app *application) apiCaseError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repositories.ErrNotFound) {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "case not found", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusNotFound, apiResult{Success: false, State: nil})
		return
	}
	app.serverError(w, r, err)
}
