package main

import (
	"net/http"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/scenarios"
)

type homeTemplateData struct {
	BaseTemplateData

	Cases     []models.CaseSummary
	Scenarios []scenarios.Scenario
	// InProgress is the unsaved or resumed game of this session.
	InProgress *models.GameState
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cases, err := app.cases.List(ctx, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list cases"))
		return
	}

	data := homeTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Cases:            cases,
		Scenarios:        app.scenarios.All(),
		InProgress:       nil,
	}
	if state, ok := app.currentGame(ctx); ok {
		data.InProgress = &state
	}

	app.render(w, r, http.StatusOK, "home", data)
}
