package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/logging"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/repositories"
	"github.com/myrjola/noir/internal/sceneimage"
)

type gameTemplateData struct {
	BaseTemplateData

	Game             models.GameState
	PlaceholderImage string
}

func (app *application) newGameTemplateData(r *http.Request, state models.GameState) gameTemplateData {
	return gameTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Game:             state,
		PlaceholderImage: sceneimage.PlaceholderPath,
	}
}

func (app *application) game(w http.ResponseWriter, r *http.Request) {
	state, ok := app.currentGame(r.Context())
	if !ok {
		redirect(w, r, "/")
		return
	}
	app.render(w, r, http.StatusOK, "game", app.newGameTemplateData(r, state))
}

// respondGame re-renders the board for htmx requests and redirects plain form posts back to the game page.
func (app *application) respondGame(w http.ResponseWriter, r *http.Request, state models.GameState) {
	if app.htmx.NewHandler(w, r).Request().HxRequest {
		app.renderTemplate(w, r, http.StatusOK, "game", "game-board", app.newGameTemplateData(r, state))
		return
	}
	redirect(w, r, "/game")
}

func (app *application) gameTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, ok := app.currentGame(ctx)
	if !ok {
		redirect(w, r, "/")
		return
	}
	input := strings.TrimSpace(r.PostFormValue("input"))
	if input == "" || state.GameOver {
		app.respondGame(w, r, state)
		return
	}

	if state.CaseID != "" {
		ctx = logging.WithAttrs(ctx, slog.String("case_id", state.CaseID))
	}
	release, ok := app.beginTurn(ctx)
	if !ok {
		app.clientError(w, r, http.StatusConflict)
		return
	}
	defer release()

	next, _ := app.play(ctx, state, input)

	var err error
	if next, err = app.persist(ctx, contexthelpers.AuthenticatedUserID(ctx), next); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "failed to save case", errors.SlogError(err))
		app.flash(ctx, "Failed to save case.")
	}
	app.putGame(ctx, next)
	app.respondGame(w, r, next)
}

type dossierTemplateData struct {
	gameTemplateData

	// Selected is the gallery photo shown enlarged, empty when none is selected.
	Selected      string
	SelectedIndex int
}

// dossier shows the case file: summary, evidence, suspects and the photo gallery.
func (app *application) dossier(w http.ResponseWriter, r *http.Request) {
	state, ok := app.currentGame(r.Context())
	if !ok {
		redirect(w, r, "/")
		return
	}
	data := dossierTemplateData{
		gameTemplateData: app.newGameTemplateData(r, state),
		Selected:         "",
		SelectedIndex:    -1,
	}
	if raw := r.URL.Query().Get("photo"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 || i >= len(state.Gallery) {
			app.notFound(w, r)
			return
		}
		data.Selected = state.Gallery[i]
		data.SelectedIndex = i
	}
	app.render(w, r, http.StatusOK, "dossier", data)
}

// gameSave writes the case immediately and returns to the dashboard.
func (app *application) gameSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, ok := app.currentGame(ctx)
	if !ok {
		redirect(w, r, "/")
		return
	}
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if len(userID) == 0 {
		app.flash(ctx, "Sign in to keep your case files.")
		redirect(w, r, "/game")
		return
	}
	if _, err := app.autosave.Flush(ctx, userID, state); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			app.logger.LogAttrs(ctx, slog.LevelError, "failed to save case", errors.SlogError(err))
		}
		app.flash(ctx, "Failed to save case.")
		redirect(w, r, "/game")
		return
	}
	app.removeGame(ctx)
	app.flash(ctx, "Case saved.")
	redirect(w, r, "/")
}

// gameReset abandons the investigation in progress. Saved progress stays in the case files.
func (app *application) gameReset(w http.ResponseWriter, r *http.Request) {
	app.removeGame(r.Context())
	redirect(w, r, "/")
}
