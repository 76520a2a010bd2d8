package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/noir/internal/errors"
)

type healthResponse struct {
	Status    string `json:"status"`
	Scenarios int    `json:"scenarios"`
}

// healthy reports whether the database answers. Load balancers and the smoke test poll it.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := app.db.ReadOnly.PingContext(ctx); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "health check failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	app.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Scenarios: len(app.scenarios.All())})
}
