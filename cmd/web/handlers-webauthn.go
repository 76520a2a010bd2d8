package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/myrjola/noir/internal/errors"
)

// beginCeremony serves the options of a passkey ceremony as JSON.
func (app *application) beginCeremony(begin func(ctx context.Context) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := begin(r.Context())
		if err != nil {
			app.serverError(w, r, errors.Wrap(err, "begin passkey ceremony"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	}
}

// finishCeremony verifies the authenticator response. A rejected passkey is the client's problem so it's logged as
// a warning and answered with 401.
func (app *application) finishCeremony(finish func(r *http.Request) error, welcome string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := finish(r); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "passkey ceremony failed",
				slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
			app.writeJSON(w, r, http.StatusUnauthorized, apiResult{Success: false, State: nil})
			return
		}
		app.flash(ctx, welcome)
		app.writeJSON(w, r, http.StatusOK, apiResult{Success: true, State: nil})
	}
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := app.webAuthnHandler.Logout(ctx); err != nil {
		app.serverError(w, r, errors.Wrap(err, "logout"))
		return
	}
	// The case in progress belongs to the detective who just left.
	app.removeGame(ctx)
	redirect(w, r, "/")
}
