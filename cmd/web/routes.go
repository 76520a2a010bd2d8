package main

import (
	"net/http"

	"github.com/donseba/go-htmx/middleware"
	"github.com/justinas/alice"
	"github.com/myrjola/noir/ui"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", cacheForeverHeaders(http.FileServerFS(ui.Files)))

	session := alice.New(app.sessionManager.LoadAndSave, app.webAuthnHandler.AuthenticateMiddleware, noSurf,
		commonContext, middleware.MiddleWare)

	mux.Handle("GET /{$}", session.ThenFunc(app.home))
	mux.Handle("POST /cases", session.ThenFunc(app.caseCreate))
	mux.Handle("GET /cases/{caseID}", session.ThenFunc(app.caseResume))
	mux.Handle("POST /cases/{caseID}/delete", session.ThenFunc(app.caseDelete))

	mux.Handle("GET /game", session.ThenFunc(app.game))
	mux.Handle("POST /game/turn", session.ThenFunc(app.gameTurn))
	mux.Handle("GET /game/dossier", session.ThenFunc(app.dossier))
	mux.Handle("POST /game/save", session.ThenFunc(app.gameSave))
	mux.Handle("POST /game/reset", session.ThenFunc(app.gameReset))

	mux.Handle("POST /api/turn", session.ThenFunc(app.apiTurn))
	mux.Handle("GET /api/cases", session.ThenFunc(app.apiListCases))
	mux.Handle("POST /api/cases", session.ThenFunc(app.apiSaveCase))
	mux.Handle("GET /api/cases/{caseID}", session.ThenFunc(app.apiGetCase))
	mux.Handle("DELETE /api/cases/{caseID}", session.ThenFunc(app.apiDeleteCase))
	mux.HandleFunc("GET /api/scenarios", app.apiScenarios)
	mux.HandleFunc("GET /api/healthy", app.healthy)

	passkeys := app.webAuthnHandler
	mux.Handle("POST /api/registration/start", session.Then(app.beginCeremony(passkeys.BeginRegistration)))
	mux.Handle("POST /api/registration/finish", session.Then(app.finishCeremony(passkeys.FinishRegistration,
		"Passkey registered. Welcome to the precinct, detective.")))
	mux.Handle("POST /api/login/start", session.Then(app.beginCeremony(passkeys.BeginLogin)))
	mux.Handle("POST /api/login/finish", session.Then(app.finishCeremony(passkeys.FinishLogin,
		"Welcome back, detective.")))
	mux.Handle("POST /api/logout", session.ThenFunc(app.logout))

	return app.recoverPanic(app.logRequest(app.secureHeaders(mux)))
}
