package webauthnhandler

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/sqlite"
)

func init() {
	// The ceremony state travels through the session store which encodes values with gob.
	gob.Register(webauthn.SessionData{})
}

type WebAuthnHandler struct {
	logger         *slog.Logger
	webAuthn       *webauthn.WebAuthn
	sessionManager *scs.SessionManager
	db             *sqlite.Database
}

func New(
	fqdn string,
	rpOrigins []string,
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	db *sqlite.Database,
) (*WebAuthnHandler, error) {
	var err error

	var webauthnConfig = &webauthn.Config{ //nolint:exhaustruct // defaults are fine
		RPDisplayName: "Noir",
		RPID:          fqdn,
		RPOrigins:     rpOrigins,
	}

	var webAuthn *webauthn.WebAuthn
	if webAuthn, err = webauthn.New(webauthnConfig); err != nil {
		return nil, errors.Wrap(err, "new webauthn")
	}

	return &WebAuthnHandler{
		logger:         logger,
		webAuthn:       webAuthn,
		sessionManager: sessionManager,
		db:             db,
	}, nil
}

// BeginRegistration creates an anonymous detective and returns the credential creation options as JSON.
func (h *WebAuthnHandler) BeginRegistration(ctx context.Context) ([]byte, error) {
	var (
		user *detective
		err  error
	)
	if user, err = newDetective(time.Now()); err != nil {
		return nil, errors.Wrap(err, "new detective")
	}

	// Passkeys have to be discoverable because login doesn't ask for a username.
	authSelect := protocol.AuthenticatorSelection{ //nolint:exhaustruct // platform and cross-platform both work
		RequireResidentKey: protocol.ResidentKeyRequired(),
		ResidentKey:        protocol.ResidentKeyRequirementRequired,
		UserVerification:   protocol.VerificationDiscouraged,
	}

	opts, session, err := h.webAuthn.BeginRegistration(user, webauthn.WithAuthenticatorSelection(authSelect))
	if err != nil {
		return nil, errors.Wrap(err, "begin registration")
	}

	if err = h.saveDetective(ctx, user); err != nil {
		return nil, errors.Wrap(err, "save detective")
	}
	h.sessionManager.Put(ctx, ceremonySessionKey, *session)

	var out []byte
	if out, err = json.Marshal(opts); err != nil {
		return nil, errors.Wrap(err, "JSON encode")
	}
	return out, nil
}

func (h *WebAuthnHandler) popWebAuthnSession(ctx context.Context) (webauthn.SessionData, error) {
	var (
		session webauthn.SessionData
		ok      bool
		err     error
	)
	// A ceremony can be finished only once.
	if session, ok = h.sessionManager.Pop(ctx, ceremonySessionKey).(webauthn.SessionData); !ok {
		err = errors.New("could not parse webauthn.SessionData")
	}
	return session, err
}

// FinishRegistration stores the new passkey and logs the detective in.
func (h *WebAuthnHandler) FinishRegistration(r *http.Request) error {
	var (
		err     error
		session webauthn.SessionData
		ctx     = r.Context()
	)

	if session, err = h.popWebAuthnSession(ctx); err != nil {
		return errors.Wrap(err, "pop webauthn session")
	}

	var user *detective
	if user, err = h.loadDetective(ctx, session.UserID); err != nil {
		return errors.Wrap(err, "load detective")
	}

	var credential *webauthn.Credential
	if credential, err = h.webAuthn.FinishRegistration(user, session, r); err != nil {
		return errors.Wrap(err, "finish webauthn registration")
	}

	if err = h.saveCredential(ctx, user.WebAuthnID(), credential); err != nil {
		return errors.Wrap(err, "save passkey")
	}

	return h.logIn(ctx, user.WebAuthnID())
}

// BeginLogin returns the discoverable credential request options as JSON.
func (h *WebAuthnHandler) BeginLogin(ctx context.Context) ([]byte, error) {
	options, session, err := h.webAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, errors.Wrap(err, "begin discoverable webauthn login")
	}

	h.sessionManager.Put(ctx, ceremonySessionKey, *session)

	var out []byte
	if out, err = json.Marshal(options); err != nil {
		return nil, errors.Wrap(err, "JSON encode webauthn options")
	}
	return out, nil
}

func (h *WebAuthnHandler) findUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		d, err := h.loadDetective(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// FinishLogin validates the passkey assertion and logs the owner of the credential in.
func (h *WebAuthnHandler) FinishLogin(r *http.Request) error {
	var (
		session webauthn.SessionData
		err     error
		ctx     = r.Context()
	)
	if session, err = h.popWebAuthnSession(ctx); err != nil {
		return errors.Wrap(err, "pop webauthn session")
	}

	var parsedResponse *protocol.ParsedCredentialAssertionData
	if parsedResponse, err = protocol.ParseCredentialRequestResponse(r); err != nil {
		return errors.Wrap(err, "parse credential request response")
	}
	var credential *webauthn.Credential
	if credential, err = h.webAuthn.ValidateDiscoverableLogin(
		h.findUserHandler(ctx), session, parsedResponse); err != nil {
		return errors.Wrap(err, "validate passkey login")
	}

	userID := parsedResponse.Response.UserHandle
	if err = h.saveCredential(ctx, userID, credential); err != nil {
		return errors.Wrap(err, "save passkey")
	}

	return h.logIn(ctx, userID)
}

func (h *WebAuthnHandler) logIn(ctx context.Context, userID []byte) error {
	// Renew the token to prevent session fixation.
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Put(ctx, detectiveSessionKey, userID)
	return nil
}

// Logout forgets the detective and everything stored in the session.
func (h *WebAuthnHandler) Logout(ctx context.Context) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	h.sessionManager.Remove(ctx, detectiveSessionKey)
	return nil
}
