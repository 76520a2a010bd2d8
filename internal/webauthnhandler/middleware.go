package webauthnhandler

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/logging"
)

// AuthenticateMiddleware puts the signed in detective into the request context and tags the log context with the
// hashed session token. A session pointing at a detective that no longer exists is signed out.
func (h *WebAuthnHandler) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tokenHash := sha256.Sum256([]byte(h.sessionManager.Token(ctx)))
		ctx = logging.WithAttrs(ctx, slog.String("session_hash", hex.EncodeToString(tokenHash[:])))

		if handle := h.sessionManager.GetBytes(ctx, detectiveSessionKey); handle != nil {
			exists, err := h.detectiveExists(ctx, handle)
			if err != nil {
				h.logger.LogAttrs(ctx, slog.LevelError, "server error",
					slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if exists {
				ctx = contexthelpers.WithDetective(ctx, handle)
				ctx = logging.WithAttrs(ctx, slog.String("user_id", hex.EncodeToString(handle)))
			} else {
				h.sessionManager.Remove(ctx, detectiveSessionKey)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
