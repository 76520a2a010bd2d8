package webauthnhandler

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/noir/internal/errors"
)

// Session keys owned by the passkey ceremonies.
const (
	ceremonySessionKey  = "webauthn"
	detectiveSessionKey = "userID"
)

const userHandleSize = 64

// detective is the webauthn.User of the game. Detectives are anonymous: the display name only helps the password
// manager tell passkeys apart.
type detective struct {
	handle      []byte
	badge       string
	credentials []webauthn.Credential
}

// newDetective issues a random user handle. A fresh handle per registration means one account per passkey.
func newDetective(now time.Time) (*detective, error) {
	handle := make([]byte, userHandleSize)
	if _, err := rand.Read(handle); err != nil {
		return nil, errors.Wrap(err, "generate user handle")
	}
	return &detective{
		handle:      handle,
		badge:       fmt.Sprintf("Detective %s", now.UTC().Format("2006-01-02 15:04")),
		credentials: []webauthn.Credential{},
	}, nil
}

// WebAuthnID is the only value authorization decisions are made on.
func (d *detective) WebAuthnID() []byte {
	return d.handle
}

func (d *detective) WebAuthnName() string {
	return d.badge
}

func (d *detective) WebAuthnDisplayName() string {
	return d.badge
}

// WebAuthnIcon is deprecated in the standard and always empty.
func (d *detective) WebAuthnIcon() string {
	return ""
}

func (d *detective) WebAuthnCredentials() []webauthn.Credential {
	return d.credentials
}
