package webauthnhandler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/myrjola/noir/internal/errors"
)

// credentialRow mirrors the credentials table.
type credentialRow struct {
	ID              []byte `db:"id"`
	UserID          []byte `db:"user_id"`
	PublicKey       []byte `db:"public_key"`
	AttestationType string `db:"attestation_type"`
	// Transport is a JSON list of transport hints.
	Transport      string `db:"transport"`
	UserPresent    bool   `db:"flag_user_present"`
	UserVerified   bool   `db:"flag_user_verified"`
	BackupEligible bool   `db:"flag_backup_eligible"`
	BackupState    bool   `db:"flag_backup_state"`
	// AAGUID is NULL for authenticators that don't disclose their model.
	AAGUID       []byte `db:"authenticator_aaguid"`
	SignCount    uint32 `db:"authenticator_sign_count"`
	CloneWarning bool   `db:"authenticator_clone_warning"`
	Attachment   string `db:"authenticator_attachment"`
}

func newCredentialRow(userID []byte, c *webauthn.Credential) (credentialRow, error) {
	transport, err := json.Marshal(c.Transport)
	if err != nil {
		return credentialRow{}, errors.Wrap(err, "JSON encode transport")
	}
	return credentialRow{
		ID:              c.ID,
		UserID:          userID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       string(transport),
		UserPresent:     c.Flags.UserPresent,
		UserVerified:    c.Flags.UserVerified,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
		AAGUID:          c.Authenticator.AAGUID,
		SignCount:       c.Authenticator.SignCount,
		CloneWarning:    c.Authenticator.CloneWarning,
		Attachment:      string(c.Authenticator.Attachment),
	}, nil
}

func (row credentialRow) credential() (webauthn.Credential, error) {
	var transport []protocol.AuthenticatorTransport
	if err := json.Unmarshal([]byte(row.Transport), &transport); err != nil {
		return webauthn.Credential{}, errors.Wrap(err, "JSON decode transport")
	}
	return webauthn.Credential{ //nolint:exhaustruct // attestation details are not stored
		ID:              row.ID,
		PublicKey:       row.PublicKey,
		AttestationType: row.AttestationType,
		Transport:       transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    row.UserPresent,
			UserVerified:   row.UserVerified,
			BackupEligible: row.BackupEligible,
			BackupState:    row.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       row.AAGUID,
			SignCount:    row.SignCount,
			CloneWarning: row.CloneWarning,
			Attachment:   protocol.AuthenticatorAttachment(row.Attachment),
		},
	}, nil
}

func (h *WebAuthnHandler) saveDetective(ctx context.Context, d *detective) error {
	stmt := `INSERT INTO users (id, display_name) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`
	if _, err := h.db.ReadWrite.ExecContext(ctx, stmt, d.handle, d.badge); err != nil {
		return errors.Wrap(err, "upsert user", slog.String("user_id", hex.EncodeToString(d.handle)))
	}
	return nil
}

// loadDetective returns the detective with their passkeys.
func (h *WebAuthnHandler) loadDetective(ctx context.Context, handle []byte) (*detective, error) {
	d := detective{handle: handle} //nolint:exhaustruct // filled from the database
	if err := h.db.ReadOnly.GetContext(ctx, &d.badge, `SELECT display_name FROM users WHERE id = ?`, handle); err != nil {
		return nil, errors.Wrap(err, "select user", slog.String("user_id", hex.EncodeToString(handle)))
	}

	var rows []credentialRow
	if err := h.db.ReadOnly.SelectContext(ctx, &rows, `SELECT * FROM credentials WHERE user_id = ?`, handle); err != nil {
		return nil, errors.Wrap(err, "select credentials", slog.String("user_id", hex.EncodeToString(handle)))
	}
	d.credentials = make([]webauthn.Credential, 0, len(rows))
	for _, row := range rows {
		c, err := row.credential()
		if err != nil {
			return nil, errors.Wrap(err, "decode credential", slog.String("credential_id", hex.EncodeToString(row.ID)))
		}
		d.credentials = append(d.credentials, c)
	}
	return &d, nil
}

// saveCredential stores a new passkey or the updated sign count and flags of a known one.
func (h *WebAuthnHandler) saveCredential(ctx context.Context, userID []byte, c *webauthn.Credential) error {
	row, err := newCredentialRow(userID, c)
	if err != nil {
		return err
	}
	stmt := `INSERT INTO credentials (id, user_id, public_key, attestation_type, transport, flag_user_present,
                         flag_user_verified, flag_backup_eligible, flag_backup_state, authenticator_aaguid,
                         authenticator_sign_count, authenticator_clone_warning, authenticator_attachment)
VALUES (:id, :user_id, :public_key, :attestation_type, :transport, :flag_user_present, :flag_user_verified,
        :flag_backup_eligible, :flag_backup_state, :authenticator_aaguid, :authenticator_sign_count,
        :authenticator_clone_warning, :authenticator_attachment)
ON CONFLICT (id) DO UPDATE SET transport                   = EXCLUDED.transport,
                               flag_user_present           = EXCLUDED.flag_user_present,
                               flag_user_verified          = EXCLUDED.flag_user_verified,
                               flag_backup_eligible        = EXCLUDED.flag_backup_eligible,
                               flag_backup_state           = EXCLUDED.flag_backup_state,
                               authenticator_sign_count    = EXCLUDED.authenticator_sign_count,
                               authenticator_clone_warning = EXCLUDED.authenticator_clone_warning
WHERE credentials.user_id = EXCLUDED.user_id`
	if _, err = h.db.ReadWrite.NamedExecContext(ctx, stmt, row); err != nil {
		return errors.Wrap(err, "upsert credential",
			slog.String("user_id", hex.EncodeToString(userID)),
			slog.String("credential_id", hex.EncodeToString(c.ID)),
		)
	}
	return nil
}

func (h *WebAuthnHandler) detectiveExists(ctx context.Context, handle []byte) (bool, error) {
	var exists bool
	if err := h.db.ReadOnly.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, handle); err != nil {
		return false, errors.Wrap(err, "select user exists")
	}
	return exists, nil
}
