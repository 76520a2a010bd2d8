package repositories

import (
	"context"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/sqlite"
)

// ErrNotFound is returned when the case does not exist or is owned by someone else.
var ErrNotFound = errors.NewSentinel("case not found")

const (
	maxTitleLength = 60
	untitledCase   = "Untitled Case"
)

// CaseRepository persists game states as cases. Every operation is scoped to the owning user.
type CaseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewCaseRepository(db *sqlite.Database, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger.With("source", "CaseRepository"),
		now:    time.Now,
	}
}

// DeriveTitle returns the text before the first period of summary, trimmed and truncated. It falls back to a
// placeholder for an empty summary.
func DeriveTitle(summary string) string {
	title, _, _ := strings.Cut(summary, ".")
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleLength]))
	}
	if title == "" {
		return untitledCase
	}
	return title
}

// StatusOf maps the game over flag to the persisted case status.
func StatusOf(state models.GameState) models.CaseStatus {
	if state.GameOver {
		return models.CaseStatusSolved
	}
	return models.CaseStatusActive
}

// Save creates a new case when state has no case id and updates the existing one otherwise.
//
// Saving without a user is a no-op returning state unchanged. Updating a case that does not exist for userID fails
// with ErrNotFound instead of creating one.
func (r *CaseRepository) Save(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error) {
	if len(userID) == 0 {
		return state, nil
	}
	if state.CaseID == "" {
		return r.create(ctx, userID, state)
	}
	return r.update(ctx, userID, state)
}

func (r *CaseRepository) create(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error) {
	state.CaseID = uuid.NewString()
	state.Title = DeriveTitle(state.CaseSummary)

	stmt := `INSERT INTO cases (id, user_id, state, status, title, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ReadWrite.ExecContext(ctx, stmt,
		state.CaseID, userID, state, StatusOf(state), state.Title, r.now().UTC()); err != nil {
		return state, errors.Wrap(err, "insert case", slog.String("user_id", hex.EncodeToString(userID)))
	}
	return state, nil
}

func (r *CaseRepository) update(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error) {
	var (
		tx  *sqlx.Tx
		err error
	)
	if tx, err = r.db.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return state, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
				errors.SlogError(rollbackErr))
		}
	}()

	var stored struct {
		Status models.CaseStatus `db:"status"`
		Title  string            `db:"title"`
	}
	stmt := `SELECT status, title FROM cases WHERE id = ? AND user_id = ?`
	if err = tx.GetContext(ctx, &stored, stmt, state.CaseID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, errors.Wrap(ErrNotFound, "update case", slog.String("case_id", state.CaseID))
		}
		return state, errors.Wrap(err, "select case", slog.String("case_id", state.CaseID))
	}

	// A solved case stays solved.
	if stored.Status == models.CaseStatusSolved {
		state.GameOver = true
	}
	state.Title = stored.Title

	stmt = `UPDATE cases SET state = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	if _, err = tx.ExecContext(ctx, stmt, state, StatusOf(state), r.now().UTC(), state.CaseID, userID); err != nil {
		return state, errors.Wrap(err, "update case", slog.String("case_id", state.CaseID))
	}

	if err = tx.Commit(); err != nil {
		return state, errors.Wrap(err, "commit transaction")
	}
	return state, nil
}

// Get returns the case with id owned by userID.
func (r *CaseRepository) Get(ctx context.Context, id string, userID []byte) (models.Case, error) {
	var c models.Case
	if len(userID) == 0 {
		return c, errors.Wrap(ErrNotFound, "get case without user", slog.String("case_id", id))
	}
	stmt := `SELECT id, user_id, state, status, title, updated_at FROM cases WHERE id = ? AND user_id = ?`
	if err := r.db.ReadOnly.GetContext(ctx, &c, stmt, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, errors.Wrap(ErrNotFound, "get case", slog.String("case_id", id))
		}
		return c, errors.Wrap(err, "select case", slog.String("case_id", id))
	}
	c.State.CaseID = c.ID
	c.State.Title = c.Title
	return c, nil
}

// List returns the cases owned by userID, most recently updated first. Without a user the list is empty.
func (r *CaseRepository) List(ctx context.Context, userID []byte) ([]models.CaseSummary, error) {
	cases := []models.CaseSummary{}
	if len(userID) == 0 {
		return cases, nil
	}
	stmt := `SELECT id, status, title, updated_at FROM cases WHERE user_id = ? ORDER BY updated_at DESC, id`
	if err := r.db.ReadOnly.SelectContext(ctx, &cases, stmt, userID); err != nil {
		return nil, errors.Wrap(err, "select cases", slog.String("user_id", hex.EncodeToString(userID)))
	}
	return cases, nil
}

// Delete removes the case with id owned by userID. Deleting someone else's case fails with ErrNotFound.
func (r *CaseRepository) Delete(ctx context.Context, id string, userID []byte) error {
	if len(userID) == 0 {
		return errors.Wrap(ErrNotFound, "delete case without user", slog.String("case_id", id))
	}
	result, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM cases WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete case", slog.String("case_id", id))
	}
	var affected int64
	if affected, err = result.RowsAffected(); err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrap(ErrNotFound, "delete case", slog.String("case_id", id))
	}
	return nil
}
