package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/noir/internal/sqlite"
	"github.com/myrjola/noir/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

var (
	alice = []byte{1}
	bob   = []byte{2}
)

// newTestDB creates a new in-memory database for testing purposes with two users.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	_, err = db.ReadWrite.ExecContext(ctx, `INSERT INTO users (id, display_name) VALUES (?, 'Alice'), (?, 'Bob')`,
		alice, bob)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}
