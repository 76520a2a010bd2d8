// Command migratetest migrates a copy of the production database to the current schema and checks that the
// detectives and their case files survived.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/sqlite"
	"github.com/myrjola/noir/internal/testhelpers"
)

func count(ctx context.Context, db *sqlite.Database, table string) (int, error) {
	var n int
	// The table names are constants below.
	if err := db.ReadOnly.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, errors.Wrap(err, "count rows", slog.String("table", table))
	}
	return n, nil
}

func migrate(ctx context.Context, logger *slog.Logger, sqliteURL string) error {
	db, err := sqlite.NewDatabase(ctx, sqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "new database", slog.String("url", sqliteURL))
	}
	defer func() {
		_ = db.Close()
	}()

	var users, cases int
	if users, err = count(ctx, db, "users"); err != nil {
		return err
	}
	if users == 0 {
		return errors.New("no users found, something is likely wrong")
	}
	if cases, err = count(ctx, db, "cases"); err != nil {
		return err
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "row counts", slog.Int("users", users), slog.Int("cases", cases))
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd // 5 seconds
	defer cancel()

	sqliteURL, ok := os.LookupEnv("NOIR_SQLITE_URL")
	if !ok {
		logger.LogAttrs(ctx, slog.LevelError, "NOIR_SQLITE_URL not set")
		os.Exit(1) //nolint:gocritic // nothing to clean up yet
	}
	if err := migrate(ctx, logger, sqliteURL); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "migration test failed", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
}
