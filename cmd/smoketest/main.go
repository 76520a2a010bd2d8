package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/myrjola/noir/internal/e2etest"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/logging"
)

func testHealth(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second) //nolint:mnd // 30 seconds
	defer cancel()
	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for healthy")
	}
	var scenarios []struct {
		ID string `json:"id"`
	}
	status, err := client.DoJSON(ctx, http.MethodGet, "/api/scenarios", "", nil, &scenarios)
	if err != nil {
		return errors.Wrap(err, "list scenarios")
	}
	if status != http.StatusOK || len(scenarios) == 0 {
		return errors.New("no scenarios", slog.Int("status", status))
	}
	return nil
}

func testAuth(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	var err error

	if _, err = client.Register(ctx); err != nil {
		return errors.Wrap(err, "register user")
	}
	if _, err = client.Logout(ctx); err != nil {
		return errors.Wrap(err, "logout user")
	}
	if _, err = client.Login(ctx); err != nil {
		return errors.Wrap(err, "login user")
	}

	// A fresh detective has an empty, but reachable, case file cabinet.
	var cases []struct {
		ID string `json:"id"`
	}
	status, err := client.DoJSON(ctx, http.MethodGet, "/api/cases", "", nil, &cases)
	if err != nil {
		return errors.Wrap(err, "list cases")
	}
	if status != http.StatusOK {
		return errors.New("unexpected case list status", slog.Int("status", status))
	}
	return nil
}

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url, hostname, url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = testHealth(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing health", errors.SlogError(err))
		os.Exit(1)
	}
	if err = testAuth(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing auth", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
}
