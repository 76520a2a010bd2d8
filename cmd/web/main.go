package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
	"github.com/myrjola/noir/internal/ai"
	"github.com/myrjola/noir/internal/autosave"
	"github.com/myrjola/noir/internal/envstruct"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/logging"
	"github.com/myrjola/noir/internal/pprofserver"
	"github.com/myrjola/noir/internal/repositories"
	"github.com/myrjola/noir/internal/scenarios"
	"github.com/myrjola/noir/internal/sqlite"
	"github.com/myrjola/noir/internal/turn"
	"github.com/myrjola/noir/internal/webauthnhandler"
	"golang.org/x/sync/errgroup"
)

type application struct {
	logger          *slog.Logger
	db              *sqlite.Database
	webAuthnHandler *webauthnhandler.WebAuthnHandler
	sessionManager  *scs.SessionManager
	cases           *repositories.CaseRepository
	autosave        *autosave.Debouncer
	turns           *turn.Processor
	scenarios       *scenarios.Catalogue
	htmx            *htmx.HTMX
	templates       *templateCache
	turnGuard       *turnGuard
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"NOIR_ADDR" envDefault:"localhost:4000"`
	// FQDN is the fully qualified domain name of the server used for WebAuthn Relying Party configuration.
	FQDN string `env:"NOIR_FQDN" envDefault:"localhost"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"NOIR_SQLITE_URL" envDefault:"./noir.sqlite3"`
	// PprofPort is the port for the pprof server on the loopback interface. Empty disables it.
	PprofPort string `env:"NOIR_PPROF_PORT" envDefault:"6060"`
	// AIProvider selects the game master backend, either gemini or openai.
	AIProvider    string `env:"NOIR_AI_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel   string `env:"NOIR_GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"NOIR_GEMINI_BASE_URL" envDefault:""`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel   string `env:"NOIR_OPENAI_MODEL" envDefault:"gpt-3.5-turbo-1106"`
	OpenAIBaseURL string `env:"NOIR_OPENAI_BASE_URL" envDefault:""`
	// AutosaveDelay is how long a case has to stay unchanged before it's saved in the background.
	AutosaveDelay time.Duration `env:"NOIR_AUTOSAVE_DELAY" envDefault:"1s"`
	// RequestTimeout bounds a single request including the game master retries.
	RequestTimeout time.Duration `env:"NOIR_REQUEST_TIMEOUT" envDefault:"60s"`
}

const (
	sessionLifetime        = 12 * time.Hour
	sessionCleanupInterval = 24 * time.Hour
	optimizerInterval      = time.Hour
	shutdownTimeout        = 10 * time.Second
)

// webAuthnOrigins lists the origins browsers report during passkey ceremonies. Plain HTTP is accepted only for
// local development.
func webAuthnOrigins(cfg config) []string {
	origins := []string{fmt.Sprintf("https://%s", cfg.FQDN)}
	if cfg.FQDN == "localhost" {
		origins = append(origins, fmt.Sprintf("http://%s", cfg.Addr))
		if host, port, err := net.SplitHostPort(cfg.Addr); err == nil && host != "localhost" {
			origins = append(origins, fmt.Sprintf("http://localhost:%s", port))
		}
	}
	return origins
}

func newModel(ctx context.Context, cfg config) (ai.Model, error) {
	model, err := ai.New(ctx, ai.Settings{
		Provider:      cfg.AIProvider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		GeminiBaseURL: cfg.GeminiBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new model", slog.String("provider", cfg.AIProvider))
	}
	return model, nil
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var catalogue *scenarios.Catalogue
	if catalogue, err = scenarios.Default(); err != nil {
		return errors.Wrap(err, "load scenarios")
	}

	var model ai.Model
	if model, err = newModel(ctx, cfg); err != nil {
		return errors.Wrap(err, "new model")
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "new database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(context.Background(), slog.LevelError, "failed to close database",
				errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, sessionCleanupInterval)
	defer sessionStore.StopCleanup()
	sessionManager := scs.New()
	sessionManager.Store = sessionStore
	sessionManager.Lifetime = sessionLifetime
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	var webAuthnHandler *webauthnhandler.WebAuthnHandler
	if webAuthnHandler, err = webauthnhandler.New(
		cfg.FQDN, webAuthnOrigins(cfg), logger, sessionManager, db); err != nil {
		return errors.Wrap(err, "new webauthn handler")
	}

	var templates *templateCache
	if templates, err = newTemplateCache(); err != nil {
		return errors.Wrap(err, "parse templates")
	}

	cases := repositories.NewCaseRepository(db, logger)
	app := application{
		logger:          logger,
		db:              db,
		webAuthnHandler: webAuthnHandler,
		sessionManager:  sessionManager,
		cases:           cases,
		autosave:        autosave.NewDebouncer(cases, cfg.AutosaveDelay, logger),
		turns:           turn.NewProcessor(model, catalogue, logger),
		scenarios:       catalogue,
		htmx:            htmx.New(),
		templates:       templates,
		turnGuard:       newTurnGuard(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.configureAndStartServer(gctx, cfg.Addr, cfg.RequestTimeout)
	})
	g.Go(func() error {
		return db.RunOptimizer(gctx, optimizerInterval)
	})
	if cfg.PprofPort != "" {
		g.Go(func() error {
			return pprofserver.Serve(gctx, cfg.PprofPort, logger)
		})
	}
	err = g.Wait()

	// Pending autosaves are written after the server stopped accepting turns.
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := app.autosave.Stop(stopCtx); stopErr != nil { //nolint:contextcheck // parent is cancelled
		err = errors.Join(err, errors.Wrap(stopErr, "stop autosave"))
	}
	return err
}

func parseLogLevel(lookupEnv func(string) (string, bool)) slog.Level {
	level := slog.LevelInfo
	if raw, ok := lookupEnv("NOIR_LOG_LEVEL"); ok {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}
	return level
}

func main() {
	ctx := context.Background()

	// Missing .env is fine, the environment is usually configured by the platform.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.NewLogger(os.Stderr, slog.LevelInfo).LogAttrs(ctx, slog.LevelError, "failed to load .env",
			errors.SlogError(err))
		os.Exit(1)
	}

	logger := logging.NewLogger(os.Stdout, parseLogLevel(os.LookupEnv))
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
