package pprofserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/myrjola/noir/internal/errors"
)

// Handle registers the pprof endpoints on mux.
func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	Handle(mux)
	return mux
}

// Serve runs a pprof server on the IPv6 loopback address and the given port until ctx is cancelled.
func Serve(ctx context.Context, port string, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("::1", port))
	if err != nil {
		return errors.Wrap(err, "listen pprof", slog.String("port", port))
	}
	srv := &http.Server{ //nolint:exhaustruct // defaults are fine for a loopback debug server
		Handler:           newServeMux(),
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd // 5s
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd // 5s
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx) //nolint:contextcheck // parent is already cancelled
	}()

	logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("pprof_addr", listener.Addr().String()))
	if err = srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve pprof")
	}
	return errors.Wrap(<-shutdownErr, "shutdown pprof")
}
