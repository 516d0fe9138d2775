package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/glacier"
	"github.com/aretw0/glacier/internal/metrics"
	httpAdapter "github.com/aretw0/glacier/pkg/adapters/http"
)

// ServeOptions contains the configuration for the Serve command.
type ServeOptions struct {
	ScriptPath string
	Addr       string
	CORS       bool
	// Listener overrides Addr when set.
	Listener net.Listener
	// Ready is called with the bound address once the server accepts connections.
	Ready func(addr string)
}

// shutdownTimeout bounds how long outstanding requests may take after a stop signal.
const shutdownTimeout = 5 * time.Second

// Serve initializes the script and serves it over HTTP until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions, engOpts EngineOptions) error {
	logger := engOpts.Logger
	if logger == nil {
		logger = slog.Default()
		engOpts.Logger = logger
	}

	collector := metrics.New()
	engOpts.Extra = append(engOpts.Extra, glacier.WithLifecycleHooks(collector.Hooks()))

	engine, closeEngine, err := createEngine(ctx, opts.ScriptPath, engOpts)
	if err != nil {
		return err
	}
	defer closeEngine()

	if err := engine.InitializeFile(ctx, opts.ScriptPath); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	handler := httpAdapter.NewHandler(engine,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(collector.Handler()),
		httpAdapter.WithVersion(glacier.Version),
		httpAdapter.WithCORS(opts.CORS),
	)

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting Glacier Server", "addr", ln.Addr().String(), "script", opts.ScriptPath)
		serverErrors <- srv.Serve(ln)
	}()
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Start shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("Glacier Server stopped gracefully")
		return nil
	}
}
