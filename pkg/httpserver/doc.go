// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, health-check handlers, and slog logging.
//
// Construction goes through New or NewFromConfig with functional options such
// as WithAddr, WithReadTimeout and WithLogger. Run starts the server in its
// own goroutine and blocks until the context is cancelled or an
// interrupt/TERM signal arrives, then shuts down with a configurable
// deadline. WithStartHook and WithStopHook run side-effects around the
// server life-cycle.
//
// Run wraps listen errors with ErrStart and shutdown errors with
// ErrShutdown so callers can distinguish them with errors.Is.
//
//	srv := httpserver.New(
//		httpserver.WithAddr(":8080"),
//		httpserver.WithShutdownTimeout(10*time.Second),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		slog.Error("server stopped", "err", err)
//	}
package httpserver
