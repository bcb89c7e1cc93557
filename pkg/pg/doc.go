// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver: connection pooling with startup retry, goose schema
// migrations, a health check and common error classification helpers.
//
// The package keeps a small API surface and stays decoupled from the rest of
// the service; storages receive the *pgxpool.Pool it produces and never deal
// with connection management themselves.
//
// # Usage
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    panic(err)
//	}
//
// All configuration comes from environment variables; see the field tags in
// Config for names and defaults.
//
// # Error Handling
//
// Helpers such as [pg.IsNotFoundError] and [pg.IsDuplicateKeyError] unwrap
// pgx errors so storage code can map driver failures to its own sentinel
// errors without touching *pgconn.PgError directly.
package pg
