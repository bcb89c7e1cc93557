// Package logger provides a slog.Logger factory with environment presets and
// context-aware attribute injection.
//
// The factory produces JSON output at info level by default, which suits log
// aggregation in production. Development mode switches to human-readable text
// at debug level.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "notifier"),
//	)
//	logger.SetAsDefault(log)
//
// Context extractors inject request-scoped values into every record logged
// with that context:
//
//	log := logger.New(
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//
// The attr helpers (logger.Error, logger.NotificationID, ...) keep attribute
// keys consistent across packages.
package logger
