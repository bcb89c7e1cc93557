package main

import (
	"fmt"

	"github.com/schooldesk/notifier/pkg/config"
	"github.com/schooldesk/notifier/pkg/httpserver"
	"github.com/schooldesk/notifier/pkg/mailer"
	"github.com/schooldesk/notifier/pkg/queue"
)

// appConfig is the top-level service configuration. Driver-specific sections
// (Postgres, Redis) are loaded lazily in main so their required variables
// only apply when the matching driver is selected.
type appConfig struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// StorageDriver selects the notification/template/event record store:
	// "postgres" or "memory".
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// QueueDriver selects the delayed-task queue backend: "postgres",
	// "redis" or "memory".
	QueueDriver string `env:"QUEUE_DRIVER" envDefault:"postgres"`

	// MailDriver selects the outbound transport: "postmark" or "dev" (dev
	// writes messages to disk instead of sending).
	MailDriver string `env:"MAIL_DRIVER" envDefault:"postmark"`

	HTTP   httpserver.Config
	Queue  queue.Config
	Mailer mailer.Config
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}

	switch cfg.StorageDriver {
	case "postgres", "memory":
	default:
		return appConfig{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	switch cfg.QueueDriver {
	case "postgres", "redis", "memory":
	default:
		return appConfig{}, fmt.Errorf("unknown QUEUE_DRIVER %q", cfg.QueueDriver)
	}
	switch cfg.MailDriver {
	case "postmark", "dev":
	default:
		return appConfig{}, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.MailDriver)
	}

	return cfg, nil
}
