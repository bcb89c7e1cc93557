package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/schooldesk/notifier/pkg/config"
	"github.com/schooldesk/notifier/pkg/delivery"
	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/httpapi"
	"github.com/schooldesk/notifier/pkg/httpserver"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/mailer"
	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/pg"
	"github.com/schooldesk/notifier/pkg/queue"
	"github.com/schooldesk/notifier/pkg/redis"
	"github.com/schooldesk/notifier/pkg/template"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("notifier stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(logger.WithEnvironment(cfg.AppEnv, "notifier"))
	logger.SetAsDefault(log)

	policy := delivery.DefaultRetryPolicy()

	// Record stores: notifications, templates, event log.
	var (
		notifStore    notification.Storage
		templateStore template.Storage
		eventStore    eventlog.Storage
		healthchecks  []func(context.Context) error
	)
	switch cfg.StorageDriver {
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}
		notifStore = notification.NewPGStorage(pool)
		templateStore = template.NewPGStorage(pool)
		eventStore = eventlog.NewPGStorage(pool)
		healthchecks = append(healthchecks, pg.Healthcheck(pool))
	case "memory":
		notifStore = notification.NewMemoryStorage()
		templateStore = template.NewMemoryStorage()
		eventStore = eventlog.NewMemoryStorage()
	}

	if err := template.Seed(ctx, templateStore); err != nil {
		return err
	}

	queueStore, queueChecks, closeQueue, err := buildQueueStorage(ctx, cfg, policy, log)
	if err != nil {
		return err
	}
	defer closeQueue()
	healthchecks = append(healthchecks, queueChecks...)

	enqueuer, err := queue.NewEnqueuer(queueStore)
	if err != nil {
		return err
	}
	dispatcher, err := delivery.NewQueueDispatcher(enqueuer,
		delivery.WithDispatcherPolicy(policy))
	if err != nil {
		return err
	}

	recorder, err := eventlog.NewRecorder(eventStore, eventlog.WithLogger(log))
	if err != nil {
		return err
	}

	service, err := notification.NewService(notifStore, templateStore, eventStore, dispatcher,
		notification.WithLogger(log))
	if err != nil {
		return err
	}

	var sender mailer.Sender
	switch cfg.MailDriver {
	case "postmark":
		sender, err = mailer.NewPostmarkSender(cfg.Mailer)
		if err != nil {
			return err
		}
	case "dev":
		sender = mailer.NewDevSender(cfg.Mailer.DevOutputDir)
	}

	handler, err := delivery.NewHandler(notifStore, recorder, sender, dispatcher,
		delivery.WithHandlerLogger(log),
		delivery.WithHandlerPolicy(policy))
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(queueStore,
		queue.WithPullInterval(cfg.Queue.PollInterval),
		queue.WithLockTimeout(cfg.Queue.LockTimeout),
		queue.WithMaxConcurrentTasks(cfg.Queue.MaxConcurrentTasks),
		queue.WithTerminalHandler(handler.HandleTerminal),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	if err := worker.RegisterHandler(handler.TaskHandler()); err != nil {
		return err
	}

	api := httpapi.New(service, recorder, httpapi.WithLogger(log))
	router := chi.NewRouter()
	router.Get("/health", httpserver.HealthCheckHandler(ctx, log, healthchecks...))
	router.Mount("/", api.Router())

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(func() error {
		return srv.Run(ctx, router)
	})
	return g.Wait()
}

// buildQueueStorage creates the task queue backend for the configured
// driver. Each backend gets the delivery backoff schedule so queue-level
// reschedules follow the retry policy.
func buildQueueStorage(ctx context.Context, cfg appConfig, policy delivery.RetryPolicy, log *slog.Logger) (queue.Repository, []func(context.Context) error, func(), error) {
	backoff := policy.BackoffFunc()
	noop := func() {}

	switch cfg.QueueDriver {
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, noop, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, noop, err
		}
		// Idempotent when the record store already migrated this database.
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		store := queue.NewPGStorage(pool, queue.WithPGBackoff(backoff))
		return store, nil, pool.Close, nil
	case "redis":
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, noop, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, noop, err
		}
		store := queue.NewRedisStorage(client, queue.WithRedisBackoff(backoff))
		checks := []func(context.Context) error{redis.Healthcheck(client)}
		return store, checks, func() {
			_ = store.Close()
			_ = client.Close()
		}, nil
	default:
		store := queue.NewMemoryStorage(queue.WithBackoff(backoff))
		return store, nil, func() { _ = store.Close() }, nil
	}
}
