package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comanda/internal/auth"
	"comanda/internal/config"
	"comanda/internal/database"
	"comanda/internal/imagestore"
	"comanda/internal/logger"
	"comanda/internal/messaging"
	"comanda/internal/repository"
	"comanda/internal/repository/memory"
	"comanda/internal/repository/postgres"
	"comanda/internal/server"
	"comanda/internal/services/notification"
)

func main() {
	var (
		mode       = flag.String("mode", "api", "Service mode (api, notification-subscriber, migrate)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")
		port       = flag.Int("port", 0, "HTTP port, overrides http.port")
		prefetch   = flag.Int("prefetch", 10, "RabbitMQ prefetch count for the notification subscriber")
		dryRun     = flag.Bool("dry-run", false, "With --mode migrate, list pending migrations without applying them")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.HTTP.Port = *port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("service_starting", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":   *mode,
		"store":  cfg.App.Store,
		"events": cfg.Events.Driver,
		"images": cfg.Images.Driver,
	})

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, log)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	case "migrate":
		err = runMigrations(ctx, cfg, log, *dryRun)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func runAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer events.Close()

	images, closeImages, err := openImages(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeImages()

	srv := server.New(cfg.HTTP, server.Deps{
		Store:  store,
		Tokens: auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		Images: images,
		Events: events,
		Logger: log,
	})

	if cfg.Auth.PartnerEmail != "" {
		if err := srv.Users.EnsurePartner(ctx, cfg.Auth.PartnerEmail, cfg.Auth.PartnerPassword); err != nil {
			return fmt.Errorf("failed to create partner account: %w", err)
		}
	}

	return srv.Run(ctx)
}

// openStore returns the configured entity store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repository.Store, func(), error) {
	if cfg.App.Store == "memory" {
		log.Info("store_selected", "Using in-memory store; data is lost on exit", "", nil)
		return memory.New(), func() {}, nil
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := db.Migrate(ctx, database.MigrationsDir(cfg.App.MigrationsPath)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return postgres.New(db), db.Close, nil
}

func openPublisher(cfg *config.Config, log *logger.Logger) (messaging.StatusPublisher, error) {
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		return messaging.NewPublisher(conn, log), nil
	case "nats":
		p, err := messaging.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return p, nil
	default:
		return messaging.NopPublisher{}, nil
	}
}

func openImages(ctx context.Context, cfg *config.Config) (imagestore.Store, func(), error) {
	if cfg.Images.Driver == "gridfs" {
		store, err := imagestore.NewGridFSStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return store, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			store.Close(closeCtx)
		}, nil
	}

	store, err := imagestore.NewFileStore(cfg.Images.Directory)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	var source messaging.Source
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		// The consumer owns conn and closes it on shutdown.
		source = messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	case "nats":
		sub, err := messaging.NewNATSSubscriber(cfg.NATS.URL, cfg.NATS.Subject, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		source = sub
	default:
		return fmt.Errorf("notification-subscriber needs events.driver rabbitmq or nats, got %q", cfg.Events.Driver)
	}

	return notification.NewSubscriber(source, log, os.Stdout).Start(ctx)
}

func runMigrations(ctx context.Context, cfg *config.Config, log *logger.Logger, dryRun bool) error {
	if cfg.App.Store != "postgres" {
		return fmt.Errorf("migrate needs app.store postgres, got %q", cfg.App.Store)
	}
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	dir := database.MigrationsDir(cfg.App.MigrationsPath)
	if dryRun {
		report, err := db.Pending(ctx, dir)
		if err != nil {
			return err
		}
		names := make([]string, len(report.Pending))
		for i, m := range report.Pending {
			names[i] = fmt.Sprintf("%03d_%s", m.Version, m.Name)
		}
		log.Info("migrations_pending", fmt.Sprintf("%d migration(s) pending at version %d", len(names), report.Current), "",
			map[string]interface{}{"current_version": report.Current, "pending": names})
		return nil
	}

	report, err := db.Migrate(ctx, dir)
	if err != nil {
		return err
	}
	log.Info("migrations_done", fmt.Sprintf("Schema at version %d, %d migration(s) applied", report.Current, len(report.Applied)), "",
		map[string]interface{}{"current_version": report.Current, "applied": len(report.Applied)})
	return nil
}
