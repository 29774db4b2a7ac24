package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/engine"
	"github.com/primar/rendiciones/internal/application/port"
	"github.com/primar/rendiciones/internal/config"
	"github.com/primar/rendiciones/internal/infrastructure/email"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/repository"
	"github.com/primar/rendiciones/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/primar/rendiciones/internal/interfaces/http"
	"github.com/primar/rendiciones/internal/notification"
	"github.com/primar/rendiciones/internal/storage"
	"github.com/primar/rendiciones/internal/ticket"
	"github.com/primar/rendiciones/migrations"
	"github.com/primar/rendiciones/pkg/database"
	"github.com/primar/rendiciones/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting rendiciones approval service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)

	requestRepo := repository.NewRequestRepository(db.DB, logger)
	attachmentRepo := repository.NewAttachmentRepository(db.DB, logger)
	notificationRepo := repository.NewNotificationRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)

	blobStore, err := storage.NewAttachmentStore(cfg.Storage.AttachmentDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}

	var mailer port.Mailer
	if cfg.Email.Enabled {
		mailer, err = email.NewSESMailer(context.Background(), cfg.Email.Region, cfg.Email.Sender, logger)
		if err != nil {
			logger.Fatal("Failed to initialize SES mailer", zap.Error(err))
		}
	} else {
		mailer = email.NewLogMailer(logger)
	}

	tickets := ticket.NewGenerator(requestRepo.TicketExists, logger)
	dispatcher := notification.NewDispatcher(notificationRepo, userRepo, mailer, cfg.Email.FinanceEmail, logger)

	eng := engine.New(
		requestRepo,
		attachmentRepo,
		notificationRepo,
		userRepo,
		txManager,
		blobStore,
		tickets,
		dispatcher,
		logger,
	)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
