package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"
	"birthday_notification_bot/internal/infra/logger"
	"birthday_notification_bot/internal/infra/scheduler"
	"birthday_notification_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithField("timezone", cfg.Timezone).Info("Configuration loaded")

	// Initialize Database Connection. An unreachable store aborts startup:
	// the scheduler must never run against an unusable database.
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := idb.EnsureSchema(bootCtx, db); err != nil {
		bootCancel()
		mainLogger.Fatalf("FATAL: Could not apply database schema: %v", err)
	}
	bootCancel()
	mainLogger.Info("Database connection established and schema verified")

	// Initialize Repositories
	userRepo := idb.NewPostgresUserRepository(db)
	notifRepo := idb.NewPostgresNotificationRepository(db)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Unhandled telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}
	telegramClient := telegram.NewTelebotAdapter(bot)

	// Initialize Services
	notifService := app.NewNotificationServiceImpl(
		userRepo,
		notifRepo,
		telegramClient,
		logger.Log.WithField("component", "notification_service"),
		cfg.Location,
		cfg.PhonePay,
		cfg.NamePay,
		config.ReloadInterval,
		config.DeliveryTimeout,
	)
	adminService := app.NewAdminService(userRepo, cfg)
	templateService := app.NewTemplateService(notifRepo, cfg.Location, cfg.PhonePay, cfg.NamePay)
	backupService := app.NewBackupService(
		userRepo,
		notifRepo,
		logger.Log.WithField("component", "backup_service"),
		cfg.BackupDir,
		cfg.BackupRetention,
		cfg.Location,
	)
	mainLogger.Info("Services initialized")

	// Initialize Schedulers
	birthdayScheduler := scheduler.NewBirthdayScheduler(
		notifService,
		logger.Log.WithField("component", "scheduler"),
		cfg.Location,
		config.TickInterval,
	)
	birthdayScheduler.Start()

	maintenance := scheduler.NewMaintenanceScheduler(
		backupService,
		notifRepo,
		logger.Log.WithField("component", "maintenance"),
		cfg.Location,
		cfg.BackupCronSpec,
		cfg.LogCleanupCronSpec,
		cfg.LogRetentionDays,
	)
	if err := maintenance.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start maintenance scheduler: %v", err)
	}

	// Register Handlers
	handlerCtx := context.Background()
	telegram.RegisterBotCommands(handlerCtx, bot, cfg, userRepo, logger.Log.WithField("component", "handlers"))
	telegram.RegisterAdminHandlers(handlerCtx, bot, telegram.AdminHandlerDeps{
		Config:          cfg,
		AdminService:    adminService,
		TemplateService: templateService,
		BackupService:   backupService,
		NotifService:    notifService,
		NotifRepo:       notifRepo,
	}, logger.Log.WithField("component", "admin_handlers"))
	mainLogger.Info("Command handlers registered")

	mainLogger.Info("Application setup complete. Bot and schedulers are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	birthdayScheduler.Stop()
	maintenance.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully")
}
