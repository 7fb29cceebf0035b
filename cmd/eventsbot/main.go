package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"recurring_events/internal/app"
	"recurring_events/internal/domain/reminder"
	"recurring_events/internal/infra/config"
	idb "recurring_events/internal/infra/database"
	"recurring_events/internal/infra/logger"
	"recurring_events/internal/infra/scheduler"
	"recurring_events/internal/infra/telegram"
)

func main() {
	once := flag.Bool("once", false, "run one reminder pass and exit")
	nowFlag := flag.String("now", "", "RFC3339 instant to run the pass as of (with -once)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"timezone":    cfg.ReminderLocation.String(),
	}).Info("Configuration loaded")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	if cfg.RunMigrations {
		if err := idb.Migrate(db, logger.Component("migrations")); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply migrations")
		}
	}

	// Initialize Repositories
	eventRepo := idb.NewPostgresEventRepository(db)
	overrideRepo := idb.NewPostgresOverrideRepository(db)
	ledger := idb.NewPostgresAttendanceRepository(db)
	directory := idb.NewPostgresParticipantDirectory(db)
	reminderLog := idb.NewPostgresReminderLog(db)

	var bot *telebot.Bot
	var sender reminder.Sender
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken, logger.Component("telebot"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		// No fallback: other address schemes are recorded as failed attempts.
		sender = telegram.NewSender(telegram.NewTelebotAdapter(bot), nil, logger.Component("reminders"))
	} else {
		switch cfg.Environment {
		case "production", "staging":
			mainLogger.Fatal("TELEGRAM_TOKEN is required in production and staging")
		}
		mainLogger.Warn("TELEGRAM_TOKEN is not set, reminders are only logged and recorded as failed")
		sender = telegram.NewLogSender(logger.Component("reminders"))
	}

	dispatcher := app.NewReminderDispatcher(eventRepo, overrideRepo, ledger, directory, reminderLog, sender,
		logger.Component("dispatcher"),
		app.WithConcurrency(cfg.DispatchConcurrency),
		app.WithLocation(cfg.ReminderLocation),
	)

	if *once {
		now := time.Now()
		if *nowFlag != "" {
			now, err = time.Parse(time.RFC3339, *nowFlag)
			if err != nil {
				mainLogger.WithError(err).Fatal("Invalid -now value")
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DispatchTimeout)
		summary := dispatcher.Run(ctx, now)
		cancel()
		fmt.Printf("sent=%d failed=%d skipped=%d events=%d expansion_failures=%d\n",
			summary.Sent, summary.Failed, summary.Skipped, summary.Events, summary.ExpansionFailures)
		return
	}

	reminderScheduler := scheduler.NewReminderScheduler(dispatcher, logger.Component("scheduler"),
		cfg.CronSpecReminders, cfg.DispatchTimeout, cfg.ReminderLocation)
	if err := reminderScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start reminder scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if bot != nil {
		overrides := app.NewOverrideService(eventRepo, overrideRepo, logger.Component("overrides"))
		schedule := app.NewScheduleService(eventRepo, overrideRepo)
		attendance := app.NewAttendanceService(eventRepo, overrideRepo, ledger, logger.Component("attendance"))
		handlerLogger := logger.Component("telegram")

		telegram.RegisterBotCommands(ctx, bot, cfg.AdminTelegramID, directory, handlerLogger)
		telegram.RegisterRSVPHandlers(ctx, bot, telegram.NewRSVPHandler(attendance, directory, handlerLogger))
		if cfg.AdminTelegramID != 0 {
			adminService := app.NewAdminService(directory, cfg.AdminTelegramID)
			admin := telegram.NewAdminCommands(adminService, overrides, schedule, dispatcher, cfg.ReminderLocation)
			telegram.RegisterAdminHandlers(ctx, bot, admin, cfg.AdminTelegramID, handlerLogger)
			mainLogger.Info("Admin command handlers registered")
		}

		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	reminderScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func newBot(token string, log *logrus.Entry) (*telebot.Bot, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	return telebot.NewBot(pref)
}
