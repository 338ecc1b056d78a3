package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bowerhall/ari/internal/alerts"
	"github.com/bowerhall/ari/internal/bot"
	"github.com/bowerhall/ari/internal/calendar"
	"github.com/bowerhall/ari/internal/config"
	"github.com/bowerhall/ari/internal/intake"
	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/metrics"
	"github.com/bowerhall/ari/internal/relay"
	"github.com/bowerhall/ari/internal/scheduling"
	"github.com/bowerhall/ari/internal/server"
	"github.com/bowerhall/ari/internal/session"
	"github.com/bowerhall/ari/internal/storage"
)

func init() {
	godotenv.Load()
}

func openStore(cfg config.SessionConfig) (session.Store, func(), error) {
	switch cfg.Backend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return session.NewRedisStore(client), func() { client.Close() }, nil

	case config.StoreSQLite:
		store, err := session.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("failed to load timezone", "tz", cfg.Timezone, "error", err)
	}

	msgs := messages.Default()
	if cfg.Messages != "" {
		msgs, err = messages.Load(cfg.Messages)
		if err != nil {
			logger.Fatal("failed to load messages", "path", cfg.Messages, "error", err)
		}
	}

	store, closeStore, err := openStore(cfg.Sessions)
	if err != nil {
		logger.Fatal("failed to open session store", "backend", cfg.Sessions.Backend, "error", err)
	}
	defer closeStore()
	logger.Info("session store ready", "backend", cfg.Sessions.Backend)

	intakeMetrics, metricsHandler := metrics.NewWithHandler()

	tg, err := bot.NewTelegram(cfg.Bot)
	if err != nil {
		logger.Fatal("failed to create telegram bot", "error", err)
	}

	sinks := []relay.Sink{relay.NewTelegramSink(tg, cfg.Operators.AdminChatIDs)}
	if cfg.Operators.DiscordToken != "" && cfg.Operators.DiscordChannelID != "" {
		discord, err := relay.NewDiscordSink(cfg.Operators.DiscordToken, cfg.Operators.DiscordChannelID, tg)
		if err != nil {
			logger.Error("failed to create discord sink", "error", err)
		} else {
			sinks = append(sinks, discord)
			logger.Info("discord relay enabled", "channel", cfg.Operators.DiscordChannelID)
		}
	}
	rel := relay.New(intakeMetrics, sinks...)

	var alerter *alerts.Alerter
	if cfg.Operators.AlertChatID != 0 {
		alertChat := cfg.Operators.AlertChatID
		alerter = alerts.New(func(text string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err := tg.SendText(ctx, alertChat, text, nil)
			return err
		}, 15*time.Minute)
		logger.Info("alerts enabled", "chatID", alertChat)
	}

	// minio photo archive (optional)
	var storageClient *storage.Client
	var archiver *storage.Archiver
	if cfg.Storage.Enabled {
		storageClient, err = storage.NewClient(cfg.Storage)
		if err != nil {
			logger.Error("failed to create storage client", "error", err)
		} else {
			initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := storageClient.Init(initCtx); err != nil {
				logger.Error("failed to init storage bucket", "error", err)
				storageClient = nil
			} else {
				archiver = storage.NewArchiver(storageClient, tg)
				logger.Info("photo archive enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
			}
			cancel()
		}
	}

	scheduler, err := scheduling.New(cfg.Scheduling, loc, msgs)
	if err != nil {
		logger.Fatal("failed to create scheduler", "mode", cfg.Scheduling.Mode, "error", err)
	}

	engine := intake.New(intake.Deps{
		Store:     store,
		Messenger: tg,
		Scheduler: scheduler,
		Messages:  msgs,
		Relay:     rel,
		Archiver:  archiver,
		Alerter:   alerter,
		Metrics:   intakeMetrics,
	}, intake.Options{
		MinPhotos:   cfg.Intake.MinPhotos,
		AlbumSettle: cfg.Intake.AlbumSettle,
		PaymentQR:   cfg.Intake.PaymentQR,
		Price:       cfg.Intake.Price,
		MeetingURL:  cfg.Intake.MeetingURL,
		FormURL:     cfg.Intake.FormURL,
	})
	tg.SetHandler(engine)

	routes := server.Config{
		Sessions:       store,
		MetricsHandler: metricsHandler,
	}
	if storageClient != nil {
		routes.Storage = storageClient
	}

	var calendarHook *calendar.Handler
	if cfg.Scheduling.Mode == config.SchedulingCalendar {
		calendarHook = calendar.NewHandler(cfg.Scheduling.WebhookSecret, cfg.Scheduling.ChatParam, loc, engine, rel, intakeMetrics)
		routes.CalendarWebhook = calendarHook
		if cfg.Scheduling.WebhookSecret == "" {
			logger.Warn("calendar webhook accepts unsigned requests", "hint", "set CALENDAR_WEBHOOK_SECRET")
		}
	}
	if cfg.Bot.Mode == config.BotWebhook {
		routes.TelegramWebhook = tg.WebhookHandler()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Run(ctx, ":"+cfg.Port, server.New(routes)); err != nil {
			logger.Fatal("http server failed", "error", err)
		}
	}()

	go func() {
		if err := tg.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("telegram transport failed", "error", err)
		}
	}()

	logger.Info("ari started",
		"mode", cfg.Bot.Mode,
		"scheduling", scheduler.Name(),
		"minPhotos", cfg.Intake.MinPhotos,
		"admins", len(cfg.Operators.AdminChatIDs),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	tg.Wait()
	engine.Close()
	if calendarHook != nil {
		calendarHook.Wait()
	}
	rel.Wait()
	archiver.Wait()

	logger.Info("stopped")
}
