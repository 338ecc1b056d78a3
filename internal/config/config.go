package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSlotSchedules mirrors the clinic's usual evening/midday windows.
var DefaultSlotSchedules = []string{
	"30 18 * * *",
	"0 12 * * *",
	"0 19 * * *",
	"30 11 * * *",
	"0 16 * * *",
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	timezone := os.Getenv("TZ")
	if timezone == "" {
		timezone = "Europe/Moscow"
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", timezone, err)
	}

	botConfig, err := loadBotConfig()
	if err != nil {
		return nil, err
	}

	operatorConfig, err := loadOperatorConfig()
	if err != nil {
		return nil, err
	}

	intakeConfig, err := loadIntakeConfig()
	if err != nil {
		return nil, err
	}

	schedulingConfig, err := loadSchedulingConfig()
	if err != nil {
		return nil, err
	}

	sessionConfig, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:       port,
		Timezone:   timezone,
		Messages:   os.Getenv("MESSAGES_FILE"),
		Bot:        botConfig,
		Operators:  operatorConfig,
		Intake:     intakeConfig,
		Scheduling: schedulingConfig,
		Sessions:   sessionConfig,
		Storage:    loadStorageConfig(),
	}, nil
}

func loadBotConfig() (BotConfig, error) {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		// name used by the first deployments
		token = os.Getenv("BOT_TOKEN")
	}
	if token == "" {
		return BotConfig{}, fmt.Errorf("TELEGRAM_TOKEN not set")
	}

	mode := strings.ToLower(os.Getenv("BOT_MODE"))
	if mode == "" {
		mode = BotPolling
	}

	cfg := BotConfig{
		Token:         token,
		Mode:          mode,
		WebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
		WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
	}

	switch mode {
	case BotPolling:
	case BotWebhook:
		if cfg.WebhookURL == "" {
			return BotConfig{}, fmt.Errorf("TELEGRAM_WEBHOOK_URL required when BOT_MODE=webhook")
		}
	default:
		return BotConfig{}, fmt.Errorf("unknown BOT_MODE: %s", mode)
	}

	return cfg, nil
}

func loadOperatorConfig() (OperatorConfig, error) {
	raw := os.Getenv("ADMIN_CHAT_IDS")
	if raw == "" {
		raw = os.Getenv("ADMIN_ID")
	}

	adminIDs, err := parseChatIDs(raw)
	if err != nil {
		return OperatorConfig{}, fmt.Errorf("invalid ADMIN_CHAT_IDS: %w", err)
	}

	var alertChatID int64
	if v := os.Getenv("ALERT_CHAT_ID"); v != "" {
		alertChatID, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return OperatorConfig{}, fmt.Errorf("invalid ALERT_CHAT_ID: %w", err)
		}
	}

	return OperatorConfig{
		AdminChatIDs:     adminIDs,
		AlertChatID:      alertChatID,
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
	}, nil
}

func loadIntakeConfig() (IntakeConfig, error) {
	price := os.Getenv("CONSULTATION_PRICE")
	if price == "" {
		price = "3000 ₽"
	}

	minPhotos := 3
	if v := os.Getenv("PHOTO_MIN_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return IntakeConfig{}, fmt.Errorf("invalid PHOTO_MIN_COUNT: %q", v)
		}
		minPhotos = n
	}

	settle := 1200 * time.Millisecond
	if v := os.Getenv("ALBUM_SETTLE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return IntakeConfig{}, fmt.Errorf("invalid ALBUM_SETTLE_DELAY: %q", v)
		}
		settle = d
	}

	return IntakeConfig{
		PaymentQR:   os.Getenv("PAYMENT_QR_URL"),
		Price:       price,
		MinPhotos:   minPhotos,
		AlbumSettle: settle,
		MeetingURL:  os.Getenv("MEETING_URL"),
		FormURL:     os.Getenv("FORM_URL"),
	}, nil
}

func loadSchedulingConfig() (SchedulingConfig, error) {
	mode := strings.ToLower(os.Getenv("SCHEDULING_MODE"))
	if mode == "" {
		mode = SchedulingSlots
	}

	schedules := DefaultSlotSchedules
	if v := os.Getenv("SLOT_SCHEDULES"); v != "" {
		schedules = splitList(v, ";")
	}

	slotCount := 5
	if n, err := strconv.Atoi(os.Getenv("SLOT_COUNT")); err == nil && n > 0 {
		slotCount = n
	}

	horizon := 3
	if n, err := strconv.Atoi(os.Getenv("SLOT_HORIZON_DAYS")); err == nil && n > 0 {
		horizon = n
	}

	chatParam := os.Getenv("BOOKING_CHAT_PARAM")
	if chatParam == "" {
		chatParam = "telegram_id"
	}

	cfg := SchedulingConfig{
		Mode:          mode,
		SlotSchedules: schedules,
		SlotCount:     slotCount,
		HorizonDays:   horizon,
		SiteURL:       os.Getenv("SITE_URL"),
		BookingURL:    os.Getenv("BOOKING_URL"),
		ChatParam:     chatParam,
		WebhookSecret: os.Getenv("CALENDAR_WEBHOOK_SECRET"),
	}

	switch mode {
	case SchedulingSlots:
	case SchedulingWebApp:
		if cfg.SiteURL == "" {
			return SchedulingConfig{}, fmt.Errorf("SITE_URL required when SCHEDULING_MODE=webapp")
		}
	case SchedulingCalendar:
		if cfg.BookingURL == "" {
			return SchedulingConfig{}, fmt.Errorf("BOOKING_URL required when SCHEDULING_MODE=calendar")
		}
	default:
		return SchedulingConfig{}, fmt.Errorf("unknown SCHEDULING_MODE: %s", mode)
	}

	return cfg, nil
}

func loadSessionConfig() (SessionConfig, error) {
	backend := strings.ToLower(os.Getenv("SESSION_STORE"))
	if backend == "" {
		backend = StoreMemory
	}

	switch backend {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return SessionConfig{}, fmt.Errorf("unknown SESSION_STORE: %s", backend)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisDB := 0
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		redisDB = n
	}

	dbPath := os.Getenv("SESSION_DB")
	if dbPath == "" {
		dbPath = "ari.db"
	}

	return SessionConfig{
		Backend:       backend,
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SQLitePath:    dbPath,
	}, nil
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "ari-photos"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:    bucket,
	}
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw, ",") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
