package config

import "time"

type Config struct {
	Port       string
	Timezone   string
	Messages   string
	Bot        BotConfig
	Operators  OperatorConfig
	Intake     IntakeConfig
	Scheduling SchedulingConfig
	Sessions   SessionConfig
	Storage    StorageConfig
}

type BotConfig struct {
	Token         string
	Mode          string // polling or webhook
	WebhookURL    string
	WebhookSecret string
}

type OperatorConfig struct {
	AdminChatIDs     []int64
	AlertChatID      int64
	DiscordToken     string
	DiscordChannelID string
}

type IntakeConfig struct {
	PaymentQR   string
	Price       string
	MinPhotos   int
	AlbumSettle time.Duration
	MeetingURL  string
	FormURL     string
}

type SchedulingConfig struct {
	Mode          string // slots, webapp or calendar
	SlotSchedules []string
	SlotCount     int
	HorizonDays   int
	SiteURL       string
	BookingURL    string
	ChatParam     string
	WebhookSecret string
}

type SessionConfig struct {
	Backend       string // memory, redis or sqlite
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

const (
	BotPolling = "polling"
	BotWebhook = "webhook"

	SchedulingSlots    = "slots"
	SchedulingWebApp   = "webapp"
	SchedulingCalendar = "calendar"

	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)
