package config

import (
	"reflect"
	"testing"
	"time"
)

var configEnv = []string{
	"TELEGRAM_TOKEN", "BOT_TOKEN", "BOT_MODE", "TELEGRAM_WEBHOOK_URL", "TELEGRAM_WEBHOOK_SECRET",
	"ADMIN_CHAT_IDS", "ADMIN_ID", "ALERT_CHAT_ID", "DISCORD_TOKEN", "DISCORD_CHANNEL_ID",
	"PAYMENT_QR_URL", "CONSULTATION_PRICE", "PHOTO_MIN_COUNT", "ALBUM_SETTLE_DELAY", "MEETING_URL",
	"SCHEDULING_MODE", "SLOT_SCHEDULES", "SLOT_COUNT", "SLOT_HORIZON_DAYS", "SITE_URL",
	"BOOKING_URL", "BOOKING_CHAT_PARAM", "CALENDAR_WEBHOOK_SECRET", "MESSAGES_FILE",
	"SESSION_STORE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SESSION_DB",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "MINIO_BUCKET",
	"TZ", "PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("expected port 3000, got %s", cfg.Port)
	}
	if cfg.Bot.Mode != "polling" {
		t.Errorf("expected polling mode, got %s", cfg.Bot.Mode)
	}
	if cfg.Intake.MinPhotos != 3 {
		t.Errorf("expected threshold 3, got %d", cfg.Intake.MinPhotos)
	}
	if cfg.Intake.AlbumSettle != 1200*time.Millisecond {
		t.Errorf("expected 1.2s settle delay, got %s", cfg.Intake.AlbumSettle)
	}
	if cfg.Scheduling.Mode != "slots" || cfg.Scheduling.SlotCount != 5 || cfg.Scheduling.HorizonDays != 3 {
		t.Errorf("unexpected scheduling defaults: %+v", cfg.Scheduling)
	}
	if !reflect.DeepEqual(cfg.Scheduling.SlotSchedules, DefaultSlotSchedules) {
		t.Errorf("unexpected slot schedules: %v", cfg.Scheduling.SlotSchedules)
	}
	if cfg.Sessions.Backend != "memory" {
		t.Errorf("expected memory sessions, got %s", cfg.Sessions.Backend)
	}
	if cfg.Storage.Enabled {
		t.Error("storage should be disabled without credentials")
	}
	if cfg.Timezone != "Europe/Moscow" {
		t.Errorf("unexpected timezone %s", cfg.Timezone)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestLoadLegacyNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:legacy")
	t.Setenv("ADMIN_ID", "777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bot.Token != "123:legacy" {
		t.Errorf("expected legacy token, got %s", cfg.Bot.Token)
	}
	if !reflect.DeepEqual(cfg.Operators.AdminChatIDs, []int64{777}) {
		t.Errorf("expected admin 777, got %v", cfg.Operators.AdminChatIDs)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ADMIN_CHAT_IDS", "1, -1002003004005")
	t.Setenv("PHOTO_MIN_COUNT", "5")
	t.Setenv("ALBUM_SETTLE_DELAY", "2s")
	t.Setenv("SCHEDULING_MODE", "calendar")
	t.Setenv("BOOKING_URL", "https://cal.example.com/ari/consult")
	t.Setenv("SLOT_SCHEDULES", "0 10 * * *; 0 15 * * *")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.Operators.AdminChatIDs, []int64{1, -1002003004005}) {
		t.Errorf("unexpected admin ids: %v", cfg.Operators.AdminChatIDs)
	}
	if cfg.Intake.MinPhotos != 5 || cfg.Intake.AlbumSettle != 2*time.Second {
		t.Errorf("unexpected intake config: %+v", cfg.Intake)
	}
	if cfg.Scheduling.Mode != "calendar" || cfg.Scheduling.ChatParam != "telegram_id" {
		t.Errorf("unexpected scheduling config: %+v", cfg.Scheduling)
	}
	if !reflect.DeepEqual(cfg.Scheduling.SlotSchedules, []string{"0 10 * * *", "0 15 * * *"}) {
		t.Errorf("unexpected schedules: %v", cfg.Scheduling.SlotSchedules)
	}
	if cfg.Sessions.Backend != "redis" || cfg.Sessions.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected session config: %+v", cfg.Sessions)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Bucket != "ari-photos" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad threshold", "PHOTO_MIN_COUNT", "zero"},
		{"negative threshold", "PHOTO_MIN_COUNT", "0"},
		{"bad settle delay", "ALBUM_SETTLE_DELAY", "soon"},
		{"bad admin id", "ADMIN_CHAT_IDS", "12,abc"},
		{"unknown mode", "SCHEDULING_MODE", "fax"},
		{"webapp without site", "SCHEDULING_MODE", "webapp"},
		{"unknown store", "SESSION_STORE", "etcd"},
		{"webhook without url", "BOT_MODE", "webhook"},
		{"bad timezone", "TZ", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TELEGRAM_TOKEN", "123:abc")
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
