// Package messages holds the patient-facing texts. Defaults are embedded and
// can be overridden field by field from a YAML file.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Catalog struct {
	Welcome       string `yaml:"welcome"`
	AgreeButton   string `yaml:"agree_button"`
	TermsButton   string `yaml:"terms_button"`
	PrivacyButton string `yaml:"privacy_button"`
	Terms         string `yaml:"terms"`
	Privacy       string `yaml:"privacy"`

	ConsentRequired  string `yaml:"consent_required"`
	ComplaintsPrompt string `yaml:"complaints_prompt"`
	FormButton       string `yaml:"form_button"`
	HistoryPrompt    string `yaml:"history_prompt"`
	TextRequired     string `yaml:"text_required"`
	PhotosPrompt     string `yaml:"photos_prompt"`
	PhotoRequired    string `yaml:"photo_required"`
	PhotoReceived    string `yaml:"photo_received"`
	FormReceived     string `yaml:"form_received"`
	FormInvalid      string `yaml:"form_invalid"`

	PaymentCaption   string `yaml:"payment_caption"`
	PaymentFallback  string `yaml:"payment_fallback"`
	PaidButton       string `yaml:"paid_button"`
	PaymentReminder  string `yaml:"payment_reminder"`
	PaymentConfirmed string `yaml:"payment_confirmed"`

	ScheduleSlots          string `yaml:"schedule_slots"`
	OtherTimeButton        string `yaml:"other_time_button"`
	OtherTimePrompt        string `yaml:"other_time_prompt"`
	ScheduleWebApp         string `yaml:"schedule_webapp"`
	ScheduleWebAppButton   string `yaml:"schedule_webapp_button"`
	ScheduleCalendar       string `yaml:"schedule_calendar"`
	ScheduleCalendarButton string `yaml:"schedule_calendar_button"`
	ScheduleInvalid        string `yaml:"schedule_invalid"`
	SlotChosen             string `yaml:"slot_chosen"`
	Confirmation           string `yaml:"confirmation"`
	MeetingLink            string `yaml:"meeting_link"`

	Completed     string `yaml:"completed"`
	YourID        string `yaml:"your_id"`
	InternalError string `yaml:"internal_error"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	var c Catalog
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		panic(fmt.Sprintf("messages: embedded catalog: %v", err))
	}
	return &c
}

// Load returns the defaults overlaid with the keys present in path.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse messages %s: %w", path, err)
	}
	return c, nil
}

// Format replaces {key} placeholders with the given key/value pairs.
func Format(text string, kv ...any) string {
	if len(kv) == 0 {
		return text
	}

	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(kv[i])+"}", fmt.Sprint(kv[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
