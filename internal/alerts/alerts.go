// Package alerts forwards internal failures to an operator chat, throttled per
// component and reason.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/logger"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

type SendFunc func(text string) error

type Alerter struct {
	mu       sync.Mutex
	send     SendFunc
	lastSent map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// New returns an Alerter. A nil send disables alerting.
func New(send SendFunc, cooldown time.Duration) *Alerter {
	return &Alerter{
		send:     send,
		lastSent: make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Alert reports whether the message was handed to send.
func (a *Alerter) Alert(severity Severity, component, reason string, err error) bool {
	if a == nil || a.send == nil {
		return false
	}

	key := component + ":" + reason

	a.mu.Lock()
	if last, ok := a.lastSent[key]; ok && a.now().Sub(last) < a.cooldown {
		a.mu.Unlock()
		logger.Debug("alert suppressed (cooldown)", "component", component, "reason", reason)
		return false
	}
	a.lastSent[key] = a.now()
	a.mu.Unlock()

	text := format(severity, component, reason, err)
	if sendErr := a.send(text); sendErr != nil {
		logger.Error("failed to send alert", "component", component, "error", sendErr)
		return false
	}

	logger.Info("alert sent", "component", component, "severity", severity)
	return true
}

func (a *Alerter) Critical(component, reason string, err error) bool {
	return a.Alert(SeverityCritical, component, reason, err)
}

func (a *Alerter) Warn(component, reason string, err error) bool {
	return a.Alert(SeverityWarn, component, reason, err)
}

func format(severity Severity, component, reason string, err error) string {
	var text string
	switch severity {
	case SeverityCritical:
		text = fmt.Sprintf("🚨 %s: %s", component, reason)
	case SeverityWarn:
		text = fmt.Sprintf("⚠️ %s: %s", component, reason)
	default:
		text = fmt.Sprintf("ℹ️ %s: %s", component, reason)
	}

	if err != nil {
		text += fmt.Sprintf("\n\nError: %v", err)
	}
	return text
}
