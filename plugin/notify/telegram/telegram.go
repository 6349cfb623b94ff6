// Package telegram implements the notification sink on the Telegram Bot
// API. Admin fan-out and emergency alerts go through it; the dashboard
// call stays a recorded placeholder until a dashboard exists.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	// Telegram allows ~30 messages/second per bot; stay under it so an
	// admin fan-out burst never trips the API limiter.
	sendRatePerSecond = 20
	sendBurst         = 5
)

// Config holds configuration for the Telegram sink.
type Config struct {
	BotToken string
	// AlertChatID receives emergency alerts. Zero disables alert delivery
	// (alerts are still logged).
	AlertChatID int64
}

// Sink delivers notifications via a Telegram bot.
type Sink struct {
	bot     *tgbotapi.BotAPI
	config  *Config
	limiter *rate.Limiter
}

// NewSink creates a Telegram notification sink.
func NewSink(config *Config) (*Sink, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Sink{
		bot:     bot,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(sendRatePerSecond), sendBurst),
	}, nil
}

func (s *Sink) NotifyChannel(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message to %d: %w", chatID, err)
	}
	return nil
}

// NotifyDashboard records a placeholder. There is no dashboard backend
// yet; this is the extension point for it.
func (s *Sink) NotifyDashboard(ctx context.Context, departmentID int32, text string) error {
	slog.Info("notify: dashboard placeholder", "department_id", departmentID, "text_length", len(text))
	return nil
}

func (s *Sink) EmergencyAlert(ctx context.Context, text string) error {
	if s.config.AlertChatID == 0 {
		slog.Warn("notify: emergency alert (no alert chat configured)", "text_length", len(text))
		return nil
	}
	return s.NotifyChannel(ctx, s.config.AlertChatID, "🚨 "+text)
}
