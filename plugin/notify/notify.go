// Package notify defines the notification capability used by the
// dispatcher. Implementations are interchangeable: the Telegram sink for
// admin channels, the stub for the not-yet-built dashboard, no-ops in
// tests.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Sink delivers routing notifications to the outside world.
type Sink interface {
	// NotifyChannel sends text to an admin notification channel.
	NotifyChannel(ctx context.Context, chatID int64, text string) error

	// NotifyDashboard posts text to a department dashboard. The dashboard
	// does not exist yet; current implementations record a placeholder.
	NotifyDashboard(ctx context.Context, departmentID int32, text string) error

	// EmergencyAlert raises an out-of-band alert for adversarial input.
	EmergencyAlert(ctx context.Context, text string) error
}

// Notification is one recorded delivery attempt.
type Notification struct {
	Kind         string // channel | dashboard | alert
	ChatID       int64
	DepartmentID int32
	Text         string
}

// StubSink logs every notification and records it in memory. It stands
// in for the dashboard integration and serves as the test double.
type StubSink struct {
	mu   sync.Mutex
	sent []Notification
}

// NewStubSink creates a recording stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

func (s *StubSink) NotifyChannel(ctx context.Context, chatID int64, text string) error {
	s.record(Notification{Kind: "channel", ChatID: chatID, Text: text})
	slog.Info("notify: channel (stub)", "chat_id", chatID, "text_length", len(text))
	return nil
}

func (s *StubSink) NotifyDashboard(ctx context.Context, departmentID int32, text string) error {
	s.record(Notification{Kind: "dashboard", DepartmentID: departmentID, Text: text})
	slog.Info("notify: dashboard (stub)", "department_id", departmentID, "text_length", len(text))
	return nil
}

func (s *StubSink) EmergencyAlert(ctx context.Context, text string) error {
	s.record(Notification{Kind: "alert", Text: text})
	slog.Warn("notify: emergency alert (stub)", "text_length", len(text))
	return nil
}

func (s *StubSink) record(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

// Sent returns a copy of all recorded notifications.
func (s *StubSink) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}
