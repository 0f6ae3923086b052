package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/config"
	"github.com/campusdesk/ticket-engine/internal/domain"
)

// ChatSender posts a notification to the campus chat thread for a ticket.
// Implementations are black boxes; the wire format is out of scope. Callers
// must tolerate duplicate delivery.
type ChatSender interface {
	PostToThread(ctx context.Context, event domain.OutboxEvent) error
}

// EmailSender delivers a notification email for a ticket event.
type EmailSender interface {
	SendMail(ctx context.Context, event domain.OutboxEvent) error
}

// chatStub logs what would be posted to the configured webhook.
type chatStub struct {
	cfg    config.NotifyConfig
	logger *zap.Logger
}

// NewChatSender builds the stub chat collaborator.
func NewChatSender(cfg config.NotifyConfig, logger *zap.Logger) ChatSender {
	return &chatStub{cfg: cfg, logger: logger}
}

func (s *chatStub) PostToThread(ctx context.Context, event domain.OutboxEvent) error {
	if strings.TrimSpace(s.cfg.ChatWebhookURL) == "" {
		s.logger.Debug("chat webhook not configured; dropping post",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.EventType)))
		return nil
	}
	s.logger.Info("chat post",
		zap.String("url", s.cfg.ChatWebhookURL),
		zap.String("ticket_id", event.TicketID()),
		zap.String("event_type", string(event.EventType)))
	return nil
}

// emailStub logs what would be mailed from the configured sender address.
type emailStub struct {
	cfg    config.NotifyConfig
	logger *zap.Logger
}

// NewEmailSender builds the stub email collaborator.
func NewEmailSender(cfg config.NotifyConfig, logger *zap.Logger) EmailSender {
	return &emailStub{cfg: cfg, logger: logger}
}

func (s *emailStub) SendMail(ctx context.Context, event domain.OutboxEvent) error {
	if strings.TrimSpace(s.cfg.EmailFrom) == "" {
		s.logger.Debug("email sender not configured; dropping mail",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.EventType)))
		return nil
	}
	s.logger.Info("email send",
		zap.String("from", s.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID()),
		zap.String("event_type", string(event.EventType)))
	return nil
}
