package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Notifier forwards pipeline alerts to an operator channel.
type Notifier interface {
	SendAlerts(ctx context.Context, alerts []models.Alert) error
	SendEmergency(ctx context.Context, state models.EmergencyState) error
}

// TelegramNotifier pushes alerts to a single operator chat. A nil receiver
// or missing token degrades to a no-op so the pipeline never depends on
// Telegram being configured.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
	logger *logrus.Logger
}

func NewTelegramNotifier(token, chatID string, logger *logrus.Logger) *TelegramNotifier {
	if token == "" || chatID == "" {
		return nil
	}
	b, err := bot.New(token)
	if err != nil {
		logger.WithError(err).Warn("Telegram bot initialization failed, notifications disabled")
		return nil
	}
	return &TelegramNotifier{bot: b, chatID: chatID, logger: logger}
}

func (n *TelegramNotifier) SendAlerts(ctx context.Context, alerts []models.Alert) error {
	if n == nil || len(alerts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("🚨 *Pipeline Alerts*\n\n")
	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf("%s *%s*: %s\n", severityEmoji(a.Severity), strings.ToUpper(string(a.Severity)), a.Message))
	}

	return n.send(ctx, sb.String())
}

func (n *TelegramNotifier) SendEmergency(ctx context.Context, state models.EmergencyState) error {
	if n == nil || !state.Active {
		return nil
	}
	msg := fmt.Sprintf("🛑 *EMERGENCY STOP*\n\nReason: %s\nTripped: %s\n\nTrading halted until an authorized reset.",
		state.Reason, state.TriggeredAt.Format("2006-01-02 15:04:05 MST"))
	return n.send(ctx, msg)
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		n.logger.WithError(err).Error("Failed to send Telegram notification")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func severityEmoji(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	case models.SeverityMedium:
		return "🟡"
	default:
		return "🔵"
	}
}
