package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

// Notifier announces finished analysis runs.
type Notifier interface {
	NotifyAnalysis(ctx context.Context, result models.AnalysisResult) error
}

// NoopNotifier drops every notification.
type NoopNotifier struct{}

func (NoopNotifier) NotifyAnalysis(context.Context, models.AnalysisResult) error { return nil }

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// NotificationService posts the daily index report to a Telegram chat.
type NotificationService struct {
	sender messageSender
	chatID interface{}
	logger *logrus.Logger
}

// NewNotificationService returns a Telegram notifier, or a NoopNotifier when
// either the token or the chat is not configured.
func NewNotificationService(botToken, chatID string, logger *logrus.Logger) (Notifier, error) {
	if botToken == "" || chatID == "" {
		logger.Info("Telegram notifications disabled")
		return NoopNotifier{}, nil
	}

	b, err := bot.New(botToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newNotificationService(b, chatID, logger), nil
}

func newNotificationService(sender messageSender, chatID string, logger *logrus.Logger) *NotificationService {
	var chat interface{} = chatID
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		chat = id
	}
	return &NotificationService{sender: sender, chatID: chat, logger: logger}
}

// NotifyAnalysis sends the index, grade, recommendation and top keywords.
func (ns *NotificationService) NotifyAnalysis(ctx context.Context, result models.AnalysisResult) error {
	_, err := ns.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    ns.chatID,
		Text:      FormatAnalysisMessage(result),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send analysis report: %w", err)
	}

	ns.logger.WithFields(logrus.Fields{
		"date":  result.Date,
		"index": result.InvestmentIndex,
	}).Info("Analysis report sent")
	return nil
}

// FormatAnalysisMessage renders result as a MarkdownV2 message.
func FormatAnalysisMessage(result models.AnalysisResult) string {
	var b strings.Builder
	title := "Investment index"
	if result.Category == models.CategoryCrypto {
		title = "Crypto investment index"
	}
	fmt.Fprintf(&b, "*%s %s*\n\n", title, bot.EscapeMarkdown(string(result.Date)))
	fmt.Fprintf(&b, "Index: *%s* \\(%s\\)\n",
		bot.EscapeMarkdown(strconv.FormatFloat(result.InvestmentIndex, 'f', 1, 64)),
		bot.EscapeMarkdown(result.Grade))
	fmt.Fprintf(&b, "Recommendation: %s\n", bot.EscapeMarkdown(result.Recommendation))
	fmt.Fprintf(&b, "Articles: %d \\(%d positive, %d negative, %d neutral\\)\n",
		result.TotalArticles, result.Summary.Positive, result.Summary.Negative, result.Summary.Neutral)
	if len(result.TopKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", bot.EscapeMarkdown(strings.Join(result.TopKeywords, ", ")))
	}
	return b.String()
}
