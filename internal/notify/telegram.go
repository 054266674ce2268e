package notify

import (
	"context"
	"errors"
	"fmt"

	"homeservices/internal/config"
	"homeservices/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrNoChannel means the user has not linked a Telegram chat.
var ErrNoChannel = errors.New("user has no notification channel")

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

type TelegramNotifier struct {
	bot    TelegramSender
	users  UserLookup
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot TelegramSender, users UserLookup, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{bot: bot, users: users, logger: logger}
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID, templateKey string, data map[string]string) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup recipient %s: %w", userID, err)
	}
	if user.TelegramChatID == 0 {
		return ErrNoChannel
	}

	text, err := Render(templateKey, data)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, text)
	msg.ParseMode = models.ParseModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %s: %w", userID, err)
	}

	n.logger.Debug().Str("user_id", userID).Str("template", templateKey).Msg("telegram notification sent")
	return nil
}
