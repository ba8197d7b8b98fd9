package telegram

import (
	"context"
	"fmt"

	"golang-stock-valuation/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier defines the interface for a Telegram notifier.
type Notifier interface {
	SendMessage(text string) error
	SendMessageTo(chatID int64, text string) error
}

// client is an implementation of Notifier.
type client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient creates a new Telegram notifier client.
func NewClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// SendMessage sends a message to the configured Telegram chat.
func (c *client) SendMessage(text string) error {
	return c.SendMessageTo(c.chatID, text)
}

// SendMessageTo sends a message to the given chat.
func (c *client) SendMessageTo(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return err
}

// Sink delivers messages to users through a Notifier. Users are mapped to
// their own chat ids; unmapped users go to the default chat. Without a
// notifier the messages are only logged.
type Sink struct {
	notifier Notifier
	chats    map[string]int64
	logger   *logger.Logger
}

// NewSink creates a sink. notifier may be nil.
func NewSink(notifier Notifier, chats map[string]int64, log *logger.Logger) *Sink {
	if chats == nil {
		chats = map[string]int64{}
	}
	return &Sink{
		notifier: notifier,
		chats:    chats,
		logger:   log,
	}
}

func (s *Sink) Send(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.notifier == nil {
		s.logger.InfoContext(ctx, "Notification", logger.StringField("user_id", userID), logger.StringField("text", text))
		return nil
	}

	var err error
	if chatID, ok := s.chats[userID]; ok {
		err = s.notifier.SendMessageTo(chatID, text)
	} else {
		err = s.notifier.SendMessage(text)
	}
	if err != nil {
		return fmt.Errorf("failed to send telegram message to %s: %w", userID, err)
	}
	return nil
}
