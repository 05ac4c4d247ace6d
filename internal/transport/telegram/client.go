// Package telegram adapts the Telegram Bot API to the chat boundary: it sends
// messages and callback answers for the bot and pumps long-polled updates
// into the dispatcher as transport-neutral events.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/puk-code-service/internal/bot"
	"github.com/tbourn/puk-code-service/internal/services"
)

// DispatchFunc receives converted events.
type DispatchFunc func(ctx context.Context, ev bot.Event) error

// Client is a Telegram transport.
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout time.Duration
}

// New connects to the public Bot API and verifies the token with getMe.
func New(token string, pollTimeout time.Duration) (*Client, error) {
	hc := &http.Client{Timeout: pollTimeout + 15*time.Second}
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, hc, pollTimeout)
}

// NewWithEndpoint is New against a custom endpoint format
// ("https://host/bot%s/%s") and HTTP client.
func NewWithEndpoint(token, endpoint string, hc tgbotapi.HTTPClient, pollTimeout time.Duration) (*Client, error) {
	_ = tgbotapi.SetLogger(zerologAdapter{})
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Client{api: api, pollTimeout: pollTimeout}, nil
}

// Username returns the bot's username as reported by getMe.
func (c *Client) Username() string { return c.api.Self.UserName }

// SendMessage implements services.Notifier. Texts are sent in HTML mode.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *services.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = markup(kb)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// AnswerCallback implements bot.CallbackAnswerer.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram answer callback: %w", err)
	}
	return nil
}

// Run drops updates queued while the bot was offline, then long-polls and
// hands every supported update to dispatch until ctx is cancelled.
func (c *Client) Run(ctx context.Context, dispatch DispatchFunc) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("telegram delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(c.pollTimeout / time.Second)
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := c.api.GetUpdatesChan(u)
	log.Info().Str("bot", c.api.Self.UserName).Msg("bot is polling")

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := ToEvent(upd)
			if !ok {
				continue
			}
			if err := dispatch(ctx, ev); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Int64("user_id", ev.UserID).Msg("dispatch failed")
			}
		}
	}
}

// ToEvent converts an update into a bot event. Unsupported updates return
// false.
func ToEvent(upd tgbotapi.Update) (bot.Event, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.From == nil {
			return bot.Event{}, false
		}
		ev := bot.Event{
			Kind:         bot.KindCallback,
			UserID:       cq.From.ID,
			ChatID:       cq.From.ID,
			FirstName:    cq.From.FirstName,
			LastName:     cq.From.LastName,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
		}
		return ev, true
	}

	m := upd.Message
	if m == nil || m.From == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		UserID:    m.From.ID,
		ChatID:    m.From.ID,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}
	if m.Chat != nil {
		ev.ChatID = m.Chat.ID
	}
	switch {
	case m.Contact != nil:
		ev.Kind = bot.KindContact
		ev.Contact = &bot.Contact{
			UserID:    m.Contact.UserID,
			FirstName: m.Contact.FirstName,
			LastName:  m.Contact.LastName,
			Phone:     m.Contact.PhoneNumber,
		}
	case m.Text != "":
		ev.Kind = bot.KindText
		ev.Text = m.Text
	default:
		return bot.Event{}, false
	}
	return ev, true
}

// markup converts a neutral keyboard into Bot API reply markup.
func markup(kb *services.Keyboard) any {
	if kb.Inline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, b := range r {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, row)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, b := range r {
			if b.RequestContact {
				row = append(row, tgbotapi.NewKeyboardButtonContact(b.Text))
			} else {
				row = append(row, tgbotapi.NewKeyboardButton(b.Text))
			}
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewReplyKeyboard(rows...)
	m.OneTimeKeyboard = kb.OneTime
	return m
}

// zerologAdapter routes the Bot API library's log lines to zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Println(v ...interface{}) {
	log.Warn().Str("component", "telegram").Msg(fmt.Sprint(v...))
}

func (zerologAdapter) Printf(format string, v ...interface{}) {
	log.Warn().Str("component", "telegram").Msgf(format, v...)
}
