// Package bot is the chat boundary. It turns inbound chat events into calls
// on the request lifecycle, the approval gateway and the user directory, and
// converts their results into localized replies.
//
// Entry points return an error only when a reply could not be delivered.
// Domain failures are answered with user-facing text.
package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/puk-code-service/internal/app"
	"github.com/tbourn/puk-code-service/internal/dialog"
	"github.com/tbourn/puk-code-service/internal/i18n"
	"github.com/tbourn/puk-code-service/internal/observability"
	"github.com/tbourn/puk-code-service/internal/services"
)

// Commands understood by the bot.
const (
	CommandStart    = "start"
	CommandSearch   = "search"
	CommandSearchRU = "поиск"
)

// pukTextRE is the loose shape of a VIN_NUMBER submission. Strict validation
// happens in the lifecycle engine after the VIN is uppercased.
var pukTextRE = regexp.MustCompile(`^[A-Za-z0-9]+_[0-9]+$`)

// CallbackAnswerer acknowledges an inline button press with a short notice.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Bot holds the collaborators of the chat entry points.
type Bot struct {
	Users    *services.UserService
	Requests *services.RequestService
	Gateway  *services.Gateway
	Dialog   dialog.Store
	Notifier services.Notifier
	Answerer CallbackAnswerer
	Text     *i18n.Printer
	AdminID  int64
}

// New builds a Bot from the application context.
func New(a *app.App, ans CallbackAnswerer) *Bot {
	return &Bot{
		Users:    a.Users,
		Requests: a.Requests,
		Gateway:  a.Gateway,
		Dialog:   a.Dialog,
		Notifier: a.Notifier,
		Answerer: ans,
		Text:     a.Text,
		AdminID:  a.Config.Bot.AdminID,
	}
}

// Handle routes one event to its entry point. It is the dispatcher's handler.
func (b *Bot) Handle(ctx context.Context, ev Event) {
	observability.UpdatesTotal.WithLabelValues(string(ev.Kind)).Inc()

	var err error
	switch ev.Kind {
	case KindContact:
		if ev.Contact != nil {
			err = b.OnContactShared(ctx, ev.UserID, ev.ChatID, ev.FirstName, ev.LastName, *ev.Contact)
		}
	case KindCallback:
		err = b.OnAdminDecision(ctx, ev.UserID, ev.CallbackID, ev.CallbackData)
	case KindText:
		switch cmd, ok := command(ev.Text); {
		case ok && cmd == CommandStart:
			err = b.OnStart(ctx, ev.UserID, ev.ChatID)
		case ok && (cmd == CommandSearch || cmd == CommandSearchRU) && b.isAdmin(ev.UserID):
			err = b.OnAdminSearchCommand(ctx, ev.UserID, ev.ChatID)
		default:
			err = b.OnText(ctx, ev.UserID, ev.ChatID, ev.Text)
		}
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", ev.UserID).Str("kind", string(ev.Kind)).Msg("chat reply failed")
	}
}

// OnStart greets the user and asks unregistered users for their contact.
func (b *Bot) OnStart(ctx context.Context, userID, chatID int64) error {
	_ = b.Dialog.Clear(ctx, userID)

	ok, err := b.Users.IsRegistered(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("registration check failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}
	if ok {
		return b.send(ctx, chatID, i18n.StartRegistered, mainKeyboard(b.Text))
	}
	if err := b.send(ctx, chatID, i18n.StartWelcome, nil); err != nil {
		return err
	}
	return b.send(ctx, chatID, i18n.StartShareContact, registerKeyboard(b.Text))
}

// OnContactShared registers the sender. The contact must be the sender's own.
func (b *Bot) OnContactShared(ctx context.Context, userID, chatID int64, firstName, lastName string, c Contact) error {
	if c.UserID != userID {
		return b.send(ctx, chatID, i18n.ContactNotOwn, registerKeyboard(b.Text))
	}
	u, err := b.Users.Register(ctx, userID, firstName, lastName, c.Phone)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("register failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}
	log.Info().Int64("user_id", userID).Msg("user registered")
	name := i18n.Escape(strings.TrimSpace(u.FirstName + " " + u.LastName))
	return b.send(ctx, chatID, i18n.Registered, mainKeyboard(b.Text), name, i18n.Escape(u.Phone))
}

// OnNewPukPressed prompts a registered user for a VIN_NUMBER submission.
func (b *Bot) OnNewPukPressed(ctx context.Context, userID, chatID int64) error {
	ok, err := b.Users.IsRegistered(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("registration check failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}
	if !ok {
		return b.send(ctx, chatID, i18n.RegisterFirst, registerKeyboard(b.Text))
	}
	if err := b.Dialog.Set(ctx, userID, dialog.AwaitingPuk); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("dialog state not saved")
	}
	return b.send(ctx, chatID, i18n.AskPuk, nil)
}

// OnPukTextSubmitted parses raw as VIN_NUMBER, submits the request and
// notifies the administrator.
func (b *Bot) OnPukTextSubmitted(ctx context.Context, userID, chatID int64, raw string) error {
	vin, number, ok := strings.Cut(strings.TrimSpace(raw), "_")
	if !ok {
		return b.send(ctx, chatID, i18n.InvalidPuk, nil)
	}

	ack, err := b.Requests.Submit(ctx, userID, vin, number)
	lg := log.With().Int64("user_id", userID).Str("vin", strings.ToUpper(vin)).Logger()
	observability.SubmissionsTotal.WithLabelValues(submitOutcome(err)).Inc()
	switch {
	case err == nil:
	case errors.Is(err, services.ErrValidation):
		return b.send(ctx, chatID, i18n.InvalidPuk, nil)
	case errors.Is(err, services.ErrDuplicateRequest):
		_ = b.Dialog.Clear(ctx, userID)
		return b.send(ctx, chatID, i18n.AlreadyPending, mainKeyboard(b.Text))
	case errors.Is(err, services.ErrNotRegistered):
		_ = b.Dialog.Clear(ctx, userID)
		return b.send(ctx, chatID, i18n.RegisterFirst, registerKeyboard(b.Text))
	default:
		lg.Error().Err(err).Msg("submit failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}

	_ = b.Dialog.Clear(ctx, userID)
	lg.Info().Msg("request submitted")
	if err := b.send(ctx, chatID, i18n.WaitAdmin, mainKeyboard(b.Text)); err != nil {
		return err
	}
	if err := b.Gateway.NotifyAdmin(ctx, *ack); err != nil {
		lg.Error().Err(err).Msg("admin notification failed")
	}
	return nil
}

// OnAdminDecision applies an approve or reject token and answers the button
// press. Tokens from anyone but the administrator are refused.
func (b *Bot) OnAdminDecision(ctx context.Context, senderID int64, callbackID, token string) error {
	if !b.isAdmin(senderID) {
		log.Warn().Int64("user_id", senderID).Msg("decision from non-admin refused")
		return b.answer(ctx, callbackID, b.Text.T(i18n.AckForbidden))
	}
	res := b.Gateway.HandleDecision(ctx, token)
	return b.answer(ctx, callbackID, res.AdminAck)
}

// OnAdminSearchCommand opens a search prompt for the administrator.
func (b *Bot) OnAdminSearchCommand(ctx context.Context, userID, chatID int64) error {
	if err := b.Dialog.Set(ctx, userID, dialog.AwaitingSearch); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("dialog state not saved")
	}
	return b.send(ctx, chatID, i18n.SearchPrompt, nil)
}

// OnSearchQuery answers an admin search with one card per matching user.
func (b *Bot) OnSearchQuery(ctx context.Context, userID, chatID int64, query string) error {
	_ = b.Dialog.Clear(ctx, userID)

	hits, err := b.Users.Search(ctx, query)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return b.send(ctx, chatID, i18n.SearchNotFound, nil)
	case err != nil:
		log.Error().Err(err).Msg("user search failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}
	for _, h := range hits {
		if err := b.Notifier.SendMessage(ctx, chatID, b.userCard(h), nil); err != nil {
			return err
		}
	}
	return nil
}

// OnText routes free text by button label, dialog state and shape.
func (b *Bot) OnText(ctx context.Context, userID, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == b.Text.T(i18n.ButtonNewPuk) {
		return b.OnNewPukPressed(ctx, userID, chatID)
	}

	st, err := b.Dialog.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("dialog state unavailable")
		st = dialog.Idle
	}
	switch {
	case st == dialog.AwaitingSearch && b.isAdmin(userID):
		return b.OnSearchQuery(ctx, userID, chatID, text)
	case st == dialog.AwaitingPuk || pukTextRE.MatchString(text):
		return b.OnPukTextSubmitted(ctx, userID, chatID, text)
	}

	ok, err := b.Users.IsRegistered(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("registration check failed")
		return b.send(ctx, chatID, i18n.GenericError, nil)
	}
	if !ok {
		return b.send(ctx, chatID, i18n.RegisterFirst, registerKeyboard(b.Text))
	}
	return b.send(ctx, chatID, i18n.AskPuk, mainKeyboard(b.Text))
}

func (b *Bot) userCard(h services.UserHit) string {
	var vinInfo string
	if len(h.Approved) == 0 {
		vinInfo = b.Text.T(i18n.SearchNoVINs)
	} else {
		lines := make([]string, 0, len(h.Approved))
		for _, v := range h.Approved {
			lines = append(lines, b.Text.T(i18n.SearchVINLine, i18n.Escape(v.VIN), i18n.Escape(v.CreatedAt)))
		}
		vinInfo = b.Text.T(i18n.SearchVINs, len(h.Approved), strings.Join(lines, "\n"))
	}
	name := strings.TrimSpace(h.User.FirstName + " " + h.User.LastName)
	return b.Text.T(i18n.SearchUserCard, i18n.Escape(name), i18n.Escape(h.User.Phone), h.User.UserID, vinInfo)
}

func (b *Bot) send(ctx context.Context, chatID int64, key string, kb *services.Keyboard, args ...any) error {
	return b.Notifier.SendMessage(ctx, chatID, b.Text.T(key, args...), kb)
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) error {
	if b.Answerer == nil || callbackID == "" {
		return nil
	}
	return b.Answerer.AnswerCallback(ctx, callbackID, text)
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.AdminID != 0 && userID == b.AdminID
}

// command extracts the command name from "/name@bot args".
func command(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), name != ""
}

func submitOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, services.ErrValidation):
		return observability.OutcomeInvalid
	case errors.Is(err, services.ErrDuplicateRequest):
		return observability.OutcomeDuplicate
	}
	return observability.OutcomeError
}
