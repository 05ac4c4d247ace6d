// Package i18n holds the chat message catalog. Messages are looked up by key
// and formatted with golang.org/x/text/message for the configured language.
//
// All texts are HTML-safe templates; callers escape user-supplied arguments
// with Escape before formatting.
package i18n

import (
	"html"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	StartRegistered   = "start.registered"
	StartWelcome      = "start.welcome"
	StartShareContact = "start.share_contact"
	ContactNotOwn     = "contact.not_own"
	Registered        = "contact.registered"
	RegisterFirst     = "register_first"

	AskPuk         = "puk.ask"
	InvalidPuk     = "puk.invalid"
	WaitAdmin      = "puk.wait_admin"
	AlreadyPending = "puk.already_pending"
	GenericError   = "error.generic"

	AdminNewRequest = "admin.new_request"
	UserCode        = "user.code"
	UserRejected    = "user.rejected"

	AckCodeSent     = "ack.code_sent"
	AckRejected     = "ack.rejected"
	AckResolved     = "ack.already_resolved"
	AckMalformed    = "ack.malformed"
	AckFailed       = "ack.failed"
	AckNotifyFailed = "ack.notify_failed"
	AckForbidden    = "ack.forbidden"

	SearchPrompt   = "search.prompt"
	SearchNotFound = "search.not_found"
	SearchNoVINs   = "search.no_vins"
	SearchVINs     = "search.vins"
	SearchVINLine  = "search.vin_line"
	SearchUserCard = "search.user_card"

	ButtonShareContact = "button.share_contact"
	ButtonNewPuk       = "button.new_puk"
	ButtonApprove      = "button.approve"
	ButtonReject       = "button.reject"
)

var russian = map[string]string{
	StartRegistered:   "✅ Вы уже зарегистрированы!",
	StartWelcome:      "👋 Добро пожаловать!\n\nЧтобы использовать бота, необходимо пройти простую регистрацию.",
	StartShareContact: "📲 Пожалуйста, нажмите на кнопку ниже, чтобы отправить свой номер телефона.",
	ContactNotOwn:     "❗️Пожалуйста, отправьте <b>свой собственный</b> контакт с помощью кнопки.",
	Registered:        "🎉 Регистрация прошла успешно!\n\n👤 Имя: %s\n📞 Телефон: %s",
	RegisterFirst:     "❗️Сначала зарегистрируйтесь.",

	AskPuk:         "Введите ПУК (формат: VIN_номер)",
	InvalidPuk:     "❗️Неверный формат. Введите ПУК в формате VIN_номер, например ABC123_4567.",
	WaitAdmin:      "⏳ Пожалуйста, подождите, пока админ подтвердит вашу заявку.",
	AlreadyPending: "⏳ У вас уже есть заявка на рассмотрении. Дождитесь решения админа.",
	GenericError:   "⚠️ Не удалось выполнить операцию. Попробуйте позже.",

	AdminNewRequest: "🔔 Новый запрос на код!\n👤 Пользователь: %s\n🆔 ID: %d\n🚘 VIN: %s\n🔢 Номер: %s",
	UserCode:        "✅ Ваш код: <code>%s</code>\nПожалуйста, введите его в приложении.",
	UserRejected:    "❌ Ваша заявка была отклонена админом.",

	AckCodeSent:     "Код отправлен пользователю",
	AckRejected:     "Заявка отклонена",
	AckResolved:     "Заявка уже обработана",
	AckMalformed:    "Некорректное действие",
	AckFailed:       "Ошибка обработки заявки",
	AckNotifyFailed: "Решение сохранено, но пользователь не уведомлён",
	AckForbidden:    "Недостаточно прав",

	SearchPrompt:   "🔍 Введите имя, фамилию, номер телефона или ID пользователя для поиска:",
	SearchNotFound: "❌ Пользователь не найден.",
	SearchNoVINs:   "У этого пользователя нет подтвержденных VIN-кодов.",
	SearchVINs:     "Этот пользователь имеет %d VIN-кодов со статусом ✅ 'approved':\n\n%s",
	SearchVINLine:  "✅ VIN: <code>%s</code> | 📅 Дата: %s",
	SearchUserCard: "👤 <b>%s</b>\n📞 Телефон: <code>%s</code>\n🆔 ID: <code>%d</code>\n\n%s",

	ButtonShareContact: "📱 Отправить контакт",
	ButtonNewPuk:       "ПУК новый",
	ButtonApprove:      "✅ Одобрить",
	ButtonReject:       "❌ Отклонить",
}

var english = map[string]string{
	StartRegistered:   "✅ You are already registered!",
	StartWelcome:      "👋 Welcome!\n\nTo use the bot, please complete a short registration.",
	StartShareContact: "📲 Please press the button below to share your phone number.",
	ContactNotOwn:     "❗️Please share <b>your own</b> contact using the button.",
	Registered:        "🎉 Registration complete!\n\n👤 Name: %s\n📞 Phone: %s",
	RegisterFirst:     "❗️Please register first.",

	AskPuk:         "Enter the PUK (format: VIN_number)",
	InvalidPuk:     "❗️Invalid format. Enter the PUK as VIN_number, for example ABC123_4567.",
	WaitAdmin:      "⏳ Please wait while the administrator reviews your request.",
	AlreadyPending: "⏳ You already have a request under review. Please wait for the decision.",
	GenericError:   "⚠️ The operation failed. Please try again later.",

	AdminNewRequest: "🔔 New code request!\n👤 User: %s\n🆔 ID: %d\n🚘 VIN: %s\n🔢 Number: %s",
	UserCode:        "✅ Your code: <code>%s</code>\nPlease enter it in the app.",
	UserRejected:    "❌ Your request was rejected by the administrator.",

	AckCodeSent:     "Code sent to the user",
	AckRejected:     "Request rejected",
	AckResolved:     "Request already handled",
	AckMalformed:    "Malformed action",
	AckFailed:       "Failed to process the request",
	AckNotifyFailed: "Decision saved but the user was not notified",
	AckForbidden:    "Not allowed",

	SearchPrompt:   "🔍 Enter a first name, last name, phone number or user ID to search:",
	SearchNotFound: "❌ User not found.",
	SearchNoVINs:   "This user has no approved VINs.",
	SearchVINs:     "This user has %d VINs with status ✅ 'approved':\n\n%s",
	SearchVINLine:  "✅ VIN: <code>%s</code> | 📅 Date: %s",
	SearchUserCard: "👤 <b>%s</b>\n📞 Phone: <code>%s</code>\n🆔 ID: <code>%d</code>\n\n%s",

	ButtonShareContact: "📱 Share contact",
	ButtonNewPuk:       "New PUK",
	ButtonApprove:      "✅ Approve",
	ButtonReject:       "❌ Reject",
}

var cat = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Russian))
	for _, tr := range []struct {
		tag  language.Tag
		msgs map[string]string
	}{
		{language.Russian, russian},
		{language.English, english},
	} {
		for k, v := range tr.msgs {
			if err := b.SetString(tr.tag, k, v); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Printer formats catalog messages for one language.
type Printer struct {
	p *message.Printer
}

// New returns a Printer for lang ("ru" or "en"). Unknown languages fall back
// to Russian.
func New(lang string) *Printer {
	tag := language.Russian
	if t, err := language.Parse(lang); err == nil {
		if base, _ := t.Base(); base.String() == "en" {
			tag = language.English
		}
	}
	return &Printer{p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T formats the message stored under key with args.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Escape makes user-supplied text safe for HTML-formatted messages.
func Escape(s string) string {
	return html.EscapeString(s)
}
