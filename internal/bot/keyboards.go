package bot

import (
	"github.com/tbourn/puk-code-service/internal/i18n"
	"github.com/tbourn/puk-code-service/internal/services"
)

// registerKeyboard asks the client to share the user's own contact.
func registerKeyboard(p *i18n.Printer) *services.Keyboard {
	return &services.Keyboard{
		OneTime: true,
		Rows: [][]services.Button{{
			{Text: p.T(i18n.ButtonShareContact), RequestContact: true},
		}},
	}
}

// mainKeyboard offers the new-PUK action to registered users.
func mainKeyboard(p *i18n.Printer) *services.Keyboard {
	return &services.Keyboard{
		Rows: [][]services.Button{{
			{Text: p.T(i18n.ButtonNewPuk)},
		}},
	}
}
