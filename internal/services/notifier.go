package services

import "context"

// Button is one keyboard button. Data is the callback payload of an inline
// button; RequestContact asks the client to share the user's own contact.
type Button struct {
	Text           string
	Data           string
	RequestContact bool
}

// Keyboard is a transport-neutral keyboard attached to an outbound message.
// Inline keyboards are attached to the message itself; reply keyboards
// replace the client's input keyboard.
type Keyboard struct {
	Inline  bool
	Rows    [][]Button
	OneTime bool
}

// Notifier is the single outbound primitive of the chat transport.
// Text is HTML formatted.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *Keyboard) error
}
