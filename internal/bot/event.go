package bot

// EventKind classifies inbound chat events.
type EventKind string

const (
	KindText     EventKind = "text"
	KindContact  EventKind = "contact"
	KindCallback EventKind = "callback"
)

// Contact is a shared phone contact. UserID is the platform id of the person
// the contact belongs to, zero when the contact is not a platform user.
type Contact struct {
	UserID    int64
	FirstName string
	LastName  string
	Phone     string
}

// Event is one transport-neutral inbound update.
type Event struct {
	Kind      EventKind
	UserID    int64 // sender
	ChatID    int64
	FirstName string
	LastName  string

	Text    string
	Contact *Contact

	CallbackID   string
	CallbackData string
}
