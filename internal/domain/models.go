// Package domain defines the persistence models for users, code requests and
// issued codes. These types are mapped with GORM and shared by the repository
// and service layers.
package domain

import "time"

// Request statuses. A rejected request is deleted rather than tagged.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// TimeLayout is the ISO-8601 layout used for every persisted timestamp. The
// fixed fractional width keeps values lexicographically sortable.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// User is a chat-platform identity that shared its contact.
//
// Fields:
//   - UserID: opaque numeric id assigned by the chat platform (primary key).
//   - FirstName / LastName: display name parts, may be empty.
//   - Phone: contact phone as delivered by the platform.
//
// Requests and Codes declare the foreign keys held by the child tables; they
// are never preloaded by the repository.
type User struct {
	UserID    int64  `json:"user_id"    gorm:"column:user_id;primaryKey;autoIncrement:false"`
	FirstName string `json:"first_name" gorm:"type:text"`
	LastName  string `json:"last_name"  gorm:"type:text"`
	Phone     string `json:"phone"      gorm:"type:text"`

	Requests []Request `json:"-" gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Codes    []Code    `json:"-" gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Request is a user's claim for a code tied to a (VIN, number) pair.
// At most one pending request per user exists at a time; the partial unique
// index backing that rule is created by repo.AutoMigrate.
type Request struct {
	ID        uint   `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    int64  `json:"user_id"    gorm:"not null;index"`
	VIN       string `json:"vin"        gorm:"column:vin;type:text;not null;index:idx_requests_vin_number,priority:1"`
	Number    string `json:"number"     gorm:"type:text;not null;index:idx_requests_vin_number,priority:2"`
	Status    string `json:"status"     gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt string `json:"created_at" gorm:"type:text;not null;autoCreateTime:false"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "requests" }

// Code is an issued access code. Rows are append-only; repeated approvals of
// the same (VIN, number) produce new rows carrying the same code value.
type Code struct {
	ID        uint   `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    int64  `json:"user_id"    gorm:"not null;index"`
	VIN       string `json:"vin"        gorm:"column:vin;type:text;not null;index:idx_codes_lookup,priority:1"`
	Number    string `json:"number"     gorm:"type:text;not null;index:idx_codes_lookup,priority:2"`
	Code      string `json:"code"       gorm:"type:text;not null"`
	CreatedAt string `json:"created_at" gorm:"type:text;not null;autoCreateTime:false;index:idx_codes_lookup,priority:3"`
}

// TableName returns the database table name for Code.
func (Code) TableName() string { return "codes" }
