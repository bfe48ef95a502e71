// Package platform describes the messaging platform client the copier is
// built on: the capability set it needs and the read-only message, media and
// conversation values that flow out of it.
package platform

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrDisconnected is returned when the connection to the platform was lost
	// while an operation was in flight.
	ErrDisconnected = errors.New("connection lost")
	// ErrUnauthorized is returned when the stored session is not signed in.
	ErrUnauthorized = errors.New("not authorized")
	// ErrPasswordNeeded is returned by SignIn when the account has two-step
	// verification enabled.
	ErrPasswordNeeded = errors.New("two-step verification password required")
)

// ChatKind is the category of a conversation.
type ChatKind string

const (
	ChatPrivate ChatKind = "Private"
	ChatGroup   ChatKind = "Group"
	ChatChannel ChatKind = "Channel"
	ChatUnknown ChatKind = "Unknown"
)

// Dialog is one entry of the account's conversation list.
type Dialog struct {
	ID          int64    `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Kind        ChatKind `json:"type" yaml:"type"`
	UnreadCount int      `json:"unread_count" yaml:"unread_count"`
}

// Entity is a conversation resolved from its identifier and ready to be read
// from or written to.
type Entity struct {
	ID    int64
	Title string
	Kind  ChatKind

	// Handle is the client's own addressing data for the conversation.
	Handle any
}

// Name returns the display name of the entity, falling back to its ID.
func (e Entity) Name() string {
	if e.Title != "" {
		return e.Title
	}
	return formatID(e.ID)
}

// MediaKind is the attachment family of a message.
type MediaKind int

const (
	MediaOther MediaKind = iota
	MediaPhoto
	MediaDocument
)

// Media is the attachment of a message.
type Media struct {
	Kind     MediaKind
	MimeType string // declared MIME type, documents only
	FileName string
	Size     int64

	// Handle lets the client re-send the attachment without downloading it.
	Handle any
}

// Message is a historical message of a conversation.
type Message struct {
	ID    int
	Date  time.Time
	Text  string
	Media *Media
}

// HasText reports whether the message carries non-empty text.
func (m Message) HasText() bool {
	return m.Text != ""
}

// HasMedia reports whether the message carries an attachment of any kind.
func (m Message) HasMedia() bool {
	return m.Media != nil
}

// MessageIter walks a conversation's history lazily.
type MessageIter interface {
	Next(ctx context.Context) bool
	Value() Message
	Err() error
}

// CodeRequest is the server's answer to a login code request.
type CodeRequest struct {
	Phone string
	Hash  string
	// Authorized is set when the server signed the session in without a code.
	Authorized bool
}

// Client is the capability set of an authenticated platform connection.
type Client interface {
	Connect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)
	SendCodeRequest(ctx context.Context, phone string) (CodeRequest, error)
	SignIn(ctx context.Context, req CodeRequest, code string) error
	CheckPassword(ctx context.Context, password string) error

	GetDialogs(ctx context.Context) ([]Dialog, error)
	GetEntity(ctx context.Context, id int64) (Entity, error)
	IterMessages(ctx context.Context, from Entity) MessageIter
	SendMessage(ctx context.Context, to Entity, text string) error
	SendFile(ctx context.Context, to Entity, media *Media) error

	Disconnect() error
}
