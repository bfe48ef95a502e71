// Package platformtest provides a scriptable in-memory platform.Client.
package platformtest

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/hkuds/tgcopy/internal/platform"
)

// Sent records one successful send operation.
type Sent struct {
	To        int64
	MessageID int // source message ID, zero when unknown
	Text      string
	Media     *platform.Media
}

// Client is a fake platform.Client. Zero values mean "succeed": connections
// work, the session is not authorized unless Authorized is set, and every
// send is recorded in Sent.
type Client struct {
	mu sync.Mutex

	// ConnectErrs is consumed one entry per Connect call; once exhausted
	// Connect succeeds.
	ConnectErrs []error
	Authorized  bool
	AuthErr     error

	CodeHash       string
	SendCodeErr    error
	ExpectedCode   string
	SignInErr      error
	PasswordNeeded bool
	Password       string

	Dialogs    []platform.Dialog
	DialogsErr error

	Entities map[int64]platform.Entity
	// EntityErrs is consumed one entry per GetEntity call for that ID.
	EntityErrs map[int64][]error

	// History holds each conversation's messages in enumeration order
	// (newest first).
	History map[int64][]platform.Message
	// IterErr fails enumeration after IterErrAfter messages were yielded.
	IterErr      error
	IterErrAfter int
	// OnYield runs before each message is yielded by IterMessages.
	OnYield func(index int, msg platform.Message)

	// SendTextErr and SendFileErr, when set, decide the outcome of a send.
	SendTextErr func(to platform.Entity, text string) error
	SendFileErr func(to platform.Entity, media *platform.Media) error

	Sent []Sent

	ConnectCalls    int
	EntityCalls     int
	IterCalls       int
	DisconnectCalls int
	CodeRequests    int
}

var _ platform.Client = (*Client)(nil)

// NewClient returns an empty authorized fake.
func NewClient() *Client {
	return &Client{
		Authorized: true,
		Entities:   make(map[int64]platform.Entity),
		EntityErrs: make(map[int64][]error),
		History:    make(map[int64][]platform.Message),
	}
}

// AddChat registers a resolvable conversation with its history, given
// newest first.
func (c *Client) AddChat(id int64, title string, history ...platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entities[id] = platform.Entity{ID: id, Title: title, Kind: platform.ChatChannel, Handle: id}
	c.History[id] = history
}

// Connect implements platform.Client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConnectCalls++
	if len(c.ConnectErrs) > 0 {
		err := c.ConnectErrs[0]
		c.ConnectErrs = c.ConnectErrs[1:]
		return err
	}
	return nil
}

// IsAuthorized implements platform.Client.
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Authorized, c.AuthErr
}

// SendCodeRequest implements platform.Client.
func (c *Client) SendCodeRequest(ctx context.Context, phone string) (platform.CodeRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CodeRequests++
	if c.SendCodeErr != nil {
		return platform.CodeRequest{}, c.SendCodeErr
	}
	return platform.CodeRequest{Phone: phone, Hash: c.CodeHash}, nil
}

// SignIn implements platform.Client.
func (c *Client) SignIn(ctx context.Context, req platform.CodeRequest, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SignInErr != nil {
		return c.SignInErr
	}
	if c.ExpectedCode != "" && code != c.ExpectedCode {
		return errors.New("PHONE_CODE_INVALID")
	}
	if c.PasswordNeeded {
		return platform.ErrPasswordNeeded
	}
	c.Authorized = true
	return nil
}

// CheckPassword implements platform.Client.
func (c *Client) CheckPassword(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if password != c.Password {
		return errors.New("PASSWORD_HASH_INVALID")
	}
	c.Authorized = true
	return nil
}

// GetDialogs implements platform.Client.
func (c *Client) GetDialogs(ctx context.Context) ([]platform.Dialog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DialogsErr != nil {
		return nil, c.DialogsErr
	}
	out := make([]platform.Dialog, len(c.Dialogs))
	copy(out, c.Dialogs)
	return out, nil
}

// GetEntity implements platform.Client.
func (c *Client) GetEntity(ctx context.Context, id int64) (platform.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EntityCalls++
	if errs := c.EntityErrs[id]; len(errs) > 0 {
		c.EntityErrs[id] = errs[1:]
		return platform.Entity{}, errs[0]
	}
	e, ok := c.Entities[id]
	if !ok {
		return platform.Entity{}, errors.Errorf("cannot find any entity corresponding to %d", id)
	}
	return e, nil
}

// IterMessages implements platform.Client.
func (c *Client) IterMessages(ctx context.Context, from platform.Entity) platform.MessageIter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IterCalls++
	msgs := c.History[from.ID]
	return &iter{
		msgs:     msgs,
		pos:      -1,
		err:      c.IterErr,
		errAfter: c.IterErrAfter,
		onYield:  c.OnYield,
	}
}

// SendMessage implements platform.Client.
func (c *Client) SendMessage(ctx context.Context, to platform.Entity, text string) error {
	c.mu.Lock()
	hook := c.SendTextErr
	c.mu.Unlock()
	if hook != nil {
		if err := hook(to, text); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, Sent{To: to.ID, Text: text})
	return nil
}

// SendFile implements platform.Client.
func (c *Client) SendFile(ctx context.Context, to platform.Entity, media *platform.Media) error {
	c.mu.Lock()
	hook := c.SendFileErr
	c.mu.Unlock()
	if hook != nil {
		if err := hook(to, media); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := Sent{To: to.ID, Media: media}
	if id, ok := media.Handle.(int); ok {
		s.MessageID = id
	}
	c.Sent = append(c.Sent, s)
	return nil
}

// Disconnect implements platform.Client.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DisconnectCalls++
	return nil
}

// SentTo returns a copy of the sends recorded so far.
func (c *Client) SentTo() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.Sent))
	copy(out, c.Sent)
	return out
}

type iter struct {
	msgs     []platform.Message
	pos      int
	err      error
	errAfter int
	onYield  func(int, platform.Message)
	failed   error
}

func (it *iter) Next(ctx context.Context) bool {
	if it.failed != nil {
		return false
	}
	next := it.pos + 1
	if it.err != nil && next >= it.errAfter {
		it.failed = it.err
		return false
	}
	if next >= len(it.msgs) {
		return false
	}
	it.pos = next
	if it.onYield != nil {
		it.onYield(next, it.msgs[next])
	}
	return true
}

func (it *iter) Value() platform.Message {
	return it.msgs[it.pos]
}

func (it *iter) Err() error {
	return it.failed
}

// TextMessage builds a text-only message.
func TextMessage(id int, text string) platform.Message {
	return platform.Message{ID: id, Text: text}
}

// PhotoMessage builds a photo-only message.
func PhotoMessage(id int) platform.Message {
	return platform.Message{ID: id, Media: &platform.Media{Kind: platform.MediaPhoto, Handle: id}}
}

// DocumentMessage builds a document-only message with the given MIME type.
func DocumentMessage(id int, mime string) platform.Message {
	return platform.Message{ID: id, Media: &platform.Media{Kind: platform.MediaDocument, MimeType: mime, Handle: id}}
}
