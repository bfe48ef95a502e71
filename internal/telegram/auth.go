package telegram

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tgerr"
	"github.com/gotd/td/tg"
	"github.com/mdp/qrterminal/v3"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/platform"
)

// SendCodeRequest implements platform.Client.
func (c *Client) SendCodeRequest(ctx context.Context, phone string) (platform.CodeRequest, error) {
	client, err := c.current()
	if err != nil {
		return platform.CodeRequest{}, err
	}

	sent, err := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return platform.CodeRequest{}, c.wrap(ctx, err, "send code")
	}

	req := platform.CodeRequest{Phone: phone}
	switch s := sent.(type) {
	case *tg.AuthSentCode:
		req.Hash = s.PhoneCodeHash
	case *tg.AuthSentCodeSuccess:
		req.Authorized = true
	default:
		return req, errors.Errorf("unexpected sent code type %T", sent)
	}
	return req, nil
}

// SignIn implements platform.Client.
func (c *Client) SignIn(ctx context.Context, req platform.CodeRequest, code string) error {
	client, err := c.current()
	if err != nil {
		return err
	}

	_, err = client.Auth().SignIn(ctx, req.Phone, code, req.Hash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return platform.ErrPasswordNeeded
	}
	return c.wrap(ctx, err, "sign in")
}

// CheckPassword implements platform.Client.
func (c *Client) CheckPassword(ctx context.Context, password string) error {
	client, err := c.current()
	if err != nil {
		return err
	}
	_, err = client.Auth().Password(ctx, password)
	return c.wrap(ctx, err, "check password")
}

// QRLogin signs the session in by rendering login tokens as QR codes on w
// until one is scanned from an already authorized device. When the account
// has two-step verification enabled platform.ErrPasswordNeeded is returned
// and the caller should continue with CheckPassword.
func (c *Client) QRLogin(ctx context.Context, w io.Writer) error {
	c.mu.Lock()
	client, d := c.client, c.dispatcher
	c.mu.Unlock()
	if client == nil {
		return errors.Wrap(platform.ErrDisconnected, "not connected")
	}

	loggedIn := qrlogin.OnLoginToken(d)
	show := func(ctx context.Context, token qrlogin.Token) error {
		c.log.Debug("New login token", zap.Time("expires", token.Expires()))
		qrterminal.GenerateHalfBlock(token.URL(), qrterminal.L, w)
		return nil
	}

	_, err := client.QR().Auth(ctx, loggedIn, show)
	if tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
		return platform.ErrPasswordNeeded
	}
	return c.wrap(ctx, err, "qr login")
}

// LogOut terminates the session on the server side.
func (c *Client) LogOut(ctx context.Context) error {
	client, err := c.current()
	if err != nil {
		return err
	}
	if _, err := client.API().AuthLogOut(ctx); err != nil {
		return c.wrap(ctx, err, "log out")
	}
	return nil
}
