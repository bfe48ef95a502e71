// Package auth signs a user account in: it connects, requests a login code
// when the stored session is not authorized, waits a bounded time for the
// code and completes two-step verification when the account needs it.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/logging"
	"github.com/hkuds/tgcopy/internal/platform"
)

// DefaultCodeTimeout bounds the wait for the login code.
const DefaultCodeTimeout = 60 * time.Second

var (
	// ErrVerificationTimeout is returned when no code arrived in time.
	ErrVerificationTimeout = errors.New("verification timeout")
	// ErrVerificationCancelled is returned when the user supplied no code.
	ErrVerificationCancelled = errors.New("verification cancelled")
)

// CodeSource supplies the login code sent to the phone.
type CodeSource interface {
	Code(ctx context.Context, phone string) (string, error)
}

// PasswordSource supplies the two-step verification password.
type PasswordSource interface {
	Password(ctx context.Context) (string, error)
}

// CodeFunc adapts a function to CodeSource.
type CodeFunc func(ctx context.Context, phone string) (string, error)

// Code implements CodeSource.
func (f CodeFunc) Code(ctx context.Context, phone string) (string, error) {
	return f(ctx, phone)
}

// PasswordFunc adapts a function to PasswordSource.
type PasswordFunc func(ctx context.Context) (string, error)

// Password implements PasswordSource.
func (f PasswordFunc) Password(ctx context.Context) (string, error) {
	return f(ctx)
}

// Status is a progress report of the login flow.
type Status struct {
	Text string
	Step string
}

// Flow is a single login attempt for one phone number.
type Flow struct {
	Client      platform.Client
	Phone       string
	Codes       CodeSource
	Passwords   PasswordSource
	CodeTimeout time.Duration
	// OnStatus, when set, receives every status update.
	OnStatus func(Status)
}

// Login connects and makes sure the session is authorized. It reports
// whether the session was already signed in. The caller owns the connection
// and must disconnect the client.
func (f *Flow) Login(ctx context.Context) (bool, error) {
	log := logging.From(ctx).With(zap.String("phone", maskPhone(f.Phone)))

	f.status("Connecting to Telegram...", "Step 1/3: Initializing connection...")
	if err := f.Client.Connect(ctx); err != nil {
		return false, errors.Wrap(err, "connect")
	}

	ok, err := f.Client.IsAuthorized(ctx)
	if err != nil {
		return false, errors.Wrap(err, "check authorization")
	}
	if ok {
		log.Info("Session already authorized")
		f.status("Already authorized!", "")
		return true, nil
	}

	f.status("Requesting verification code...", "Step 2/3: Verification...")
	req, err := f.Client.SendCodeRequest(ctx, f.Phone)
	if err != nil {
		return false, errors.Wrap(err, "send code")
	}
	if req.Authorized {
		log.Info("Signed in without a code")
		return false, nil
	}

	code, err := f.waitCode(ctx)
	if err != nil {
		return false, err
	}

	f.status("Signing in...", "Step 3/3: Authentication...")
	err = f.Client.SignIn(ctx, req, code)
	if errors.Is(err, platform.ErrPasswordNeeded) {
		err = f.checkPassword(ctx)
	}
	if err != nil {
		return false, errors.Wrap(err, "login failed")
	}

	log.Info("Signed in")
	return false, nil
}

func (f *Flow) waitCode(ctx context.Context) (string, error) {
	if f.Codes == nil {
		return "", errors.New("no code source")
	}
	timeout := f.CodeTimeout
	if timeout <= 0 {
		timeout = DefaultCodeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := f.Codes.Code(ctx, f.Phone)
		done <- result{code: code, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrVerificationTimeout
		}
		return "", ErrVerificationCancelled
	case r := <-done:
		switch {
		case errors.Is(r.err, context.DeadlineExceeded):
			return "", ErrVerificationTimeout
		case errors.Is(r.err, context.Canceled):
			return "", ErrVerificationCancelled
		case r.err != nil:
			return "", errors.Wrap(r.err, "read code")
		}
		code := strings.TrimSpace(r.code)
		if code == "" {
			return "", ErrVerificationCancelled
		}
		return code, nil
	}
}

func (f *Flow) checkPassword(ctx context.Context) error {
	if f.Passwords == nil {
		return platform.ErrPasswordNeeded
	}
	f.status("Two-step verification enabled, waiting for password...", "Step 3/3: Authentication...")
	pw, err := f.Passwords.Password(ctx)
	if err != nil {
		return errors.Wrap(err, "read password")
	}
	return f.Client.CheckPassword(ctx, pw)
}

func (f *Flow) status(text, step string) {
	if f.OnStatus != nil {
		f.OnStatus(Status{Text: text, Step: step})
	}
}

// maskPhone keeps the last four digits of a phone number.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
