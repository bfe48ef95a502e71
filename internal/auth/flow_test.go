package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkuds/tgcopy/internal/platform"
	"github.com/hkuds/tgcopy/internal/platform/platformtest"
)

func staticCode(code string) CodeSource {
	return CodeFunc(func(context.Context, string) (string, error) { return code, nil })
}

func newFlow(client platform.Client, codes CodeSource) (*Flow, *[]Status) {
	var statuses []Status
	return &Flow{
		Client:   client,
		Phone:    "+15550001234",
		Codes:    codes,
		OnStatus: func(s Status) { statuses = append(statuses, s) },
	}, &statuses
}

func TestLoginAlreadyAuthorized(t *testing.T) {
	client := platformtest.NewClient()
	flow, statuses := newFlow(client, staticCode("12345"))

	already, err := flow.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, already)
	assert.Zero(t, client.CodeRequests)
	assert.Equal(t, "Already authorized!", (*statuses)[len(*statuses)-1].Text)
}

func TestLoginWithCode(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	client.CodeHash = "hash"
	client.ExpectedCode = "12345"
	flow, statuses := newFlow(client, staticCode(" 12345 "))

	already, err := flow.Login(context.Background())
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, client.Authorized)

	var steps []string
	for _, s := range *statuses {
		if s.Step != "" {
			steps = append(steps, s.Step)
		}
	}
	assert.Equal(t, []string{
		"Step 1/3: Initializing connection...",
		"Step 2/3: Verification...",
		"Step 3/3: Authentication...",
	}, steps)
}

func TestLoginWrongCode(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	client.ExpectedCode = "12345"
	flow, _ := newFlow(client, staticCode("00000"))

	_, err := flow.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
	assert.False(t, client.Authorized)
}

func TestLoginTimeout(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	flow, _ := newFlow(client, CodeFunc(func(ctx context.Context, _ string) (string, error) {
		// Never answers and ignores ctx.
		time.Sleep(time.Second)
		return "12345", nil
	}))
	flow.CodeTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := flow.Login(context.Background())
	require.ErrorIs(t, err, ErrVerificationTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "verification timeout", err.Error())
}

func TestLoginEmptyCodeCancels(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	flow, _ := newFlow(client, staticCode("   "))

	_, err := flow.Login(context.Background())
	require.ErrorIs(t, err, ErrVerificationCancelled)
	assert.False(t, client.Authorized)
}

func TestLoginCancelledContext(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	ctx, cancel := context.WithCancel(context.Background())
	flow, _ := newFlow(client, CodeFunc(func(ctx context.Context, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}))

	_, err := flow.Login(ctx)
	require.ErrorIs(t, err, ErrVerificationCancelled)
}

func TestLoginTwoStep(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	client.PasswordNeeded = true
	client.Password = "secret"
	flow, _ := newFlow(client, staticCode("12345"))
	flow.Passwords = PasswordFunc(func(context.Context) (string, error) { return "secret", nil })

	_, err := flow.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, client.Authorized)
}

func TestLoginTwoStepWithoutSource(t *testing.T) {
	client := platformtest.NewClient()
	client.Authorized = false
	client.PasswordNeeded = true
	flow, _ := newFlow(client, staticCode("12345"))

	_, err := flow.Login(context.Background())
	require.ErrorIs(t, err, platform.ErrPasswordNeeded)
}

func TestLoginConnectFailure(t *testing.T) {
	client := platformtest.NewClient()
	client.ConnectErrs = []error{errors.New("dial tcp: refused")}
	flow, _ := newFlow(client, staticCode("12345"))

	_, err := flow.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "********1234", maskPhone("+15550001234"))
	assert.Equal(t, "123", maskPhone("123"))
}
