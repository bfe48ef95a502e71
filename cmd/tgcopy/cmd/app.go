package cmd

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/logging"
	"github.com/hkuds/tgcopy/internal/platform"
	"github.com/hkuds/tgcopy/internal/session"
	"github.com/hkuds/tgcopy/internal/telegram"
)

// errNotLoggedIn is returned when no account has been set up or its session
// is not signed in.
var errNotLoggedIn = errors.New("not logged in, run `tgcopy login` first")

// app is the state every command that talks to Telegram starts from.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	closeLog func() error
	store    config.FileCredentials
	sessions *session.Manager
}

// loadApp reads the config, opens the log file and the session store and
// returns a context carrying the logger.
func loadApp(ctx context.Context) (*app, context.Context, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return nil, ctx, err
	}

	log, closeLog, err := logging.New(cfg.LogDir(), cfg.Log.Level)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to open log: %w", err)
	}

	sessions, err := session.NewManager(cfg.DataPath())
	if err != nil {
		_ = closeLog()
		return nil, ctx, fmt.Errorf("failed to open session store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		closeLog: closeLog,
		store:    config.FileCredentials{Path: cfg.CredentialsPath()},
		sessions: sessions,
	}
	return a, logging.With(ctx, log), nil
}

func (a *app) Close() {
	_ = a.closeLog()
}

// credentials loads the stored credentials and fails when the account was
// never set up.
func (a *app) credentials() (config.Credentials, error) {
	creds, err := a.store.Load()
	if errors.Is(err, config.ErrNoCredentials) {
		return creds, errNotLoggedIn
	}
	return creds, err
}

// newClient builds a disconnected Telegram client for the account.
func (a *app) newClient(creds config.Credentials) *telegram.Client {
	c := a.cfg.Client
	return telegram.New(telegram.Options{
		AppID:            creds.APIID,
		AppHash:          creds.APIHash,
		Session:          a.sessions.Storage(creds.Phone),
		Logger:           a.log.Named("telegram"),
		DeviceModel:      c.DeviceModel,
		SystemVersion:    c.SystemVersion,
		AppVersion:       c.AppVersion,
		RequestInterval:  c.RequestInterval(),
		RequestBurst:     c.RequestBurst,
		FloodWaitRetries: c.FloodWaitRetries,
	})
}

// loadDialogs connects, checks the session and fetches the dialog list.
func (a *app) loadDialogs(ctx context.Context, creds config.Credentials) ([]platform.Dialog, error) {
	client := a.newClient(creds)
	defer func() {
		if err := client.Disconnect(); err != nil {
			a.log.Warn("Disconnect failed", zap.Error(err))
		}
	}()

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	ok, err := client.IsAuthorized(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotLoggedIn
	}

	dialogs, err := client.GetDialogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}
	return dialogs, nil
}
