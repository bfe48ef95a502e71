// Package telegram implements platform.Client on top of the gotd MTProto
// client.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/bg"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hkuds/tgcopy/internal/platform"
)

const pingTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	AppID   int
	AppHash string
	Session session.Storage
	Logger  *zap.Logger

	DeviceModel   string
	SystemVersion string
	AppVersion    string

	// RequestInterval and RequestBurst bound the API request rate.
	RequestInterval time.Duration
	RequestBurst    int
	// FloodWaitRetries is how many FLOOD_WAIT answers a call survives.
	FloodWaitRetries int
}

// Client is a platform.Client backed by a gotd connection. Each Connect
// starts a fresh connection from the stored session; Disconnect stops it.
type Client struct {
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	client     *telegram.Client
	dispatcher tg.UpdateDispatcher
	peers      *peers.Manager
	stop       bg.StopFunc
}

var _ platform.Client = (*Client)(nil)

// New creates a disconnected Client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestInterval <= 0 {
		opts.RequestInterval = 400 * time.Millisecond
	}
	if opts.RequestBurst <= 0 {
		opts.RequestBurst = 2
	}
	if opts.FloodWaitRetries <= 0 {
		opts.FloodWaitRetries = 5
	}
	return &Client{opts: opts, log: opts.Logger.Named("telegram")}
}

func (c *Client) build() *telegram.Client {
	c.dispatcher = tg.NewUpdateDispatcher()
	return telegram.NewClient(c.opts.AppID, c.opts.AppHash, telegram.Options{
		SessionStorage: c.opts.Session,
		Logger:         c.log,
		UpdateHandler:  c.dispatcher,
		Device: telegram.DeviceConfig{
			DeviceModel:   c.opts.DeviceModel,
			SystemVersion: c.opts.SystemVersion,
			AppVersion:    c.opts.AppVersion,
		},
		Middlewares: []telegram.Middleware{
			floodwait.NewSimpleWaiter().WithMaxRetries(uint(c.opts.FloodWaitRetries)),
			ratelimit.New(rate.Every(c.opts.RequestInterval), c.opts.RequestBurst),
		},
	})
}

// Connect implements platform.Client.
func (c *Client) Connect(ctx context.Context) error {
	if c.started() {
		if c.alive(ctx) {
			return nil
		}
		// The background connection died; drop it and dial again.
		c.log.Info("Stale connection, reconnecting")
		if err := c.Disconnect(); err != nil {
			c.log.Warn("Drop stale connection", zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	client := c.build()
	stop, err := bg.Connect(client, bg.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	c.client = client
	c.stop = stop
	c.peers = peers.Options{Logger: c.log.Named("peers")}.Build(client.API())
	c.log.Debug("Connected")
	return nil
}

// Disconnect implements platform.Client.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return nil
	}
	err := c.stop()
	c.stop = nil
	c.client = nil
	c.peers = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "disconnect")
	}
	return nil
}

// IsAuthorized implements platform.Client.
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	client, err := c.current()
	if err != nil {
		return false, err
	}
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return false, c.wrap(ctx, err, "auth status")
	}
	return status.Authorized, nil
}

// API returns the raw API client of the current connection.
func (c *Client) API() (*tg.Client, error) {
	client, err := c.current()
	if err != nil {
		return nil, err
	}
	return client.API(), nil
}

func (c *Client) started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Client) current() (*telegram.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, errors.Wrap(platform.ErrDisconnected, "not connected")
	}
	return c.client, nil
}

func (c *Client) manager() (*peers.Manager, *tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, nil, errors.Wrap(platform.ErrDisconnected, "not connected")
	}
	return c.peers, c.client.API(), nil
}

// wrap annotates a failed call. When the connection no longer answers a
// ping the error is marked as platform.ErrDisconnected.
func (c *Client) wrap(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, platform.ErrDisconnected) || !c.alive(ctx) {
		c.log.Warn("Connection lost", zap.String("op", msg), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", msg, platform.ErrDisconnected, err)
	}
	return errors.Wrap(err, msg)
}

func (c *Client) alive(ctx context.Context) bool {
	client, err := c.current()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
	defer cancel()
	return client.Ping(ctx) == nil
}
