// Package notify reports finished runs to a chat through the Telegram Bot
// API.
package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/bus"
)

// Options configures a Notifier.
type Options struct {
	Token  string
	ChatID int64

	// Endpoint overrides the Bot API endpoint format (tgbotapi.APIEndpoint).
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
}

// Notifier collects the events of one run and sends a summary message when
// the run ends.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	source  string
	dest    string
	started time.Time
	errors  int
	sent    chan error
}

// New authorizes the bot token and creates a Notifier.
func New(opts Options) (*Notifier, error) {
	if opts.Token == "" {
		return nil, errors.New("notify: bot token is empty")
	}
	if opts.ChatID == 0 {
		return nil, errors.New("notify: chat id is empty")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, opts.Client)
	if err != nil {
		return nil, errors.Wrap(err, "create bot")
	}

	log := opts.Logger.Named("notify")
	log.Debug("Bot authorized", zap.String("username", bot.Self.UserName))

	return &Notifier{
		bot:    bot,
		chatID: opts.ChatID,
		log:    log,
		now:    time.Now,
		sent:   make(chan error, 1),
	}, nil
}

// Begin records the run being observed.
func (n *Notifier) Begin(source, dest string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source, n.dest = source, dest
	n.started = n.now()
	n.errors = 0
}

// Handle observes one event of the run. It is meant to be subscribed to the
// run's event bus; the summary is sent synchronously on the terminal event.
func (n *Notifier) Handle(ev bus.Event) {
	switch {
	case ev.Kind == bus.KindLog && ev.IsError():
		n.mu.Lock()
		n.errors++
		n.mu.Unlock()
	case ev.Kind == bus.KindTerminal:
		err := n.Send(n.summary(ev))
		if err != nil {
			n.log.Error("Send summary", zap.Error(err))
		}
		select {
		case n.sent <- err:
		default:
		}
	}
}

// Sent delivers the result of sending the summary.
func (n *Notifier) Sent() <-chan error {
	return n.sent
}

func (n *Notifier) summary(ev bus.Event) Summary {
	n.mu.Lock()
	defer n.mu.Unlock()

	var d time.Duration
	if !n.started.IsZero() {
		d = ev.Time.Sub(n.started)
	}
	if d < 0 {
		d = 0
	}
	return Summary{
		RunID:    ev.RunID,
		Source:   n.source,
		Dest:     n.dest,
		Outcome:  ev.Outcome,
		Text:     ev.Text,
		Errors:   n.errors,
		Duration: d,
	}
}

// Send delivers a summary, falling back to plain text when the HTML is
// rejected.
func (n *Notifier) Send(s Summary) error {
	msg := tgbotapi.NewMessage(n.chatID, s.HTML())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := n.bot.Send(msg)
	if err != nil {
		n.log.Warn("HTML message failed, falling back to plain text", zap.Error(err))
		msg.ParseMode = ""
		msg.Text = s.Plain()
		_, err = n.bot.Send(msg)
	}
	if err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}
