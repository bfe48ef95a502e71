package notify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hkuds/tgcopy/internal/bus"
)

var tagRegex = regexp.MustCompile(`</?[a-z]+>`)

// Summary is the outcome of one run as reported to the bot chat.
type Summary struct {
	RunID    string
	Source   string
	Dest     string
	Outcome  bus.Outcome
	Text     string
	Errors   int
	Duration time.Duration
}

// HTML renders the summary with Telegram HTML markup.
func (s Summary) HTML() string {
	var sb strings.Builder

	sb.WriteString("<b>" + headline(s.Outcome) + "</b>\n")
	fmt.Fprintf(&sb, "<b>From:</b> %s\n", escapeHTML(s.Source))
	fmt.Fprintf(&sb, "<b>To:</b> %s\n", escapeHTML(s.Dest))
	if s.Text != "" {
		sb.WriteString(escapeHTML(s.Text) + "\n")
	}
	if s.Errors > 0 {
		fmt.Fprintf(&sb, "<b>Errors:</b> %d\n", s.Errors)
	}
	fmt.Fprintf(&sb, "<b>Duration:</b> %s\n", s.Duration.Round(time.Second))
	if s.RunID != "" {
		fmt.Fprintf(&sb, "<code>%s</code>", escapeHTML(s.RunID))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Plain renders the summary without markup.
func (s Summary) Plain() string {
	return unescapeHTML(tagRegex.ReplaceAllString(s.HTML(), ""))
}

func headline(o bus.Outcome) string {
	switch o {
	case bus.OutcomeSuccess:
		return "✅ Copy finished"
	case bus.OutcomeStopped:
		return "⏹ Copy stopped"
	case bus.OutcomeReconnectExhausted:
		return "❌ Copy aborted: connection lost"
	default:
		return "❌ Copy failed"
	}
}

// escapeHTML escapes HTML special characters.
func escapeHTML(text string) string {
	// Must escape & first to avoid double-escaping
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func unescapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return text
}
