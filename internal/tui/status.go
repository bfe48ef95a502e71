package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/session"
)

// Status display styles.
var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				MarginBottom(1).
				Padding(0, 1)

	statusBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Width(64)

	statusSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginTop(1)

	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Width(20)

	statusValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255"))

	statusEnabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82")).
				Bold(true)

	statusDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	statusWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))
)

// StatusInfo is everything the status screen shows.
type StatusInfo struct {
	ConfigPath  string
	Config      *config.Config
	Credentials *config.Credentials // nil when not logged in
	Sessions    []session.Info
	Jobs        int
	Now         time.Time
}

// ShowStatus prints the status screen.
func ShowStatus(info StatusInfo) {
	fmt.Println(RenderStatus(info))
}

// RenderStatus renders the status screen.
func RenderStatus(info StatusInfo) string {
	var sb strings.Builder

	sb.WriteString(statusTitleStyle.Render("tgcopy Status"))
	sb.WriteString("\n\n")

	// Account section
	sb.WriteString(statusSectionStyle.Render("Account"))
	sb.WriteString("\n")
	sb.WriteString(renderAccountStatus(info))
	sb.WriteString("\n")

	// Copy section
	sb.WriteString(statusSectionStyle.Render("Copy defaults"))
	sb.WriteString("\n")
	sb.WriteString(renderCopyStatus(info.Config))
	sb.WriteString("\n")

	// Integrations section
	sb.WriteString(statusSectionStyle.Render("Integrations"))
	sb.WriteString("\n")
	sb.WriteString(renderIntegrationsStatus(info))
	sb.WriteString("\n")

	// Paths section
	sb.WriteString(statusSectionStyle.Render("Paths"))
	sb.WriteString("\n")
	sb.WriteString(renderStatusRow("Config", statusValueStyle.Render(info.ConfigPath)))
	sb.WriteString(renderStatusRow("Data", statusValueStyle.Render(info.Config.DataPath())))
	sb.WriteString(renderStatusRow("Logs", statusValueStyle.Render(info.Config.LogDir())))

	return statusBoxStyle.Render(sb.String())
}

func renderAccountStatus(info StatusInfo) string {
	var sb strings.Builder

	if info.Credentials == nil {
		sb.WriteString(renderStatusRow("Credentials", statusWarningStyle.Render("not configured")))
		sb.WriteString(renderStatusRow("", statusWarningStyle.Render("Run 'tgcopy login' to sign in")))
		return sb.String()
	}

	sb.WriteString(renderStatusRow("Phone", statusValueStyle.Render(maskPhone(info.Credentials.Phone))))
	sb.WriteString(renderStatusRow("API ID", statusValueStyle.Render(fmt.Sprintf("%d", info.Credentials.APIID))))

	var current *session.Info
	for i := range info.Sessions {
		if info.Sessions[i].Phone == info.Credentials.Phone {
			current = &info.Sessions[i]
			break
		}
	}
	if current == nil {
		sb.WriteString(renderStatusRow("Session", statusDisabledStyle.Render("none")))
	} else {
		age := current.Age(info.Now).Round(time.Minute)
		sb.WriteString(renderStatusRow("Session", statusEnabledStyle.Render("saved")))
		sb.WriteString(renderStatusRow("  Updated", statusValueStyle.Render(age.String()+" ago")))
	}
	if n := len(info.Sessions); n > 1 {
		sb.WriteString(renderStatusRow("Other sessions", statusValueStyle.Render(fmt.Sprintf("%d", n-1))))
	}

	return sb.String()
}

func renderCopyStatus(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString(renderStatusRow("Text", onOff(cfg.Copy.Text)))
	sb.WriteString(renderStatusRow("Media", onOff(cfg.Copy.Media)))
	sb.WriteString(renderStatusRow("Documents", onOff(cfg.Copy.Documents)))
	sb.WriteString(renderStatusRow("Journal", onOff(cfg.Copy.Journal)))
	sb.WriteString(renderStatusRow("Pacing", statusValueStyle.Render(cfg.Copy.Pacing().String())))
	sb.WriteString(renderStatusRow("Max retries", statusValueStyle.Render(fmt.Sprintf("%d", cfg.Copy.MaxRetries))))
	sb.WriteString(renderStatusRow("Reconnect every", statusValueStyle.Render(cfg.Copy.ReconnectInterval().String())))
	sb.WriteString(renderStatusRow("Resolve retry", statusValueStyle.Render(cfg.Copy.ResolveRetry)))

	return sb.String()
}

func renderIntegrationsStatus(info StatusInfo) string {
	var sb strings.Builder

	cfg := info.Config
	if cfg.Notify.Enabled && cfg.Notify.Token != "" {
		sb.WriteString(renderStatusRow("Bot notify", statusEnabledStyle.Render("enabled")))
		sb.WriteString(renderStatusRow("  Chat", statusValueStyle.Render(fmt.Sprintf("%d", cfg.Notify.ChatID))))
	} else {
		sb.WriteString(renderStatusRow("Bot notify", statusDisabledStyle.Render("disabled")))
	}
	sb.WriteString(renderStatusRow("Event stream", statusValueStyle.Render(cfg.Stream.Addr)))
	sb.WriteString(renderStatusRow("Scheduled jobs", statusValueStyle.Render(fmt.Sprintf("%d", info.Jobs))))

	return sb.String()
}

func onOff(v bool) string {
	if v {
		return statusEnabledStyle.Render("on")
	}
	return statusDisabledStyle.Render("off")
}

// renderStatusRow renders a label-value row.
func renderStatusRow(label, value string) string {
	if label == "" {
		return fmt.Sprintf("  %s\n", value)
	}
	return fmt.Sprintf("  %s %s\n",
		statusLabelStyle.Render(label+":"),
		value,
	)
}

// maskPhone hides the middle digits of a phone number.
func maskPhone(phone string) string {
	if len(phone) <= 6 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
