package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkuds/tgcopy/internal/bus"
	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/forward"
	"github.com/hkuds/tgcopy/internal/session"
)

func update(t *testing.T, m progressModel, msg tea.Msg) (progressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(progressModel)
	require.True(t, ok)
	return pm, cmd
}

func TestProgressModelTracksEvents(t *testing.T) {
	m := newProgressModel("Copying", nil)

	m, _ = update(t, m, eventMsg{Kind: bus.KindProgress, Percent: 40})
	m, _ = update(t, m, eventMsg{Kind: bus.KindProgress, Percent: 20})
	assert.Equal(t, 40, m.percent)

	for i := 0; i < logTail+3; i++ {
		m, _ = update(t, m, eventMsg{Kind: bus.KindLog, Text: "line"})
	}
	assert.Len(t, m.logs, logTail)
	assert.False(t, m.done)

	m, cmd := update(t, m, eventMsg{Kind: bus.KindTerminal, Outcome: bus.OutcomeSuccess, Text: "Copied 3 of 3 messages"})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "Copied 3 of 3 messages")
}

func TestProgressModelStopOnce(t *testing.T) {
	calls := 0
	m := newProgressModel("Copying", func() { calls++ })

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, 1, calls)
	assert.True(t, m.stopping)
	assert.Contains(t, m.View(), "Stopping...")

	m, cmd := update(t, m, eventMsg{Kind: bus.KindTerminal, Outcome: bus.OutcomeStopped, Text: "Stopped"})
	require.NotNil(t, cmd)
	assert.True(t, m.done)
}

func TestProgressModelIgnoresOtherKeys(t *testing.T) {
	calls := 0
	m := newProgressModel("Copying", func() { calls++ })
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Zero(t, calls)
	assert.False(t, m.stopping)
}

func TestPlainRenderer(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.Handle(bus.Event{Kind: bus.KindLog, Level: bus.LevelInfo, Text: "Starting to copy messages..."})
	p.Handle(bus.Event{Kind: bus.KindProgress, Percent: 50})
	p.Handle(bus.Event{Kind: bus.KindLog, Level: bus.LevelError, Text: "Error copying message: boom"})
	p.Handle(bus.Event{Kind: bus.KindTerminal, Outcome: bus.OutcomeSuccess, Text: "Copied 1 of 2 messages"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"[INFO] Starting to copy messages...",
		"[INFO] Progress: 50%",
		"[ERROR] Error copying message: boom",
		"[DONE] Copied 1 of 2 messages",
	}, lines)

	select {
	case ev := <-p.Done():
		assert.Equal(t, bus.OutcomeSuccess, ev.Outcome)
	default:
		t.Fatal("terminal event not delivered")
	}
}

func TestPlainRendererQuietFatal(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := NewPlain(&buf, true)

	p.Handle(bus.Event{Kind: bus.KindProgress, Percent: 50})
	p.Handle(bus.Event{Kind: bus.KindTerminal, Level: bus.LevelError, Outcome: bus.OutcomeFatal, Text: "Please login first!"})

	assert.Equal(t, "[ERROR] Please login first!\n", buf.String())
}

func TestFiltersFromSelection(t *testing.T) {
	assert.Equal(t, forward.FilterConfig{IncludeText: true, IncludeDocuments: true},
		filtersFromSelection([]string{"text", "documents"}))
	assert.Equal(t, forward.FilterConfig{}, filtersFromSelection(nil))
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, validatePhone("+1 (555) 000-1234"))
	assert.Error(t, validatePhone("5550001234"))
	assert.Error(t, validatePhone("+1555abc1234"))
	assert.Error(t, validatePhone("+1"))
	assert.Equal(t, "+15550001234", normalizePhone(" +1 (555) 000-1234 "))
}

func TestValidateAPIID(t *testing.T) {
	assert.NoError(t, validateAPIID("12345"))
	assert.Error(t, validateAPIID("0"))
	assert.Error(t, validateAPIID("abc"))
}

func TestSetupStateCredentials(t *testing.T) {
	s := &SetupState{APIID: " 42 ", APIHash: "hash", Phone: "+1 555 000 1234"}
	c, err := s.credentials()
	require.NoError(t, err)
	assert.Equal(t, config.Credentials{APIID: 42, APIHash: "hash", Phone: "+15550001234"}, c)

	_, err = (&SetupState{APIID: "x"}).credentials()
	assert.Error(t, err)
}

func TestRenderStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/tmp/tgcopy"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out := RenderStatus(StatusInfo{ConfigPath: "/tmp/tgcopy/config.json", Config: cfg, Now: now})
	assert.Contains(t, out, "tgcopy Status")
	assert.Contains(t, out, "not configured")

	out = RenderStatus(StatusInfo{
		ConfigPath:  "/tmp/tgcopy/config.json",
		Config:      cfg,
		Credentials: &config.Credentials{APIID: 1, APIHash: "h", Phone: "+15550001234"},
		Sessions:    []session.Info{{Phone: "+15550001234", UpdatedAt: now.Add(-time.Hour)}},
		Jobs:        2,
		Now:         now,
	})
	assert.Contains(t, out, "+15*******34")
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "1h0m0s ago")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "****", maskPhone("+1234"))
	assert.Equal(t, "+15*******34", maskPhone("+15550001234"))
}
