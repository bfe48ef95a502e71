// Package tui provides the interactive terminal front end of tgcopy: forms
// for login and conversation selection, the copy progress screen and the
// status screen.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/forward"
	"github.com/hkuds/tgcopy/internal/platform"
)

// Styles shared by the forms and screens.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// ErrAborted is returned when the user leaves a form with ctrl+c or esc.
var ErrAborted = errors.New("aborted by user")

// SetupState holds the values collected by the credentials form.
type SetupState struct {
	APIID   string
	APIHash string
	Phone   string
}

// RunCredentialsSetup asks for the API credentials and the phone number,
// pre-filled with the existing values.
func RunCredentialsSetup(ctx context.Context, existing config.Credentials) (config.Credentials, error) {
	state := &SetupState{APIHash: existing.APIHash, Phone: existing.Phone}
	if existing.APIID > 0 {
		state.APIID = strconv.Itoa(existing.APIID)
	}

	fmt.Println(boxStyle.Render(
		titleStyle.Render("Telegram login") + "\n\n" +
			"API credentials are issued at https://my.telegram.org.\n" +
			subtitleStyle.Render("They are stored locally in "+config.CredentialsFile+"."),
	))
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API ID").
				Placeholder("1234567").
				Value(&state.APIID).
				Validate(validateAPIID),
			huh.NewInput().
				Title("API Hash").
				EchoMode(huh.EchoModePassword).
				Value(&state.APIHash).
				Validate(required("API hash")),
			huh.NewInput().
				Title("Phone number").
				Description("International format, e.g. +15550001234").
				Value(&state.Phone).
				Validate(validatePhone),
		),
	)
	if err := runForm(ctx, form); err != nil {
		return config.Credentials{}, err
	}

	return state.credentials()
}

func (s *SetupState) credentials() (config.Credentials, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s.APIID))
	if err != nil {
		return config.Credentials{}, errors.Wrap(err, "parse api id")
	}
	c := config.Credentials{
		APIID:   id,
		APIHash: strings.TrimSpace(s.APIHash),
		Phone:   normalizePhone(s.Phone),
	}
	return c, c.Validate()
}

// PromptCode asks for the login code sent to phone. Leaving the form
// returns an empty code, which cancels the login.
func PromptCode(ctx context.Context, phone string) (string, error) {
	var code string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Verification code").
				Description("Sent to "+phone+" via Telegram").
				Value(&code),
		),
	)
	if err := runForm(ctx, form); err != nil {
		if errors.Is(err, ErrAborted) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(code), nil
}

// PromptPassword asks for the two-step verification password.
func PromptPassword(ctx context.Context) (string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Two-step verification password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(required("password")),
		),
	)
	if err := runForm(ctx, form); err != nil {
		return "", err
	}
	return password, nil
}

// PickDialog lets the user choose one conversation from dialogs.
func PickDialog(ctx context.Context, title string, dialogs []platform.Dialog) (platform.Dialog, error) {
	if len(dialogs) == 0 {
		return platform.Dialog{}, errors.New("no conversations to choose from")
	}

	options := make([]huh.Option[int], len(dialogs))
	for i, d := range dialogs {
		options[i] = huh.NewOption(d.Label(), i)
	}

	var idx int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(title).
				Options(options...).
				Height(15).
				Value(&idx),
		),
	)
	if err := runForm(ctx, form); err != nil {
		return platform.Dialog{}, err
	}
	return dialogs[idx], nil
}

// PickFilters asks which content types to copy, starting from current.
func PickFilters(ctx context.Context, current forward.FilterConfig) (forward.FilterConfig, error) {
	var selected []string
	if current.IncludeText {
		selected = append(selected, "text")
	}
	if current.IncludeMedia {
		selected = append(selected, "media")
	}
	if current.IncludeDocuments {
		selected = append(selected, "documents")
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Content to copy").
				Options(
					huh.NewOption("Text messages", "text"),
					huh.NewOption("Media (photos, videos)", "media"),
					huh.NewOption("Documents", "documents"),
				).
				Value(&selected).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("select at least one content type")
					}
					return nil
				}),
		),
	)
	if err := runForm(ctx, form); err != nil {
		return current, err
	}
	return filtersFromSelection(selected), nil
}

func filtersFromSelection(selected []string) forward.FilterConfig {
	var f forward.FilterConfig
	for _, s := range selected {
		switch s {
		case "text":
			f.IncludeText = true
		case "media":
			f.IncludeMedia = true
		case "documents":
			f.IncludeDocuments = true
		}
	}
	return f
}

// Confirm asks a yes/no question.
func Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Value(&ok),
		),
	)
	if err := runForm(ctx, form); err != nil {
		return false, err
	}
	return ok, nil
}

func runForm(ctx context.Context, form *huh.Form) error {
	err := form.RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func validateAPIID(s string) error {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return fmt.Errorf("API ID must be a positive number")
	}
	return nil
}

func validatePhone(s string) error {
	p := normalizePhone(s)
	if len(p) < 8 || p[0] != '+' {
		return fmt.Errorf("phone must start with + and the country code")
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone must contain digits only")
		}
	}
	return nil
}

func normalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(s))
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
