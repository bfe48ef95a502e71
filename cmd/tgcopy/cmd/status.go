package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Long:  "Display the account, stored sessions, copy defaults and scheduled jobs.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	info := tui.StatusInfo{
		ConfigPath: configPath,
		Config:     a.cfg,
		Sessions:   a.sessions.List(),
		Now:        time.Now(),
	}
	if info.ConfigPath == "" {
		info.ConfigPath = config.GetConfigPath()
	}
	if creds, err := a.store.Load(); err == nil {
		info.Credentials = &creds
	}
	if s, err := newScheduler(a); err == nil {
		info.Jobs = len(s.ListJobs())
	}

	tui.ShowStatus(info)
	return nil
}
