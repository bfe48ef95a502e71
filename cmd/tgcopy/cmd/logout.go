package cmd

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/config"
)

var logoutLocal bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Long:  "Terminate the Telegram session, then delete the local session file and the stored credentials.",
	RunE:  runLogout,
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutLocal, "local", false, "only remove local files, keep the session active on the server")
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, ctx, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.store.Load()
	if errors.Is(err, config.ErrNoCredentials) {
		fmt.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	if !logoutLocal {
		client := a.newClient(creds)
		if err := client.Connect(ctx); err != nil {
			a.log.Warn("Connect for logout failed", zap.Error(err))
		} else if ok, _ := client.IsAuthorized(ctx); ok {
			if err := client.LogOut(ctx); err != nil {
				a.log.Warn("Server logout failed", zap.Error(err))
				fmt.Printf("Warning: server logout failed: %v\n", err)
			}
		}
		_ = client.Disconnect()
	}

	if a.sessions.Delete(creds.Phone) {
		fmt.Println("Session removed.")
	}
	if err := a.store.Remove(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
