package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/hkuds/tgcopy/internal/auth"
	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/platform"
	"github.com/hkuds/tgcopy/internal/telegram"
	"github.com/hkuds/tgcopy/internal/tui"
)

var (
	loginQR      bool
	loginAPIID   int
	loginAPIHash string
	loginPhone   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a Telegram account",
	Long: `Sign in to a Telegram user account. The API ID and hash come from
https://my.telegram.org; they are asked for interactively unless given as
flags or through TGCOPY_API_ID, TGCOPY_API_HASH and TGCOPY_PHONE.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginQR, "qr", false, "sign in by scanning a QR code instead of entering a code")
	loginCmd.Flags().IntVar(&loginAPIID, "api-id", 0, "Telegram API ID")
	loginCmd.Flags().StringVar(&loginAPIHash, "api-hash", "", "Telegram API hash")
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "phone number in international format")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, ctx, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.store.Load()
	if err != nil && !errors.Is(err, config.ErrNoCredentials) {
		return err
	}
	if loginAPIID > 0 {
		creds.APIID = loginAPIID
	}
	if loginAPIHash != "" {
		creds.APIHash = loginAPIHash
	}
	if loginPhone != "" {
		creds.Phone = loginPhone
	}

	if creds.Validate() != nil {
		creds, err = tui.RunCredentialsSetup(ctx, creds)
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}
	if err := a.store.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	client := a.newClient(creds)
	defer func() { _ = client.Disconnect() }()

	var already bool
	if loginQR {
		already, err = qrLogin(ctx, client)
	} else {
		flow := &auth.Flow{
			Client:      client,
			Phone:       creds.Phone,
			Codes:       auth.CodeFunc(tui.PromptCode),
			Passwords:   auth.PasswordFunc(tui.PromptPassword),
			CodeTimeout: a.cfg.Client.CodeTimeout(),
			OnStatus: func(s auth.Status) {
				if s.Step != "" {
					fmt.Println(s.Step)
				}
				fmt.Println(s.Text)
			},
		}
		already, err = flow.Login(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	if already {
		fmt.Println("Already logged in.")
	} else {
		fmt.Println("Login successful!")
	}
	fmt.Println("You can now:")
	fmt.Println("  - List your chats:  tgcopy chats")
	fmt.Println("  - Copy a chat:      tgcopy copy")
	fmt.Println("  - View status:      tgcopy status")
	return nil
}

// qrLogin signs in by showing a login token as a QR code for another
// logged-in device to scan.
func qrLogin(ctx context.Context, client *telegram.Client) (bool, error) {
	fmt.Println("Connecting to Telegram...")
	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	ok, err := client.IsAuthorized(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	fmt.Println("Scan the code in Telegram: Settings > Devices > Link Desktop Device")
	err = client.QRLogin(ctx, os.Stdout)
	if errors.Is(err, platform.ErrPasswordNeeded) {
		var password string
		password, err = tui.PromptPassword(ctx)
		if err == nil {
			err = client.CheckPassword(ctx, password)
		}
	}
	if err != nil {
		return false, fmt.Errorf("login failed: %w", err)
	}
	return false, nil
}
