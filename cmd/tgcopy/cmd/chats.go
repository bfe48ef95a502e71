package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hkuds/tgcopy/internal/export"
	"github.com/hkuds/tgcopy/internal/logging"
	"github.com/hkuds/tgcopy/internal/platform"
)

var (
	chatsType   string
	chatsSearch string
	chatsExport bool
	chatsFormat string
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List the account's chats",
	Long: `List the chats of the signed-in account with their IDs, which are the
values copy and schedule take for --source and --dest.`,
	RunE: runChats,
}

func init() {
	chatsCmd.Flags().StringVar(&chatsType, "type", "all", "chat type: all, private, group, channel")
	chatsCmd.Flags().StringVar(&chatsSearch, "search", "", "only show chats whose title contains this text")
	chatsCmd.Flags().BoolVar(&chatsExport, "export", false, "write the list to a file in the current directory")
	chatsCmd.Flags().StringVar(&chatsFormat, "format", "json", "export format: json or yaml")
}

func runChats(cmd *cobra.Command, args []string) error {
	kind, ok := platform.ParseChatKind(chatsType)
	if !ok {
		return fmt.Errorf("unknown chat type %q", chatsType)
	}
	format, err := export.ParseFormat(chatsFormat)
	if err != nil {
		return err
	}

	a, ctx, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.credentials()
	if err != nil {
		return err
	}

	all, err := a.loadDialogs(ctx, creds)
	if err != nil {
		return err
	}
	dialogs := platform.FilterDialogs(all, kind, chatsSearch)
	platform.SortDialogsByTitle(dialogs)

	fmt.Printf("%-16s %-8s %7s  %s\n", "ID", "TYPE", "UNREAD", "TITLE")
	for _, d := range dialogs {
		fmt.Printf("%-16d %-8s %7d  %s\n", d.ID, d.Kind, d.UnreadCount, d.Title)
	}
	fmt.Printf("\n%d of %d chats\n", len(dialogs), len(all))

	if chatsExport {
		path, err := export.Write(".", dialogs, format, time.Now())
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		logging.From(ctx).Info("Chat list exported")
		fmt.Printf("Exported to %s\n", path)
	}
	return nil
}
