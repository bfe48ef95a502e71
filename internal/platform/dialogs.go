package platform

import (
	"sort"
	"strconv"
	"strings"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseChatKind maps a category name, case-insensitively, to a ChatKind.
// "all" and the empty string map to the empty kind, which matches everything.
func ParseChatKind(s string) (ChatKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", true
	case "private", "user", "users":
		return ChatPrivate, true
	case "group", "groups":
		return ChatGroup, true
	case "channel", "channels":
		return ChatChannel, true
	}
	return "", false
}

// FilterDialogs returns the dialogs of the given kind whose title contains
// search, case-insensitively. An empty kind matches every dialog.
func FilterDialogs(dialogs []Dialog, kind ChatKind, search string) []Dialog {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]Dialog, 0, len(dialogs))
	for _, d := range dialogs {
		if kind != "" && d.Kind != kind {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.Title), search) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SortDialogsByTitle orders dialogs by title, then by ID.
func SortDialogsByTitle(dialogs []Dialog) {
	sort.SliceStable(dialogs, func(i, j int) bool {
		ti, tj := strings.ToLower(dialogs[i].Title), strings.ToLower(dialogs[j].Title)
		if ti != tj {
			return ti < tj
		}
		return dialogs[i].ID < dialogs[j].ID
	})
}

// Label renders a dialog the way pickers display it.
func (d Dialog) Label() string {
	icon := ""
	switch d.Kind {
	case ChatPrivate:
		icon = "👤 "
	case ChatGroup:
		icon = "👥 "
	case ChatChannel:
		icon = "📢 "
	}
	return icon + d.Title + " (" + string(d.Kind) + ") [ID: " + formatID(d.ID) + "]"
}
