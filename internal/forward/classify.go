// Package forward copies the history of one conversation into another: it
// classifies each message against the active filters, sends the retained
// ones oldest first and supervises the connection around the run.
package forward

import (
	"strings"

	"github.com/hkuds/tgcopy/internal/platform"
)

// ContentType is the forwarding tag assigned to a message.
type ContentType int

const (
	Unknown ContentType = iota
	Text
	Photo
	Video
	Document
)

func (c ContentType) String() string {
	switch c {
	case Text:
		return "Text"
	case Photo:
		return "Photo"
	case Video:
		return "Video"
	case Document:
		return "Document"
	default:
		return "Unknown"
	}
}

// FilterConfig selects which content types a run copies.
type FilterConfig struct {
	IncludeText      bool `json:"text"`
	IncludeMedia     bool `json:"media"`
	IncludeDocuments bool `json:"documents"`
}

// Any reports whether at least one content type is selected.
func (f FilterConfig) Any() bool {
	return f.IncludeText || f.IncludeMedia || f.IncludeDocuments
}

// Classified pairs a message with its content type.
type Classified struct {
	Message platform.Message
	Type    ContentType
}

// Classify decides whether msg is copied under f, and as what. The first
// matching rule wins, so a captioned photo is a Text message when text is
// included and its attachment is never looked at.
func Classify(msg platform.Message, f FilterConfig) (bool, ContentType) {
	if msg.HasText() && f.IncludeText {
		return true, Text
	}
	if msg.Media == nil {
		return false, Unknown
	}

	switch msg.Media.Kind {
	case platform.MediaPhoto:
		if f.IncludeMedia {
			return true, Photo
		}
	case platform.MediaDocument:
		if f.IncludeMedia && strings.HasPrefix(msg.Media.MimeType, "video/") {
			return true, Video
		}
		if f.IncludeDocuments {
			return true, Document
		}
	}
	return false, Unknown
}
