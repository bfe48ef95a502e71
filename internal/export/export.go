// Package export writes the conversation list to disk.
package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/hkuds/tgcopy/internal/platform"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.Errorf("unknown export format %q", s)
}

// FileName returns the timestamped export file name.
func FileName(now time.Time, f Format) string {
	return "chat_list_" + now.Format("20060102_150405") + "." + string(f)
}

// Encode renders dialogs as an indented list of {id, title, type,
// unread_count} records. Non-ASCII titles are written as is.
func Encode(dialogs []platform.Dialog, f Format) ([]byte, error) {
	if dialogs == nil {
		dialogs = []platform.Dialog{}
	}

	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(dialogs); err != nil {
			return nil, errors.Wrap(err, "encode yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "encode yaml")
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dialogs); err != nil {
			return nil, errors.Wrap(err, "encode json")
		}
		return buf.Bytes(), nil
	}
}

// Write exports dialogs into dir under a timestamped name and returns the
// path of the written file.
func Write(dir string, dialogs []platform.Dialog, f Format, now time.Time) (string, error) {
	data, err := Encode(dialogs, f)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName(now, f))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write export")
	}
	return path, nil
}

// Read loads an export written by Write, in either format.
func Read(path string) ([]platform.Dialog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read export")
	}

	var dialogs []platform.Dialog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &dialogs)
	default:
		err = json.Unmarshal(data, &dialogs)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return dialogs, nil
}
