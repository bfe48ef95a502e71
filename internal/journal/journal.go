// Package journal records which source messages were copied to a
// destination, so later runs can skip them.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// Journal is an append-only record of copied message IDs for one
// source/destination pair. One ID per line.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	msgIDs map[int]struct{}
}

// FileName returns the journal file name of a source/destination pair.
func FileName(source, dest int64) string {
	return fmt.Sprintf("%d_%d.txt", source, dest)
}

// Open loads the journal of source→dest from dir, creating it if needed.
func Open(dir string, source, dest int64) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}

	path := filepath.Join(dir, FileName(source, dest))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	j := &Journal{path: path, file: f, msgIDs: make(map[int]struct{})}

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := strconv.Atoi(text)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		j.msgIDs[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "read %s", path)
	}

	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// IsRecorded reports whether msgID was copied before.
func (j *Journal) IsRecorded(msgID int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.msgIDs[msgID]
	return ok
}

// Record appends msgID to the journal.
func (j *Journal) Record(msgID int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.msgIDs[msgID]; ok {
		return nil
	}
	if _, err := j.file.WriteString(strconv.Itoa(msgID) + "\n"); err != nil {
		return errors.Wrap(err, "write journal")
	}
	j.msgIDs[msgID] = struct{}{}
	return nil
}

// Len returns the number of recorded messages.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.msgIDs)
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Reset truncates the journal of source→dest in dir.
func Reset(dir string, source, dest int64) error {
	err := os.Remove(filepath.Join(dir, FileName(source, dest)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove journal")
	}
	return nil
}
