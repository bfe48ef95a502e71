// Package session stores the MTProto sessions of signed-in accounts, one
// file per phone number.
package session

import (
	"time"
)

// Info describes a stored session file
type Info struct {
	Phone     string    `json:"phone"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Age returns how long ago the session was last written
func (i Info) Age(now time.Time) time.Duration {
	return now.Sub(i.UpdatedAt)
}
