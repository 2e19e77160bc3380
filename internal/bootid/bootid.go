// Package bootid identifies one run of the server process. Clients compare it
// across requests to notice restarts.
package bootid

import "time"

// ID is the process start time in unix milliseconds.
type ID int64

// New returns the boot id for a process started at now.
func New(now time.Time) ID {
	return ID(now.UnixMilli())
}

// Int64 returns the JSON value served at /boot-id.
func (id ID) Int64() int64 { return int64(id) }
