package ui

import "time"

// tickMsg drives the snapshot poll.
type tickMsg time.Time

// clipboardMsg is the result of a clipboard import.
type clipboardMsg struct {
	Added int
	Err   error
}
