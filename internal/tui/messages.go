package tui

import (
	"time"

	"outlookterm/internal/model"
)

// Async message types for Bubble Tea commands.

// fetchResultMsg carries the outcome of one refresh. seq identifies the
// refresh that produced it; results from superseded refreshes are dropped.
type fetchResultMsg struct {
	seq  int
	page model.Page
	err  error
}

// authURLMsg asks the user to sign in at the given URL.
type authURLMsg string

type lastRefreshedMsg time.Time

type actionResultMsg struct {
	action string
	err    error
}

type statusMsg string
