package manager

import "errors"

// Sentinel errors, matched with errors.Is by callers — the same idiom the
// teacher uses for ErrNotFound/ErrExpired/ErrInvalidImage in
// internal/session.
var (
	ErrNotFound     = errors.New("manager: session not found")
	ErrAtCapacity   = errors.New("manager: max concurrent sessions reached")
	ErrNotPaused    = errors.New("manager: session is not paused")
	ErrTerminal     = errors.New("manager: operation on completed or terminated session")
	ErrNotRunning   = errors.New("manager: session has no running child")
	ErrPersistFailed = errors.New("manager: persistence write failed")
)
