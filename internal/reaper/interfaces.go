package reaper

import "github.com/dairui1/claudia/protocol"

// HealthEntry is one registry entry's point-in-time health, as reported
// by the Manager. Alive reflects the process supervisor's liveness
// check; a session with no child (Paused, Initializing) reports Alive
// true so the sweeper leaves it untouched.
type HealthEntry struct {
	ID     string
	Status protocol.Status
	Alive  bool
}

// SessionSource is the subset of the Session Manager the sweeper needs.
type SessionSource interface {
	HealthSnapshot() []HealthEntry
	MarkCrashed(id string, message string) error
}
