package backend

import (
	"context"

	"usaha/internal/reminder"
	"usaha/internal/store"
)

// Remote is the persistence used for signed-in owners. It also serves the
// reminder worker, which reads owners, markers and profiles from it.
type Remote interface {
	store.Backend
	Profiles
}

// Profiles stores where each owner receives reminders.
type Profiles interface {
	SetProfile(ctx context.Context, owner string, r reminder.Recipient) error
	reminder.Recipients
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the backends built from one Config.
type Result struct {
	Remote Remote
	// Local persists guest data. Nil disables guest mode.
	Local store.Backend
	// Ready reports whether Remote answers. Nil means always ready.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Memory specific. An empty SeedFile starts with no data.
	SeedFile string

	// LocalDataDir holds one blob per guest. Empty disables guest mode.
	LocalDataDir string
}

// Type names a remote backend.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
