// Package storage persists the coordinator's state root: the burner
// registry and the three job sequences, kept in a single file.
package storage

import "github.com/BackupTheBerlios/custom-burner-svn/pkg/types"

// Snapshot is the persistence root: the burner registry plus the three
// job sequences. AvailableImages is derived and deliberately not part
// of the snapshot; it is rebuilt from Burners on load.
type Snapshot struct {
	Burners   map[string]types.Burner
	Pending   []types.Job
	Inflight  []types.Job
	Completed []types.Job
}

// EmptySnapshot returns a Snapshot with initialized, empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Burners:   make(map[string]types.Burner),
		Pending:   []types.Job{},
		Inflight:  []types.Job{},
		Completed: []types.Job{},
	}
}

// Store loads and saves the coordinator's persistence root.
type Store interface {
	// Load returns the last saved Snapshot, or an empty Snapshot if none
	// exists yet or the on-disk file was unreadable.
	Load() (Snapshot, error)
	// Save serializes snap under lock and replaces the persisted file.
	Save(snap Snapshot) error
	// Close releases the underlying file handle.
	Close() error
}
