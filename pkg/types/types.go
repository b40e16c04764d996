// Package types holds the coordinator's persisted data model: burners,
// jobs, and the snapshots handed out to the operator UI.
package types

import "time"

// Assignment describes the job a busy burner is currently working on.
type Assignment struct {
	Image     string
	Committer string
	Date      string
}

// Burner is one registered worker machine.
type Burner struct {
	Name         string
	Address      string
	Port         int
	Images       []string
	Busy         bool
	Current      *Assignment
	RegisteredAt time.Time
}

// HasImage reports whether the burner reported holding the named image.
func (b *Burner) HasImage(image string) bool {
	for _, i := range b.Images {
		if i == image {
			return true
		}
	}
	return false
}

// Job is one burn request, tracked through pending -> in-flight ->
// completed.
type Job struct {
	// ID is an opaque handle minted at enqueue time, preferred over
	// value-equality for operator cancellation.
	ID string

	Date      string
	Image     string
	Committer string

	// Burner is set once a job leaves pending (in-flight or completed).
	Burner string

	// Failures counts how many times this job has been reinserted at the
	// head of pending after a failed burn. See RetryPolicy.
	Failures int

	// Abandoned marks a job moved straight to completed after exceeding
	// RetryPolicy.MaxRetries, instead of succeeding.
	Abandoned bool
}

// SameRequest reports value-equality on the fields that identify a
// pending request, ignoring ID/Burner/Failures/Abandoned. Used for
// cancellation callers that only have the original {image, committer,
// date} triple.
func (j Job) SameRequest(other Job) bool {
	return j.Date == other.Date && j.Image == other.Image && j.Committer == other.Committer
}

// RegistrationPolicy controls what happens when a burner name that is
// already registered registers again.
type RegistrationPolicy int

const (
	// PolicyReplace discards the old record and keeps the new one. This
	// is the default: a second registration's image set wins.
	PolicyReplace RegistrationPolicy = iota
	// PolicyReject keeps the existing record and logs a warning instead
	// of overwriting it.
	PolicyReject
)

// RetryPolicy bounds how many times a failed job is retried before it is
// abandoned instead of being reinserted at the head of pending forever.
type RetryPolicy struct {
	// MaxRetries is the maximum number of times a job may be reinserted
	// after failure. Zero disables the bound (unlimited retries).
	MaxRetries int
}

// DefaultRetryPolicy caps retries instead of reinserting a failing job
// at the head of pending forever.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 5}

// BurnerSnapshot is a read-only, by-value view of a Burner handed to the
// operator UI; the UI must never be able to mutate live coordinator
// state through it.
type BurnerSnapshot struct {
	Name    string
	Address string
	Port    int
	Busy    bool
	Current *Assignment
}

// Stats summarizes coordinator state for a UI status line.
type Stats struct {
	Burners   int
	Idle      int
	Pending   int
	Inflight  int
	Completed int
}
