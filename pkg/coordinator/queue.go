package coordinator

import "github.com/BackupTheBerlios/custom-burner-svn/pkg/types"

// Enqueue appends a new burn request to the pending sequence and
// returns the Job it created, stamped with a fresh ID.
func (c *Coordinator) Enqueue(date, image, committer string) types.Job {
	job := types.Job{
		ID:        newJobID(),
		Date:      date,
		Image:     image,
		Committer: committer,
	}

	c.jobsMu.Lock()
	c.pending = append(c.pending, job)
	c.jobsMu.Unlock()

	c.logger.Info().Str("job", job.ID).Str("image", image).Str("committer", committer).
		Msg("job enqueued")
	c.persist()
	return job
}

// CancelPending removes a job from pending. If req.ID is set, the match
// is by ID; otherwise it falls back to value-equality on req's
// image/committer/date triple, for callers that only know what they
// originally submitted. Jobs already in-flight or completed are not
// cancellable.
func (c *Coordinator) CancelPending(req types.Job) bool {
	var removed types.Job
	found := false

	c.jobsMu.Lock()
	for i, j := range c.pending {
		matched := j.ID == req.ID
		if req.ID == "" {
			matched = j.SameRequest(req)
		}
		if matched {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			removed = j
			found = true
			break
		}
	}
	c.jobsMu.Unlock()

	if found {
		c.logger.Info().Str("job", removed.ID).Msg("pending job cancelled")
		c.persist()
	}
	return found
}

// ListPending, ListInflight and ListCompleted return read-only copies
// of the corresponding job sequence.
func (c *Coordinator) ListPending() []types.Job {
	c.jobsMu.Lock()
	defer c.jobsMu.Unlock()
	return append([]types.Job(nil), c.pending...)
}

func (c *Coordinator) ListInflight() []types.Job {
	c.jobsMu.Lock()
	defer c.jobsMu.Unlock()
	return append([]types.Job(nil), c.inflight...)
}

func (c *Coordinator) ListCompleted() []types.Job {
	c.jobsMu.Lock()
	defer c.jobsMu.Unlock()
	return append([]types.Job(nil), c.completed...)
}

// Stats summarizes the current registry and queue sizes for the
// operator UI's status line.
func (c *Coordinator) Stats() types.Stats {
	c.jobsMu.Lock()
	stats := types.Stats{
		Pending:   len(c.pending),
		Inflight:  len(c.inflight),
		Completed: len(c.completed),
	}
	c.jobsMu.Unlock()

	c.registryMu.RLock()
	stats.Burners = len(c.burners)
	for _, b := range c.burners {
		if !b.Busy {
			stats.Idle++
		}
	}
	c.registryMu.RUnlock()

	return stats
}

// requeueAtHeadLocked reinserts job at the front of pending. Caller
// must hold jobsMu.
func (c *Coordinator) requeueAtHeadLocked(job types.Job) {
	c.pending = append([]types.Job{job}, c.pending...)
}

// moveToInflightLocked records job as running on burner. Caller must
// hold jobsMu.
func (c *Coordinator) moveToInflightLocked(job types.Job, burner string) types.Job {
	job.Burner = burner
	c.inflight = append(c.inflight, job)
	return job
}

// takeInflightLocked removes and returns the in-flight job assigned to
// burner for image, if any. Caller must hold jobsMu.
func (c *Coordinator) takeInflightLocked(burner, image string) (types.Job, bool) {
	for i, j := range c.inflight {
		if j.Burner == burner && j.Image == image {
			c.inflight = append(c.inflight[:i], c.inflight[i+1:]...)
			return j, true
		}
	}
	return types.Job{}, false
}

// completeLocked appends job to completed. Caller must hold jobsMu.
func (c *Coordinator) completeLocked(job types.Job) {
	c.completed = append(c.completed, job)
}

// removePendingByIDLocked removes and returns the pending job with the
// given ID, if it is still there. Caller must hold jobsMu.
func (c *Coordinator) removePendingByIDLocked(id string) (types.Job, bool) {
	for i, j := range c.pending {
		if j.ID == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return j, true
		}
	}
	return types.Job{}, false
}

// pendingHasIDLocked reports whether id is still present in pending.
// Caller must hold jobsMu.
func (c *Coordinator) pendingHasIDLocked(id string) bool {
	for _, j := range c.pending {
		if j.ID == id {
			return true
		}
	}
	return false
}
