package coordinator

import (
	"sort"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/types"
)

// dispatchCandidate is a snapshot of one possible pending-job-to-burner
// match, taken while holding both locks but before any network I/O.
type dispatchCandidate struct {
	job    types.Job
	burner types.Burner
}

// TriggerRefresh drives the dispatch engine: it repeatedly looks for a
// pending job and an idle, image-capable burner, pushes the burn to
// that burner, and commits the assignment. It is safe to call from
// multiple triggers (enqueue, registration, burner-idle, periodic
// tick) concurrently; callers are expected to invoke it, not to hold
// any coordinator lock across the call. Once Shutdown has been called
// it does nothing.
func (c *Coordinator) TriggerRefresh() {
	if c.ShuttingDown() {
		return
	}
	skip := make(map[string]bool)

	for {
		cand, ok := c.peekDispatchCandidate(skip)
		if !ok {
			return
		}

		assignment := types.Assignment{Image: cand.job.Image, Committer: cand.job.Committer, Date: cand.job.Date}

		if err := c.pushBurn(cand.burner, assignment); err != nil {
			c.logger.Warn().Str("burner", cand.burner.Name).Str("image", cand.job.Image).Err(err).
				Msg("could not push burn to burner, trying another candidate")
			skip[cand.burner.Name] = true
			continue
		}

		if !c.commitDispatch(cand.job, cand.burner.Name, assignment) {
			// Registry or queue changed between snapshot and commit
			// (burner went busy or disappeared, or the job was
			// cancelled). Don't retry the same burner forever; let the
			// next pass re-evaluate from scratch.
			skip[cand.burner.Name] = true
		}
	}
}

// peekDispatchCandidate looks for a pending job matched to an idle,
// image-capable, non-skipped burner, without mutating anything. The
// acquisition order is jobsMu before registryMu, matching every other
// path through the coordinator. Burners are tried in sorted-name order
// so the outcome is reproducible across runs rather than depending on
// Go's randomized map iteration.
func (c *Coordinator) peekDispatchCandidate(skip map[string]bool) (dispatchCandidate, bool) {
	c.jobsMu.Lock()
	defer c.jobsMu.Unlock()
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()

	names := make([]string, 0, len(c.burners))
	for name := range c.burners {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, job := range c.pending {
		for _, name := range names {
			b := c.burners[name]
			if skip[name] || b.Busy || !b.HasImage(job.Image) {
				continue
			}
			return dispatchCandidate{job: job, burner: b}, true
		}
	}
	return dispatchCandidate{}, false
}

// pushBurn opens a fresh connection to the burner, performs the
// handshake as the initiating side, and sends the burn request. It
// never holds a coordinator lock.
func (c *Coordinator) pushBurn(burner types.Burner, assignment types.Assignment) error {
	conn, err := c.dial(burner.Address, burner.Port)
	if err != nil {
		return protocol.NewTransportError("dial", err)
	}
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.InitiateHandshake(lc); err != nil {
		return err
	}
	return protocol.SendBurnRequest(lc, protocol.BurnRequest{
		Date:      assignment.Date,
		Image:     assignment.Image,
		Committer: assignment.Committer,
	})
}

// commitDispatch reacquires both locks and, only if the burner is
// still registered and idle and the job is still pending, moves the
// job from pending to in-flight and marks the burner busy. It reports
// whether the commit actually happened.
func (c *Coordinator) commitDispatch(job types.Job, burnerName string, assignment types.Assignment) bool {
	c.jobsMu.Lock()
	c.registryMu.Lock()

	committed := c.isIdleAndKnownLocked(burnerName) && c.pendingHasIDLocked(job.ID)
	var moved types.Job
	if committed {
		moved, _ = c.removePendingByIDLocked(job.ID)
		moved = c.moveToInflightLocked(moved, burnerName)
		c.markBusyLocked(burnerName, assignment)
	}

	c.registryMu.Unlock()
	c.jobsMu.Unlock()

	if committed {
		c.logger.Info().Str("job", moved.ID).Str("burner", burnerName).Str("image", moved.Image).
			Msg("burn dispatched")
		c.persist()
	}
	return committed
}

// ReportSuccess records a successful burn reported by burnerName for
// image: the matching in-flight job moves to completed and the burner
// becomes idle again, which may free it up for another pending job.
func (c *Coordinator) ReportSuccess(burnerName, image string) {
	c.jobsMu.Lock()
	job, ok := c.takeInflightLocked(burnerName, image)
	if ok {
		c.completeLocked(job)
	}
	c.jobsMu.Unlock()

	c.registryMu.Lock()
	c.markFreeLocked(burnerName)
	c.registryMu.Unlock()

	if ok {
		c.logger.Info().Str("job", job.ID).Str("burner", burnerName).Msg("burn completed")
	}
	c.persist()
	c.TriggerRefresh()
}

// ReportFailure records a failed burn reported by burnerName for
// image. The job is reinserted at the head of pending unless it has
// already exceeded the retry policy, in which case it is abandoned
// into completed instead. Either way the burner becomes idle again.
func (c *Coordinator) ReportFailure(burnerName, image string) {
	c.jobsMu.Lock()
	job, ok := c.takeInflightLocked(burnerName, image)
	if ok {
		job.Failures++
		job.Burner = ""
		if c.retryPolicy.MaxRetries > 0 && job.Failures > c.retryPolicy.MaxRetries {
			job.Abandoned = true
			c.completeLocked(job)
		} else {
			c.requeueAtHeadLocked(job)
		}
	}
	c.jobsMu.Unlock()

	c.registryMu.Lock()
	c.markFreeLocked(burnerName)
	c.registryMu.Unlock()

	if ok {
		logger := c.logger.With().Str("job", job.ID).Str("burner", burnerName).Int("failures", job.Failures).Logger()
		if job.Abandoned {
			logger.Warn().Msg("burn abandoned after exceeding retry policy")
		} else {
			logger.Warn().Msg("burn failed, requeued at head of pending")
		}
	}
	c.persist()
	c.TriggerRefresh()
}

// Goodbye handles a burner's clean departure: any job it had in flight
// is requeued at the head of pending (the burner offered no verdict on
// it) and the burner is removed from the registry.
func (c *Coordinator) Goodbye(burnerName string) {
	c.jobsMu.Lock()
	for i, j := range c.inflight {
		if j.Burner == burnerName {
			j.Burner = ""
			c.inflight = append(c.inflight[:i], c.inflight[i+1:]...)
			c.requeueAtHeadLocked(j)
			c.logger.Warn().Str("job", j.ID).Str("burner", burnerName).
				Msg("burner disconnected mid-burn, job requeued")
			break
		}
	}
	c.jobsMu.Unlock()

	c.Forget(burnerName)
	c.TriggerRefresh()
}
