package coordinator

import "github.com/BackupTheBerlios/custom-burner-svn/pkg/types"

// Register adds or replaces a burner's registration, per
// RegistrationPolicy. A freshly registered burner is always idle.
func (c *Coordinator) Register(name, address string, port int, images []string) {
	logger := c.logger.With().Str("burner", name).Logger()

	changed := func() bool {
		c.registryMu.Lock()
		defer c.registryMu.Unlock()

		if _, exists := c.burners[name]; exists && c.registrationPolicy == types.PolicyReject {
			logger.Warn().Msg("duplicate registration rejected, keeping existing record")
			return false
		}

		c.burners[name] = types.Burner{
			Name:         name,
			Address:      address,
			Port:         port,
			Images:       append([]string(nil), images...),
			Busy:         false,
			RegisteredAt: c.clock.Now(),
		}
		return true
	}()

	if changed {
		logger.Info().Int("images", len(images)).Msg("burner registered")
		c.persist()
	}
}

// Forget removes a burner from the registry, e.g. on a clean goodbye.
// It does not touch any job the burner may have had in flight; the
// caller is responsible for requeuing that separately.
func (c *Coordinator) Forget(name string) {
	c.registryMu.Lock()
	_, existed := c.burners[name]
	delete(c.burners, name)
	c.registryMu.Unlock()

	if existed {
		c.logger.Info().Str("burner", name).Msg("burner forgotten")
		c.persist()
	}
}

// markBusyLocked and markFreeLocked assume registryMu is already held
// for writing; they exist so dispatch.go can flip a burner's state as
// part of a larger locked section without re-entering the lock.
func (c *Coordinator) markBusyLocked(name string, assignment types.Assignment) {
	b, ok := c.burners[name]
	if !ok {
		return
	}
	b.Busy = true
	b.Current = &assignment
	c.burners[name] = b
}

func (c *Coordinator) markFreeLocked(name string) {
	b, ok := c.burners[name]
	if !ok {
		return
	}
	b.Busy = false
	b.Current = nil
	c.burners[name] = b
}

// isIdleAndKnownLocked reports whether name is still registered and
// idle. Caller must hold registryMu.
func (c *Coordinator) isIdleAndKnownLocked(name string) bool {
	b, ok := c.burners[name]
	return ok && !b.Busy
}

// ListAvailableImages returns the sorted union of images across all
// registered burners.
func (c *Coordinator) ListAvailableImages() []string {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	return c.availableImagesLocked()
}

// ListBurners returns a read-only snapshot of every registered burner.
func (c *Coordinator) ListBurners() []types.BurnerSnapshot {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()

	out := make([]types.BurnerSnapshot, 0, len(c.burners))
	for _, b := range c.burners {
		out = append(out, types.BurnerSnapshot{
			Name:    b.Name,
			Address: b.Address,
			Port:    b.Port,
			Busy:    b.Busy,
			Current: b.Current,
		})
	}
	return out
}
