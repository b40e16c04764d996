// Package coordinator implements the burner registry, job queue, and
// dispatch engine: the subsystem that matches pending burn jobs to
// idle, image-capable burners and survives restarts by persisting its
// state.
package coordinator

import (
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/storage"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/types"
	"github.com/google/uuid"
	"github.com/jacobsa/timeutil"
	"github.com/rs/zerolog"
)

// dialer opens a fresh outbound connection to a burner. Overridable in
// tests so dispatch can be exercised without real sockets.
type dialer func(address string, port int) (net.Conn, error)

func defaultDialer(address string, port int) (net.Conn, error) {
	return net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), 5*time.Second)
}

// Coordinator owns the registry, the three job sequences, and the
// persistence store. Two locks guard the shared state: registryMu for
// the burner map, jobsMu for the pending/inflight/completed sequences.
// Acquisition order, everywhere: jobsMu before registryMu. Neither lock
// is ever held across network I/O.
type Coordinator struct {
	registryMu sync.RWMutex
	burners    map[string]types.Burner

	jobsMu    sync.Mutex
	pending   []types.Job
	inflight  []types.Job
	completed []types.Job

	persistMu sync.Mutex
	store     storage.Store

	clock  timeutil.Clock
	logger zerolog.Logger
	dial   dialer

	retryPolicy        types.RetryPolicy
	registrationPolicy types.RegistrationPolicy

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// Config configures a new Coordinator. A zero RetryPolicy is replaced
// by DefaultRetryPolicy, so unbounded retries cannot be selected here.
type Config struct {
	Store              storage.Store
	Clock              timeutil.Clock
	RetryPolicy        types.RetryPolicy
	RegistrationPolicy types.RegistrationPolicy
}

// New creates a Coordinator and loads any previously persisted state.
func New(cfg Config) (*Coordinator, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}
	retryPolicy := cfg.RetryPolicy
	if retryPolicy == (types.RetryPolicy{}) {
		retryPolicy = types.DefaultRetryPolicy
	}

	c := &Coordinator{
		burners:            make(map[string]types.Burner),
		store:              cfg.Store,
		clock:              clock,
		logger:             log.WithComponent("coordinator"),
		dial:               func(a string, p int) (net.Conn, error) { return defaultDialer(a, p) },
		retryPolicy:        retryPolicy,
		registrationPolicy: cfg.RegistrationPolicy,
	}

	snap, err := cfg.Store.Load()
	if err != nil {
		return nil, err
	}
	c.burners = snap.Burners
	if c.burners == nil {
		c.burners = make(map[string]types.Burner)
	}
	c.pending = snap.Pending
	c.inflight = snap.Inflight
	c.completed = snap.Completed

	return c, nil
}

func newJobID() string {
	return uuid.NewString()
}

// persist snapshots the full four-tuple, copying the job sequences
// under jobsMu and then the burner map under registryMu (one lock at a
// time, so the two halves are not taken atomically together), then
// writes it to the store outside of them. Persistence failures are logged and
// the in-memory state is kept unchanged; a subsequent write can still
// succeed.
func (c *Coordinator) persist() {
	snap := c.snapshotForPersist()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.store.Save(snap); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist coordinator state; in-memory state kept")
	}
}

func (c *Coordinator) snapshotForPersist() storage.Snapshot {
	c.jobsMu.Lock()
	pending := append([]types.Job(nil), c.pending...)
	inflight := append([]types.Job(nil), c.inflight...)
	completed := append([]types.Job(nil), c.completed...)
	c.jobsMu.Unlock()

	c.registryMu.RLock()
	burners := make(map[string]types.Burner, len(c.burners))
	for k, v := range c.burners {
		burners[k] = v
	}
	c.registryMu.RUnlock()

	return storage.Snapshot{
		Burners:   burners,
		Pending:   pending,
		Inflight:  inflight,
		Completed: completed,
	}
}

// availableImagesLocked rebuilds the derived set of images known to be
// available somewhere in the fleet. Caller must hold registryMu (R or
// full lock).
func (c *Coordinator) availableImagesLocked() []string {
	set := make(map[string]struct{})
	for _, b := range c.burners {
		for _, img := range b.Images {
			set[img] = struct{}{}
		}
	}
	images := make([]string, 0, len(set))
	for img := range set {
		images = append(images, img)
	}
	sort.Strings(images)
	return images
}

// Close releases the persistence store's file handle.
func (c *Coordinator) Close() error {
	return c.store.Close()
}
