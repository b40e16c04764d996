package coordinator

import (
	"errors"
	"net"
	"testing"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer returns a dialer backed by net.Pipe; the caller gets back
// the server half to drive the burner side of the exchange by hand.
func pipeDialer() (dialer, net.Conn) {
	client, server := net.Pipe()
	return func(address string, port int) (net.Conn, error) {
		return client, nil
	}, server
}

func playAcceptingBurner(t *testing.T, server net.Conn) {
	t.Helper()
	go func() {
		lc := protocol.NewLineConn(server)
		require.NoError(t, protocol.AcceptHandshake(lc))
		cmd, err := lc.ReadLine()
		require.NoError(t, err)
		require.Equal(t, protocol.CmdBurn, cmd)
		_, err = protocol.ReadBurnRequestBody(lc)
		require.NoError(t, err)
		require.NoError(t, protocol.AcceptBurn(lc))
		server.Close()
	}()
}

func TestTriggerRefreshDispatchesToIdleCapableBurner(t *testing.T) {
	c, store := newTestCoordinator()
	d, server := pipeDialer()
	c.dial = d
	playAcceptingBurner(t, server)

	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})
	job := c.Enqueue("2026-08-01", "foo.iso", "alice")

	c.TriggerRefresh()

	assert.Empty(t, c.ListPending())
	inflight := c.ListInflight()
	require.Len(t, inflight, 1)
	assert.Equal(t, job.ID, inflight[0].ID)
	assert.Equal(t, "burner-a", inflight[0].Burner)

	burners := c.ListBurners()
	require.Len(t, burners, 1)
	assert.True(t, burners[0].Busy)
	assert.GreaterOrEqual(t, store.saves, 2)
}

func TestTriggerRefreshLeavesJobPendingOnPushFailure(t *testing.T) {
	c, _ := newTestCoordinator()
	c.dial = func(address string, port int) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})
	c.Enqueue("2026-08-01", "foo.iso", "alice")

	c.TriggerRefresh()

	assert.Len(t, c.ListPending(), 1)
	assert.Empty(t, c.ListInflight())
	burners := c.ListBurners()
	require.Len(t, burners, 1)
	assert.False(t, burners[0].Busy)
}

func TestReportSuccessCompletesJobAndFreesBurner(t *testing.T) {
	c, _ := newTestCoordinator()
	d, server := pipeDialer()
	c.dial = d
	playAcceptingBurner(t, server)

	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})
	c.Enqueue("2026-08-01", "foo.iso", "alice")
	c.TriggerRefresh()
	require.Len(t, c.ListInflight(), 1)

	c.ReportSuccess("burner-a", "foo.iso")

	assert.Empty(t, c.ListInflight())
	completed := c.ListCompleted()
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Abandoned)

	burners := c.ListBurners()
	require.Len(t, burners, 1)
	assert.False(t, burners[0].Busy)
}

func TestReportFailureRequeuesThenAbandonsAfterRetryLimit(t *testing.T) {
	c, _ := newTestCoordinator()
	c.retryPolicy = types.RetryPolicy{MaxRetries: 1}
	c.dial = func(address string, port int) (net.Conn, error) {
		return nil, errors.New("unreachable")
	}
	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})

	c.jobsMu.Lock()
	c.inflight = append(c.inflight, types.Job{ID: "job-1", Image: "foo.iso", Committer: "alice", Burner: "burner-a"})
	c.jobsMu.Unlock()
	c.registryMu.Lock()
	c.markBusyLocked("burner-a", types.Assignment{Image: "foo.iso"})
	c.registryMu.Unlock()

	c.ReportFailure("burner-a", "foo.iso")
	pending := c.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Failures)
	assert.False(t, pending[0].Abandoned)

	c.jobsMu.Lock()
	c.inflight = append(c.inflight, pending[0])
	c.pending = nil
	c.jobsMu.Unlock()
	c.registryMu.Lock()
	c.markBusyLocked("burner-a", types.Assignment{Image: "foo.iso"})
	c.registryMu.Unlock()

	c.ReportFailure("burner-a", "foo.iso")

	assert.Empty(t, c.ListPending())
	completed := c.ListCompleted()
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Abandoned)
	assert.Equal(t, 2, completed[0].Failures)
}

func TestGoodbyeRequeuesInflightJobAndForgetsBurner(t *testing.T) {
	c, _ := newTestCoordinator()
	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})

	c.jobsMu.Lock()
	c.inflight = append(c.inflight, types.Job{ID: "job-1", Image: "foo.iso", Committer: "alice", Burner: "burner-a"})
	c.jobsMu.Unlock()
	c.registryMu.Lock()
	c.markBusyLocked("burner-a", types.Assignment{Image: "foo.iso"})
	c.registryMu.Unlock()

	c.Goodbye("burner-a")

	assert.Empty(t, c.ListBurners())
	pending := c.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "job-1", pending[0].ID)
	assert.Empty(t, pending[0].Burner)
}

func TestPeekDispatchCandidatePrefersSortedBurnerName(t *testing.T) {
	c, _ := newTestCoordinator()
	// B registers before A and holds every image A does, plus one more.
	// If burners were tried in registration (map) order instead of
	// sorted-name order, a lucky map iteration could place x.iso on B,
	// stranding y.iso with no idle capable burner.
	c.Register("B", "10.0.0.2", 2000, []string{"x.iso", "y.iso"})
	c.Register("A", "10.0.0.1", 2000, []string{"x.iso"})
	c.Enqueue("2026-08-01", "x.iso", "alice")
	c.Enqueue("2026-08-01", "y.iso", "bob")

	for i := 0; i < 20; i++ {
		cand, ok := c.peekDispatchCandidate(map[string]bool{})
		require.True(t, ok)
		assert.Equal(t, "A", cand.burner.Name)
		assert.Equal(t, "x.iso", cand.job.Image)
	}
}

func TestPeekDispatchCandidateSkipsBusyBurners(t *testing.T) {
	c, _ := newTestCoordinator()
	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})
	c.registryMu.Lock()
	c.markBusyLocked("burner-a", types.Assignment{Image: "foo.iso"})
	c.registryMu.Unlock()
	c.Enqueue("2026-08-01", "foo.iso", "alice")

	_, ok := c.peekDispatchCandidate(map[string]bool{})
	assert.False(t, ok)
}
