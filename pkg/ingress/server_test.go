package ingress

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/coordinator"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := coordinator.New(coordinator.Config{Store: store})
	require.NoError(t, err)
	return c
}

func startServer(t *testing.T, coord *coordinator.Coordinator) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan net.Addr, 1)
	srv := New("127.0.0.1:0", coord, 4)
	srv.OnReady = func(a net.Addr) { ready <- a }

	go func() {
		_ = srv.Serve(ctx)
	}()

	select {
	case addr := <-ready:
		return addr.String()
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
		return ""
	}
}

func TestServerHandlesRegistration(t *testing.T) {
	coord := newTestCoordinator(t)
	addr := startServer(t, coord)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	require.NoError(t, protocol.InitiateHandshake(lc))
	require.NoError(t, protocol.SendRegister(lc, protocol.RegisterInfo{
		Name:   "burner-a",
		Port:   9100,
		Images: []string{"foo.iso"},
	}))

	require.Eventually(t, func() bool {
		return len(coord.ListBurners()) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServerHandlesBurnReport(t *testing.T) {
	coord := newTestCoordinator(t)
	coord.Register("burner-a", "10.0.0.1", 9100, []string{"foo.iso"})
	addr := startServer(t, coord)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	require.NoError(t, protocol.InitiateHandshake(lc))
	require.NoError(t, protocol.SendBurnReport(lc, protocol.CmdBurnSuccess, protocol.BurnReport{
		Burner:    "burner-a",
		Image:     "foo.iso",
		Committer: "alice",
	}))

	require.Eventually(t, func() bool {
		for _, b := range coord.ListBurners() {
			if b.Name == "burner-a" {
				return !b.Busy
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
