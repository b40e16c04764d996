package workerclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err error
}

func (r fakeRunner) Run(ctx context.Context, image string) error { return r.err }

// singlePipeDial returns a dial func that always hands back one fixed
// client connection, and the matching server half for the test to
// drive by hand.
func singlePipeDial() (func(network, address string) (net.Conn, error), net.Conn) {
	client, server := net.Pipe()
	return func(network, address string) (net.Conn, error) {
		return client, nil
	}, server
}

func TestRegisterSendsExpectedPayload(t *testing.T) {
	dial, server := singlePipeDial()
	c := New(Config{
		Name:            "burner-a",
		ListenPort:      9100,
		CoordinatorAddr: "coordinator:9000",
		Images:          []string{"foo.iso", "bar.iso"},
		Runner:          fakeRunner{},
	})
	c.dial = dial

	done := make(chan error, 1)
	go func() { done <- c.Register(context.Background()) }()

	lc := protocol.NewLineConn(server)
	require.NoError(t, protocol.AcceptHandshake(lc))
	info, err := func() (protocol.RegisterInfo, error) {
		cmd, err := lc.ReadLine()
		require.NoError(t, err)
		require.Equal(t, protocol.CmdRegister, cmd)
		require.NoError(t, lc.WriteLine(protocol.Ack))
		return protocol.ReadRegisterBody(lc)
	}()
	require.NoError(t, err)

	assert.Equal(t, "burner-a", info.Name)
	assert.Equal(t, 9100, info.Port)
	assert.Equal(t, []string{"foo.iso", "bar.iso"}, info.Images)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Register did not return")
	}
}

func TestHandlePushRunsAndReportsSuccess(t *testing.T) {
	pushClient, pushServer := net.Pipe()
	reportClient, reportServer := net.Pipe()

	dialCount := 0
	c := New(Config{
		Name:   "burner-a",
		Images: []string{"foo.iso"},
		Runner: fakeRunner{},
	})
	c.dial = func(network, address string) (net.Conn, error) {
		dialCount++
		return reportClient, nil
	}
	_ = pushClient

	go c.handlePush(context.Background(), pushServer)

	coordLC := protocol.NewLineConn(pushClient)
	require.NoError(t, protocol.InitiateHandshake(coordLC))
	require.NoError(t, protocol.SendBurnRequest(coordLC, protocol.BurnRequest{
		Date: "2026-08-01", Image: "foo.iso", Committer: "alice",
	}))

	reportLC := protocol.NewLineConn(reportServer)
	require.NoError(t, protocol.AcceptHandshake(reportLC))
	cmd, err := reportLC.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdBurnSuccess, cmd)
	report, err := protocol.ReadBurnReportBody(reportLC)
	require.NoError(t, err)
	assert.Equal(t, "foo.iso", report.Image)
}

func TestHandlePushRefusesUnheldImage(t *testing.T) {
	pushClient, pushServer := net.Pipe()

	c := New(Config{Name: "burner-a", Images: []string{"bar.iso"}, Runner: fakeRunner{}})

	go c.handlePush(context.Background(), pushServer)

	coordLC := protocol.NewLineConn(pushClient)
	require.NoError(t, protocol.InitiateHandshake(coordLC))
	err := protocol.SendBurnRequest(coordLC, protocol.BurnRequest{
		Date: "2026-08-01", Image: "foo.iso", Committer: "alice",
	})
	assert.ErrorIs(t, err, protocol.ErrRefused)
}
