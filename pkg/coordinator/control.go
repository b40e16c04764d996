package coordinator

import (
	"context"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
)

// EnqueueAndDispatch enqueues a new burn request and immediately tries
// to dispatch it (and anything else pending) to an idle burner. This
// is the entry point used by the operator control surface's "submit
// burn" action.
func (c *Coordinator) EnqueueAndDispatch(date, image, committer string) string {
	job := c.Enqueue(date, image, committer)
	c.TriggerRefresh()
	return job.ID
}

// RegisterAndDispatch registers a burner and immediately tries to
// dispatch pending work to it. This is the entry point the ingress
// server calls once a CmdRegister exchange completes.
func (c *Coordinator) RegisterAndDispatch(name, address string, port int, images []string) {
	c.Register(name, address, port, images)
	c.TriggerRefresh()
}

// Shutdown marks the coordinator as no longer accepting new dispatch
// work, says goodbye to every registered burner on a best-effort basis,
// and flushes the current state to disk. It does not forcibly interrupt
// any burn already in flight; such a job stays in the persisted
// in-flight sequence until its burner reports on it or says goodbye
// (a re-registration of the burner does not requeue it).
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	c.shuttingDown = true
	c.shutdownMu.Unlock()

	c.sayGoodbyeToAll(ctx)

	c.persist()
	return c.Close()
}

// sayGoodbyeToAll opens a fresh connection to each registered burner and
// sends a goodbye. Failures are logged, not raised; a burner that is
// unreachable at shutdown time will simply notice the connection drop
// on its own.
func (c *Coordinator) sayGoodbyeToAll(ctx context.Context) {
	for _, b := range c.ListBurners() {
		if err := c.sayGoodbyeTo(b.Address, b.Port); err != nil {
			c.logger.Warn().Str("burner", b.Name).Err(err).Msg("could not say goodbye to burner")
		}
	}
}

func (c *Coordinator) sayGoodbyeTo(address string, port int) error {
	conn, err := c.dial(address, port)
	if err != nil {
		return protocol.NewTransportError("dial", err)
	}
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.InitiateHandshake(lc); err != nil {
		return err
	}
	return protocol.SendBye(lc, "")
}

// ShuttingDown reports whether Shutdown has been called.
func (c *Coordinator) ShuttingDown() bool {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()
	return c.shuttingDown
}
