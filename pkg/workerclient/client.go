// Package workerclient implements the burner side of the wire
// protocol: registering with a coordinator, accepting pushed burn
// requests, running them, and reporting the outcome back.
package workerclient

import (
	"context"
	"net"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
	"github.com/rs/zerolog"
)

// Runner actually performs a burn. Everything about disc-burning
// mechanics is external to this package; Runner is the seam where a
// real implementation (or a test double) plugs in.
type Runner interface {
	Run(ctx context.Context, image string) error
}

// Config configures a Client.
type Config struct {
	// Name is this burner's identity, sent at registration time.
	Name string
	// ListenAddr is the address this burner accepts pushed burns on.
	ListenAddr string
	// ListenPort is the port advertised to the coordinator; it may
	// differ from the actual bound port's numeric value only in tests.
	ListenPort int
	// CoordinatorAddr is host:port of the coordinator's ingress server.
	CoordinatorAddr string
	// Images is the set of image filenames this burner reports holding.
	Images []string
	Runner Runner
}

// Client is one running burner. It is both a client (registering with
// and reporting to the coordinator) and a server (accepting pushed
// burns), matching the symmetric nature of the wire protocol.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	dial   func(network, address string) (net.Conn, error)
}

// New returns a Client ready to run.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		logger: log.WithBurner(cfg.Name),
		dial:   net.Dial,
	}
}

// Register performs the registration exchange with the coordinator:
// dial, handshake as the initiator, then send the registration body.
func (c *Client) Register(ctx context.Context) error {
	conn, err := c.dialCoordinator(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.InitiateHandshake(lc); err != nil {
		return err
	}

	c.logger.Info().Int("images", len(c.cfg.Images)).Msg("registering with coordinator")
	return protocol.SendRegister(lc, protocol.RegisterInfo{
		Name:   c.cfg.Name,
		Port:   c.cfg.ListenPort,
		Images: c.cfg.Images,
	})
}

func (c *Client) dialCoordinator(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, protocol.NewTransportError("dial coordinator", err)
	}
	conn, err := c.dial("tcp", c.cfg.CoordinatorAddr)
	if err != nil {
		return nil, protocol.NewTransportError("dial coordinator", err)
	}
	return conn, nil
}

// ReportOutcome dials the coordinator and reports a completed or
// failed burn. The burner keeps listening for further pushed burns
// afterward; only SayGoodbye closes out the relationship.
func (c *Client) ReportOutcome(ctx context.Context, success bool, image, committer string) error {
	conn, err := c.dialCoordinator(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.InitiateHandshake(lc); err != nil {
		return err
	}

	cmd := protocol.CmdBurnSuccess
	if !success {
		cmd = protocol.CmdBurnError
	}
	return protocol.SendBurnReport(lc, cmd, protocol.BurnReport{
		Burner:    c.cfg.Name,
		Image:     image,
		Committer: committer,
	})
}

// SayGoodbye tells the coordinator this burner is going away cleanly,
// e.g. on a graceful shutdown signal.
func (c *Client) SayGoodbye(ctx context.Context) error {
	conn, err := c.dialCoordinator(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.InitiateHandshake(lc); err != nil {
		return err
	}
	return protocol.SendBye(lc, c.cfg.Name)
}
