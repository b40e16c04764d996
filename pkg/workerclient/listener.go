package workerclient

import (
	"context"
	"net"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
)

// ListenAndServe accepts pushed burn requests on cfg.ListenAddr until
// ctx is cancelled. Every connection carries exactly one exchange:
// handshake, then a single CmdBurn, accepted or refused depending on
// whether this burner reports holding the requested image.
func (c *Client) ListenAndServe(ctx context.Context) error {
	lcfg := net.ListenConfig{}
	ln, err := lcfg.Listen(ctx, "tcp", c.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	c.logger.Info().Str("addr", ln.Addr().String()).Msg("accepting pushed burns")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("accept failed")
			continue
		}
		go c.handlePush(ctx, conn)
	}
}

func (c *Client) handlePush(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.AcceptHandshake(lc); err != nil {
		c.logger.Warn().Err(err).Msg("handshake failed on pushed connection")
		return
	}

	cmd, err := lc.ReadLine()
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read command")
		return
	}
	if cmd != protocol.CmdBurn {
		c.logger.Warn().Str("command", cmd).Msg("unexpected command on pushed connection")
		return
	}

	req, err := protocol.ReadBurnRequestBody(lc)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read burn request body")
		return
	}

	if !c.hasImage(req.Image) {
		c.logger.Warn().Str("image", req.Image).Msg("refusing burn for unheld image")
		if err := protocol.RefuseBurn(lc); err != nil {
			c.logger.Warn().Err(err).Msg("failed to send refusal")
		}
		return
	}

	if err := protocol.AcceptBurn(lc); err != nil {
		c.logger.Warn().Err(err).Msg("failed to accept burn")
		return
	}

	go c.runAndReport(ctx, req)
}

func (c *Client) hasImage(image string) bool {
	for _, img := range c.cfg.Images {
		if img == image {
			return true
		}
	}
	return false
}

// runAndReport runs the burn outside of the connection that requested
// it (which has already been closed) and reports the outcome on a
// fresh connection, matching the protocol's one-exchange-per-connection
// rule.
func (c *Client) runAndReport(ctx context.Context, req protocol.BurnRequest) {
	logger := c.logger.With().Str("image", req.Image).Str("committer", req.Committer).Logger()
	logger.Info().Msg("burn started")

	err := c.cfg.Runner.Run(ctx, req.Image)
	success := err == nil
	if success {
		logger.Info().Msg("burn succeeded")
	} else {
		logger.Error().Err(err).Msg("burn failed")
	}

	if reportErr := c.ReportOutcome(ctx, success, req.Image, req.Committer); reportErr != nil {
		logger.Error().Err(reportErr).Msg("failed to report burn outcome to coordinator")
	}
}
