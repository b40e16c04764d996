// Package ingress accepts inbound burner connections (registrations,
// completion/failure reports, and goodbyes) and feeds them into a
// coordinator.
package ingress

import (
	"context"
	"errors"
	"net"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/coordinator"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	"github.com/rs/zerolog"
	"github.com/ygrebnov/workers"
)

// Server accepts TCP connections from burners and dispatches each one
// to the coordinator. Connection handling is bounded by a fixed-size
// worker pool so a burst of reconnecting burners cannot spawn an
// unbounded number of goroutines.
type Server struct {
	addr     string
	coord    *coordinator.Coordinator
	logger   zerolog.Logger
	poolSize uint

	// OnReady, if set, is called once the listener is bound, with its
	// actual address. Tests use this to discover an ephemeral port.
	OnReady func(net.Addr)
}

// New returns a Server that will listen on addr and hand accepted
// connections to coord. poolSize bounds the number of connections
// handled concurrently; zero means unbounded (dynamic pool).
func New(addr string, coord *coordinator.Coordinator, poolSize uint) *Server {
	return &Server{
		addr:     addr,
		coord:    coord,
		logger:   log.WithComponent("ingress"),
		poolSize: poolSize,
	}
}

// Serve listens on s.addr and accepts connections until ctx is
// cancelled. Go's net package enables SO_REUSEADDR on TCP listeners by
// default, so a restart can rebind immediately.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("ingress server listening")
	if s.OnReady != nil {
		s.OnReady(ln.Addr())
	}

	pool := s.newPool(ctx)
	pool.Start(ctx)
	go s.drainErrors(pool)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		c := conn
		if taskErr := pool.AddTask(func(taskCtx context.Context) error {
			return s.handleConn(c)
		}); taskErr != nil {
			s.logger.Error().Err(taskErr).Msg("could not queue connection, dropping it")
			c.Close()
		}
	}
}

func (s *Server) newPool(ctx context.Context) workers.Workers[struct{}] {
	opts := []workers.Option{workers.WithStartImmediately()}
	if s.poolSize > 0 {
		opts = append(opts, workers.WithFixedPool(s.poolSize))
	} else {
		opts = append(opts, workers.WithDynamicPool())
	}
	return workers.NewOptions[struct{}](ctx, opts...)
}

func (s *Server) drainErrors(pool workers.Workers[struct{}]) {
	for err := range pool.GetErrors() {
		if err != nil {
			s.logger.Warn().Err(err).Msg("connection handler returned an error")
		}
	}
}
