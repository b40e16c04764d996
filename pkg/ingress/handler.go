package ingress

import (
	"net"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/protocol"
)

// handleConn performs the handshake on a freshly accepted connection,
// reads the one command it carries, and feeds it into the coordinator.
// Per the wire protocol each connection carries exactly one exchange;
// the connection is always closed before handleConn returns.
func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()

	lc := protocol.NewLineConn(conn)
	if err := protocol.AcceptHandshake(lc); err != nil {
		s.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("handshake failed")
		return err
	}

	cmd, err := lc.ReadLine()
	if err != nil {
		return err
	}

	switch cmd {
	case protocol.CmdRegister:
		return s.handleRegister(lc, conn)
	case protocol.CmdBurnSuccess:
		return s.handleBurnReport(lc, true)
	case protocol.CmdBurnError:
		return s.handleBurnReport(lc, false)
	case protocol.CmdBye:
		return s.handleBye(lc)
	default:
		return &protocol.ProtocolError{
			Expected: protocol.CmdRegister + "/" + protocol.CmdBurnSuccess + "/" + protocol.CmdBurnError + "/" + protocol.CmdBye,
			Got:      cmd,
		}
	}
}

func (s *Server) handleRegister(lc *protocol.LineConn, conn net.Conn) error {
	if err := lc.WriteLine(protocol.Ack); err != nil {
		return err
	}

	info, err := protocol.ReadRegisterBody(lc)
	if err != nil {
		return err
	}

	address := remoteHost(conn)
	s.coord.RegisterAndDispatch(info.Name, address, info.Port, info.Images)
	return nil
}

func (s *Server) handleBurnReport(lc *protocol.LineConn, success bool) error {
	report, err := protocol.ReadBurnReportBody(lc)
	if err != nil {
		return err
	}

	if success {
		s.coord.ReportSuccess(report.Burner, report.Image)
	} else {
		s.coord.ReportFailure(report.Burner, report.Image)
	}
	return nil
}

func (s *Server) handleBye(lc *protocol.LineConn) error {
	name, err := protocol.ReadByeBody(lc, true)
	if err != nil {
		return err
	}
	s.coord.Goodbye(name)
	return nil
}

func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
