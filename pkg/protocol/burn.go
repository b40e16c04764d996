package protocol

// BurnRequest is the payload pushed from the coordinator to a burner.
type BurnRequest struct {
	Date      string
	Image     string
	Committer string
}

// SendBurnRequest performs the full "Please burn" exchange as the
// initiator (the coordinator, pushing a job to a burner). The handshake
// must already have completed on c. It returns ErrRefused if the burner
// declined, or a *ProtocolError for anything else unexpected.
func SendBurnRequest(c *LineConn, req BurnRequest) error {
	if err := c.WriteLines(CmdBurn, req.Date, req.Image, req.Committer); err != nil {
		return err
	}
	reply, err := c.ReadLine()
	if err != nil {
		return err
	}
	switch reply {
	case Ack:
		return nil
	case MsgNoSuchIso:
		return ErrRefused
	default:
		return &ProtocolError{Expected: Ack + " or " + MsgNoSuchIso, Got: reply}
	}
}

// ReadBurnRequestBody reads the body of a "Please burn" exchange as the
// acceptor (the burner), after the CmdBurn command line has already been
// read by the caller's dispatch loop. The caller decides whether to ACK
// or refuse by calling AcceptBurn or RefuseBurn.
func ReadBurnRequestBody(c *LineConn) (BurnRequest, error) {
	var req BurnRequest
	date, err := c.ReadLine()
	if err != nil {
		return req, err
	}
	req.Date = date

	image, err := c.ReadLine()
	if err != nil {
		return req, err
	}
	req.Image = image

	committer, err := c.ReadLine()
	if err != nil {
		return req, err
	}
	req.Committer = committer

	return req, nil
}

// AcceptBurn replies to a pushed burn request with ACK.
func AcceptBurn(c *LineConn) error { return c.WriteLine(Ack) }

// RefuseBurn replies to a pushed burn request with "I don't have it".
func RefuseBurn(c *LineConn) error { return c.WriteLine(MsgNoSuchIso) }

// BurnReport is the payload of a "Burn successful"/"Burn unsuccessful"
// exchange, sent by a burner back to the coordinator.
type BurnReport struct {
	Burner    string
	Image     string
	Committer string
}

// SendBurnReport performs a full completion/failure report exchange as
// the initiator (the burner). cmd must be CmdBurnSuccess or CmdBurnError.
func SendBurnReport(c *LineConn, cmd string, report BurnReport) error {
	if err := c.WriteLines(cmd, report.Burner, report.Image, report.Committer); err != nil {
		return err
	}
	return expectAck(c)
}

// ReadBurnReportBody reads the body of a completion/failure report as
// the acceptor (the coordinator), after the command line has already
// been read. It sends the ACK itself on success.
func ReadBurnReportBody(c *LineConn) (BurnReport, error) {
	var report BurnReport
	name, err := c.ReadLine()
	if err != nil {
		return report, err
	}
	report.Burner = name

	image, err := c.ReadLine()
	if err != nil {
		return report, err
	}
	report.Image = image

	committer, err := c.ReadLine()
	if err != nil {
		return report, err
	}
	report.Committer = committer

	if err := c.WriteLine(Ack); err != nil {
		return report, err
	}
	return report, nil
}

// SendBye performs the full "Bye bye" exchange as the initiator. name is
// sent only when the initiator is a worker (per the wire table, the
// coordinator sends no extra line); pass "" when the coordinator is
// closing a connection to a burner.
func SendBye(c *LineConn, name string) error {
	if err := c.WriteLine(CmdBye); err != nil {
		return err
	}
	if name != "" {
		if err := c.WriteLine(name); err != nil {
			return err
		}
	}
	return expectAck(c)
}

// ReadByeBody reads the optional burner-name line of a "Bye bye"
// exchange as the acceptor, when fromWorker is true, and ACKs it.
func ReadByeBody(c *LineConn, fromWorker bool) (string, error) {
	var name string
	if fromWorker {
		n, err := c.ReadLine()
		if err != nil {
			return "", err
		}
		name = n
	}
	if err := c.WriteLine(Ack); err != nil {
		return name, err
	}
	return name, nil
}
