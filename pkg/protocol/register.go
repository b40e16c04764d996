package protocol

import (
	"strconv"
)

// RegisterInfo is the payload of a registration exchange: a burner's
// name, the TCP port it listens on for pushed burn requests, and the
// set of image filenames it reports holding.
type RegisterInfo struct {
	Name   string
	Port   int
	Images []string
}

// SendRegister performs the full "Please register me" exchange as the
// initiator (a burner registering with the coordinator). The handshake
// must already have completed on c.
func SendRegister(c *LineConn, info RegisterInfo) error {
	if err := c.WriteLine(CmdRegister); err != nil {
		return err
	}
	if err := expectAck(c); err != nil {
		return err
	}
	if err := c.WriteLines(
		info.Name,
		strconv.Itoa(info.Port),
		MsgHasIsos,
		strconv.Itoa(len(info.Images)),
	); err != nil {
		return err
	}
	for _, img := range info.Images {
		if err := c.WriteLine(img); err != nil {
			return err
		}
	}
	return expectAck(c)
}

// ReadRegisterBody reads the body of a registration exchange as the
// acceptor, after the CmdRegister command line and its ACK have already
// been handled by the caller's dispatch loop. It sends the final ACK
// itself on success.
func ReadRegisterBody(c *LineConn) (RegisterInfo, error) {
	var info RegisterInfo

	name, err := c.ReadLine()
	if err != nil {
		return info, err
	}
	info.Name = name

	portStr, err := c.ReadLine()
	if err != nil {
		return info, err
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil {
		return info, &ProtocolError{Expected: "numeric port", Got: portStr}
	}
	info.Port = port

	marker, err := c.ReadLine()
	if err != nil {
		return info, err
	}
	if marker != MsgHasIsos {
		return info, &ProtocolError{Expected: MsgHasIsos, Got: marker}
	}

	countStr, err := c.ReadLine()
	if err != nil {
		return info, err
	}
	count, convErr := strconv.Atoi(countStr)
	if convErr != nil {
		return info, &ProtocolError{Expected: "numeric image count", Got: countStr}
	}

	images := make([]string, 0, count)
	for i := 0; i < count; i++ {
		img, err := c.ReadLine()
		if err != nil {
			return info, err
		}
		images = append(images, img)
	}
	info.Images = images

	if err := c.WriteLine(Ack); err != nil {
		return info, err
	}
	return info, nil
}

func expectAck(c *LineConn) error {
	got, err := c.ReadLine()
	if err != nil {
		return err
	}
	if got != Ack {
		return &ProtocolError{Expected: Ack, Got: got}
	}
	return nil
}
