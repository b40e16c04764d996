// Package protocol implements the Custom Burner line protocol: the
// newline-terminated handshake and command exchanges used in both
// directions between the coordinator and a burner (worker).
//
// Every literal line in this file is part of the wire interface and must
// not change without breaking compatibility with deployed burners.
package protocol

// Version is the protocol version exchanged during the handshake. Both
// endpoints must send the identical token or the handshake fails.
const Version = "0.5"

// Fixed protocol literals, reproduced verbatim from the original
// implementation's common.py.
const (
	ServerGreeting = "Custom Burner Server"
	ClientGreeting = "Custom Burner Client"

	CmdRegister = "Please register me"
	MsgHasIsos  = "My isos are:"

	CmdBurn = "Please burn"

	CmdBurnSuccess = "Burn successful"
	CmdBurnError   = "Burn unsuccessful"

	MsgNoSuchIso = "I don't have it"

	CmdBye = "Bye bye"

	Ack = "Ok"
)
