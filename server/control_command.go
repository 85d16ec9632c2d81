package server

import (
	"bufio"
	"io"
	"strconv"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// Controller is what the control commands expect to find bound at the
// server object id. *Server implements it.
type Controller interface {
	Shutdown()
	CloseConnection(address string, remotePort, localPort int) bool
}

type flusher interface {
	Flush() error
}

// ShutdownCommand stops the whole server. The reply is flushed before the
// shutdown starts so the client sees it.
//
//	s
//	e
type ShutdownCommand struct{ base }

// NewShutdownCommand creates the shutdown command.
func NewShutdownCommand(gw *gateway.Gateway) *ShutdownCommand { return &ShutdownCommand{base{gw}} }

func (c *ShutdownCommand) Code() string { return protocol.ShutdownCommand }

func (c *ShutdownCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	if _, err := protocol.ReadArguments(r); err != nil {
		return err
	}
	if err := writeReply(w, protocol.VoidReply); err != nil {
		return err
	}
	ctrl, ok := c.gw.ControlObject().(Controller)
	if !ok {
		log.Warning("shutdown requested but no control object is bound")
		return nil
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return &protocol.NetworkError{Op: "flush", Err: err}
		}
	}
	log.Notice("shutdown requested by client")
	go ctrl.Shutdown()
	return nil
}

// CancelCommand closes another client connection, identified by its
// remote address and the two ports.
//
//	k
//	<address>
//	<remote port token>
//	<local port token>
//	e
type CancelCommand struct{ base }

// NewCancelCommand creates the cancel command.
func NewCancelCommand(gw *gateway.Gateway) *CancelCommand { return &CancelCommand{base{gw}} }

func (c *CancelCommand) Code() string { return protocol.CancelCommand }

func (c *CancelCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 3); err != nil {
		return writeError(w, err)
	}
	address := protocol.Unescape(lines[0])
	remotePort, err := portValue(lines[1])
	if err != nil {
		return writeError(w, err)
	}
	localPort, err := portValue(lines[2])
	if err != nil {
		return writeError(w, err)
	}
	if ctrl, ok := c.gw.ControlObject().(Controller); ok {
		if !ctrl.CloseConnection(address, remotePort, localPort) {
			log.Debugf("cancel: no connection %s:%d -> %d", address, remotePort, localPort)
		}
	}
	return writeReply(w, protocol.VoidReply)
}

// portValue accepts an integer token or a bare number.
func portValue(token string) (int, error) {
	if n, err := decodeInt(token); err == nil {
		return n, nil
	}
	return strconv.Atoi(token)
}
