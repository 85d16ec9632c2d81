package server

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/chazu/gobridge/protocol"
)

// ConnectionID identifies a client connection the way the cancel command
// names it.
type ConnectionID struct {
	Address    string
	RemotePort int
	LocalPort  int
}

func (id ConnectionID) String() string {
	return fmt.Sprintf("%s:%d->%d", id.Address, id.RemotePort, id.LocalPort)
}

func connectionID(conn net.Conn) ConnectionID {
	var id ConnectionID
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		id.Address = addr.IP.String()
		id.RemotePort = addr.Port
	} else if addr := conn.RemoteAddr(); addr != nil {
		id.Address = addr.String()
	}
	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		id.LocalPort = addr.Port
	}
	return id
}

// Connection serves one client: it reads commands, dispatches them and
// writes one reply per command until the client quits or the socket fails.
type Connection struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	id     ConnectionID

	closeOnce sync.Once
}

func newConnection(s *Server, conn net.Conn) *Connection {
	return &Connection{
		server: s,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		id:     connectionID(conn),
	}
}

// ID returns the connection's address and ports.
func (c *Connection) ID() ConnectionID { return c.id }

// Close closes the socket. The serving loop notices and ends.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

func (c *Connection) run() {
	defer func() {
		if err := c.Close(); err != nil {
			log.Debugf("closing %s: %s", c.id, err)
		}
		c.server.removeConnection(c)
	}()

	authenticated := c.server.authToken == ""
	for {
		if t := c.server.readTimeout; t > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(t))
		}
		code, err := protocol.ReadLine(c.reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("connection %s: %s", c.id, err)
			}
			return
		}
		if code == protocol.Quit {
			log.Debugf("connection %s quit", c.id)
			return
		}

		if !authenticated {
			if authenticated, err = c.authenticate(code); err != nil || !authenticated {
				if err != nil {
					log.Debugf("connection %s: %s", c.id, err)
				}
				return
			}
			continue
		}

		if err := c.dispatch(code); err != nil {
			log.Debugf("connection %s: %s", c.id, err)
			return
		}
	}
}

// dispatch runs one command. A returned error means the connection is
// unusable.
func (c *Connection) dispatch(code string) error {
	var err error
	if cmd, ok := c.server.command(code); ok {
		err = cmd.Execute(code, c.reader, c.writer)
	} else if code == protocol.AuthCommand {
		// Already authenticated, or no token configured.
		if _, err = protocol.ReadArguments(c.reader); err == nil {
			err = writeReply(c.writer, protocol.VoidReply)
		}
	} else {
		err = c.unknown(code)
	}
	if err != nil {
		if protocol.IsNetworkError(err) {
			return err
		}
		if err = writeError(c.writer, err); err != nil {
			return err
		}
	}
	if err := c.writer.Flush(); err != nil {
		return &protocol.NetworkError{Op: "flush", Err: err}
	}
	return nil
}

// unknown drains the arguments of an unrecognized command and answers with
// an error.
func (c *Connection) unknown(code string) error {
	if _, err := protocol.ReadArguments(c.reader); err != nil {
		return err
	}
	log.Warningf("unknown command %q from %s", code, c.id)
	return writeError(c.writer, &protocol.ProtocolError{Line: code, Reason: "unknown command"})
}

// authenticate handles the first command of a connection when a token is
// configured. It reports whether the client may continue.
func (c *Connection) authenticate(code string) (bool, error) {
	lines, err := protocol.ReadArguments(c.reader)
	if err != nil {
		return false, err
	}
	ok := false
	if code == protocol.AuthCommand && len(lines) > 0 {
		token := protocol.Unescape(lines[0])
		ok = subtle.ConstantTimeCompare([]byte(token), []byte(c.server.authToken)) == 1
	}
	reply := protocol.VoidReply
	if !ok {
		log.Warningf("authentication failed for %s", c.id)
		reply = protocol.ErrorReply("authentication failed")
	}
	if err := writeReply(c.writer, reply); err != nil {
		return false, err
	}
	if err := c.writer.Flush(); err != nil {
		return false, &protocol.NetworkError{Op: "flush", Err: err}
	}
	return ok, nil
}
