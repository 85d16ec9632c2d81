// Package callback implements the reverse channel: a pool of outbound
// connections to the remote process used to call methods on objects that
// live there.
package callback

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/gobridge/protocol"
)

var log = commonlog.GetLogger("gobridge.callback")

// Connection is one outbound socket to the remote process. It is owned by a
// single caller while a command is in flight.
type Connection struct {
	conn        net.Conn
	reader      *bufio.Reader
	readTimeout time.Duration

	mu       sync.Mutex
	used     bool
	lastUsed time.Time
}

func dial(ctx context.Context, address string, connectTimeout, readTimeout time.Duration) (*Connection, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &protocol.TimeoutError{Op: "connect " + address, Err: err}
		}
		return nil, &protocol.NetworkError{Op: "connect " + address, Err: err}
	}
	log.Debugf("opened callback connection %s -> %s", conn.LocalAddr(), conn.RemoteAddr())
	return newConnection(conn, readTimeout), nil
}

func newConnection(conn net.Conn, readTimeout time.Duration) *Connection {
	return &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		readTimeout: readTimeout,
		lastUsed:    time.Now(),
	}
}

// SendCommand writes payload and blocks for exactly one reply line. The
// reply is returned without its newline. Cancelling ctx unblocks the read.
func (c *Connection) SendCommand(ctx context.Context, payload string) (string, error) {
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if c.readTimeout > 0 {
		if d := time.Now().Add(c.readTimeout); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", &protocol.NetworkError{Op: "set deadline", Err: err}
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(c.conn, payload); err != nil {
		return "", c.wrap(ctx, "write", err)
	}
	line, err := protocol.ReadLine(c.reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", &protocol.NetworkError{Op: "read reply", Err: io.ErrUnexpectedEOF}
		}
		return "", c.wrap(ctx, "read reply", err)
	}

	c.mu.Lock()
	c.used = true
	c.lastUsed = time.Now()
	c.mu.Unlock()
	return line, nil
}

func (c *Connection) wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &protocol.TimeoutError{Op: op, Err: ctx.Err()}
	}
	if isTimeout(err) {
		return &protocol.TimeoutError{Op: op, Err: err}
	}
	var ne *protocol.NetworkError
	if errors.As(err, &ne) {
		return err
	}
	return &protocol.NetworkError{Op: op, Err: err}
}

// Used reports whether the connection has completed at least one command.
func (c *Connection) Used() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *Connection) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// LocalAddr returns the local end of the socket.
func (c *Connection) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close closes the socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
