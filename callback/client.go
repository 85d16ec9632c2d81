package callback

import (
	"context"
	"sync"
	"time"

	"github.com/chazu/gobridge/protocol"
)

// Default pool settings.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultMaxIdle        = 4
)

// Options configures a Client.
type Options struct {
	// Address of the remote process's callback listener, host:port.
	Address string
	// ConnectTimeout bounds opening a new connection. Zero uses the default.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for each reply. Zero waits forever.
	ReadTimeout time.Duration
	// MaxIdle caps the number of idle pooled connections.
	MaxIdle int
}

// Client is the reverse channel: a pool of outbound connections shared by
// every worker that needs to call into the remote process. A connection is
// used by at most one caller at a time.
type Client struct {
	opts Options

	mu     sync.Mutex
	idle   []*Connection
	closed bool
}

// NewClient creates a client. No connection is opened until the first send.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	return &Client{opts: opts}
}

// Address returns the remote callback address.
func (c *Client) Address() string { return c.opts.Address }

// SendCommand sends payload on an idle pooled connection, or a new one, and
// returns the single reply line. Connections that fail are discarded. A
// pooled connection the remote closed while idle is retried once on a fresh
// connection.
func (c *Client) SendCommand(ctx context.Context, payload string) (string, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	reply, err := conn.SendCommand(ctx, payload)
	if err != nil && conn.Used() && protocol.IsNetworkError(err) && ctx.Err() == nil {
		conn.Close()
		log.Debugf("pooled callback connection failed, redialing: %s", err)
		if conn, err = dial(ctx, c.opts.Address, c.opts.ConnectTimeout, c.opts.ReadTimeout); err != nil {
			return "", err
		}
		reply, err = conn.SendCommand(ctx, payload)
	}
	if err != nil {
		conn.Close()
		return "", err
	}
	c.release(conn)
	return reply, nil
}

func (c *Client) acquire(ctx context.Context) (*Connection, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, protocol.ErrClosed
	}
	if n := len(c.idle); n > 0 {
		conn := c.idle[n-1]
		c.idle = c.idle[:n-1]
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()
	return dial(ctx, c.opts.Address, c.opts.ConnectTimeout, c.opts.ReadTimeout)
}

func (c *Client) release(conn *Connection) {
	c.mu.Lock()
	if c.closed || len(c.idle) >= c.opts.MaxIdle {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.idle = append(c.idle, conn)
	c.mu.Unlock()
}

// IdleCount returns the number of pooled idle connections.
func (c *Client) IdleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idle)
}

// Cleanup closes idle connections unused for longer than maxIdle and
// returns how many were closed.
func (c *Client) Cleanup(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	c.mu.Lock()
	var keep, stale []*Connection
	for _, conn := range c.idle {
		if conn.idleSince().Before(cutoff) {
			stale = append(stale, conn)
		} else {
			keep = append(keep, conn)
		}
	}
	c.idle = keep
	c.mu.Unlock()

	for _, conn := range stale {
		conn.Close()
	}
	return len(stale)
}

// StartCleaner runs Cleanup periodically in the background.
// Returns a stop function.
func (c *Client) StartCleaner(interval, maxIdle time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := c.Cleanup(maxIdle); n > 0 {
					log.Debugf("closed %d idle callback connections", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Shutdown closes every pooled connection. Close errors are logged and
// otherwise ignored so one bad socket cannot block the rest. Later sends
// fail with protocol.ErrClosed.
func (c *Client) Shutdown() {
	c.mu.Lock()
	idle := c.idle
	c.idle = nil
	c.closed = true
	c.mu.Unlock()

	for _, conn := range idle {
		if err := conn.Close(); err != nil {
			log.Debugf("closing callback connection: %s", err)
		}
	}
}
