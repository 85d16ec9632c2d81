// Package server accepts client connections and dispatches their commands
// against a gateway.
package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/gobridge/gateway"
)

var log = commonlog.GetLogger("gobridge.server")

// Listener is told about connection and server lifecycle events.
type Listener interface {
	ConnectionStarted(*Connection)
	ConnectionStopped(*Connection)
	ServerStopped()
}

// Server is the gateway's network front end. It is bound into the gateway
// as the control object, so clients can shut it down or cancel other
// connections.
type Server struct {
	gw        *gateway.Gateway
	authToken string

	readTimeout    time.Duration
	maxArrayLength int
	executor       *Executor
	executorWait   time.Duration
	listeners      []Listener

	cmdMu    sync.RWMutex
	commands map[string]Command

	mu    sync.Mutex
	ln    net.Listener
	conns map[*Connection]struct{}
	wg    sync.WaitGroup

	done         chan struct{}
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithAuthToken requires every connection to authenticate with token
// before any other command.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// WithReadTimeout closes connections that stay silent longer than d.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithMaxArrayLength bounds the length of arrays clients may create.
func WithMaxArrayLength(n int) Option {
	return func(s *Server) { s.maxArrayLength = n }
}

// WithExecutor runs every command on e, falling back to the connection
// goroutine after wait.
func WithExecutor(e *Executor, wait time.Duration) Option {
	return func(s *Server) {
		s.executor = e
		s.executorWait = wait
	}
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(s *Server) { s.listeners = append(s.listeners, l) }
}

// New creates a server for gw with the default command table and binds it
// as gw's control object.
func New(gw *gateway.Gateway, opts ...Option) *Server {
	s := &Server{
		gw:       gw,
		commands: map[string]Command{},
		conns:    map[*Connection]struct{}{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, cmd := range DefaultCommands(gw) {
		if ac, ok := cmd.(*ArrayCommand); ok && s.maxArrayLength > 0 {
			ac.MaxLength = s.maxArrayLength
		}
		s.RegisterCommand(cmd)
	}
	gw.BindServer(s)
	return s
}

// RegisterCommand adds cmd to the table, replacing any command with the
// same code.
func (s *Server) RegisterCommand(cmd Command) {
	if s.executor != nil {
		if _, ok := cmd.(*DelegatingCommand); !ok {
			cmd = &DelegatingCommand{Delegate: cmd, Executor: s.executor, Wait: s.executorWait}
		}
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.commands[cmd.Code()] = cmd
}

func (s *Server) command(code string) (Command, bool) {
	s.cmdMu.RLock()
	defer s.cmdMu.RUnlock()
	cmd, ok := s.commands[code]
	return cmd, ok
}

// Gateway returns the gateway the server dispatches against.
func (s *Server) Gateway() *gateway.Gateway { return s.gw }

// ListenAndServe listens on address and serves until Shutdown.
func (s *Server) ListenAndServe(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		ln.Close()
		return nil
	default:
	}
	s.ln = ln
	s.mu.Unlock()
	log.Infof("gateway listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.startConnection(conn) {
			return nil
		}
	}
}

// ServeConn serves a single already established connection and returns
// when it ends.
func (s *Server) ServeConn(conn net.Conn) {
	c := newConnection(s, conn)
	if !s.addConnection(c) {
		conn.Close()
		return
	}
	c.run()
}

func (s *Server) startConnection(conn net.Conn) bool {
	c := newConnection(s, conn)
	if !s.addConnection(c) {
		conn.Close()
		return false
	}
	go c.run()
	return true
}

func (s *Server) addConnection(c *Connection) bool {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return false
	default:
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	log.Infof("connection from %s", c.id)
	for _, l := range s.listeners {
		l.ConnectionStarted(c)
	}
	return true
}

func (s *Server) removeConnection(c *Connection) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if !ok {
		return
	}
	log.Infof("connection %s closed", c.id)
	for _, l := range s.listeners {
		l.ConnectionStopped(c)
	}
	s.wg.Done()
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Connections returns the ids of the open connections.
func (s *Server) Connections() []ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]ConnectionID, 0, len(s.conns))
	for c := range s.conns {
		ids = append(ids, c.id)
	}
	return ids
}

// CloseConnection closes the connection with the given address and ports.
// It reports whether one was found.
func (s *Server) CloseConnection(address string, remotePort, localPort int) bool {
	want := ConnectionID{Address: address, RemotePort: remotePort, LocalPort: localPort}
	s.mu.Lock()
	var found *Connection
	for c := range s.conns {
		if c.id == want {
			found = c
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return false
	}
	log.Infof("cancelling connection %s", want)
	found.Close()
	return true
}

// Done is closed when the server shuts down.
func (s *Server) Done() <-chan struct{} { return s.done }

// Shutdown stops accepting, closes every connection, waits for them to end
// and shuts the gateway down. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		ln := s.ln
		conns := make([]*Connection, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		if ln != nil {
			if err := ln.Close(); err != nil {
				log.Debugf("closing listener: %s", err)
			}
		}
		for _, c := range conns {
			c.Close()
		}
		s.wg.Wait()

		if s.executor != nil {
			s.executor.Stop()
		}
		s.gw.Shutdown()
		for _, l := range s.listeners {
			l.ServerStopped()
		}
		log.Notice("gateway server stopped")
	})
}
