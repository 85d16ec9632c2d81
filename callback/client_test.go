package callback

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/gobridge/protocol"
)

// ---------------------------------------------------------------------------
// Fake remote process
// ---------------------------------------------------------------------------

// remote accepts callback connections and answers each command with the
// reply computed by handle.
type remote struct {
	ln       net.Listener
	accepted atomic.Int32

	mu       sync.Mutex
	commands [][]string

	handle func(cmd []string) string
	// oneShot closes each connection after its first reply.
	oneShot atomic.Bool
}

func newRemote(t *testing.T, handle func(cmd []string) string) *remote {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := &remote{ln: ln, handle: handle}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *remote) addr() string { return r.ln.Addr().String() }

func (r *remote) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.accepted.Add(1)
		go r.serveConn(conn)
	}
}

func (r *remote) serveConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		var cmd []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSuffix(line, "\n")
			if line == protocol.End {
				break
			}
			cmd = append(cmd, line)
		}
		r.mu.Lock()
		r.commands = append(r.commands, cmd)
		r.mu.Unlock()
		reply := r.handle(cmd)
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
		if r.oneShot.Load() {
			return
		}
	}
}

func (r *remote) received() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.commands...)
}

func echo(cmd []string) string {
	return "y" + "s" + strings.Join(cmd, ",")
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestSendCommandReusesConnection(t *testing.T) {
	r := newRemote(t, echo)
	c := NewClient(Options{Address: r.addr()})
	defer c.Shutdown()

	for i := 0; i < 3; i++ {
		reply, err := c.SendCommand(context.Background(), protocol.BuildCommand("c", "p0", "run"))
		if err != nil {
			t.Fatalf("SendCommand: %v", err)
		}
		if reply != "ysc,p0,run" {
			t.Errorf("reply = %q", reply)
		}
	}
	if n := r.accepted.Load(); n != 1 {
		t.Errorf("remote accepted %d connections, want 1", n)
	}
	if c.IdleCount() != 1 {
		t.Errorf("IdleCount() = %d, want 1", c.IdleCount())
	}
}

func TestSendCommandRedialsClosedPooledConnection(t *testing.T) {
	r := newRemote(t, echo)
	r.oneShot.Store(true)
	c := NewClient(Options{Address: r.addr()})
	defer c.Shutdown()

	for i := 0; i < 3; i++ {
		reply, err := c.SendCommand(context.Background(), protocol.BuildCommand("c", "p0", "run"))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if reply != "ysc,p0,run" {
			t.Errorf("send %d reply = %q", i, reply)
		}
	}
	if n := r.accepted.Load(); n != 3 {
		t.Errorf("remote accepted %d connections, want 3", n)
	}
	if n := len(r.received()); n != 3 {
		t.Errorf("remote received %d commands, want 3", n)
	}
}

func TestConcurrentSendsUseDistinctConnections(t *testing.T) {
	var inFlight, peak atomic.Int32
	r := newRemote(t, func(cmd []string) string {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return echo(cmd)
	})
	c := NewClient(Options{Address: r.addr(), MaxIdle: 2})
	defer c.Shutdown()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			reply, err := c.SendCommand(context.Background(), protocol.BuildCommand("c", id))
			if err != nil {
				errs <- err
				return
			}
			if reply != "ysc,"+id {
				errs <- errors.New("crossed reply " + reply + " for " + id)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency %d, expected parallel connections", peak.Load())
	}
	if c.IdleCount() > 2 {
		t.Errorf("IdleCount() = %d exceeds MaxIdle", c.IdleCount())
	}
}

func TestConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(Options{Address: addr, ConnectTimeout: time.Second})
	_, err = c.SendCommand(context.Background(), protocol.BuildCommand("c"))
	var ne *protocol.NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("refused connect error = %v, want NetworkError", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = c.SendCommand(ctx, protocol.BuildCommand("c"))
	var te *protocol.TimeoutError
	if !errors.As(err, &te) {
		t.Errorf("expired context error = %v, want TimeoutError", err)
	}
}

func TestReadTimeoutDiscardsConnection(t *testing.T) {
	r := newRemote(t, func([]string) string { return "" })
	c := NewClient(Options{Address: r.addr(), ReadTimeout: 50 * time.Millisecond})
	defer c.Shutdown()

	_, err := c.SendCommand(context.Background(), protocol.BuildCommand("c"))
	var te *protocol.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
	if c.IdleCount() != 0 {
		t.Errorf("timed out connection was pooled")
	}
}

func TestShutdownClosesPool(t *testing.T) {
	r := newRemote(t, echo)
	c := NewClient(Options{Address: r.addr()})
	if _, err := c.SendCommand(context.Background(), protocol.BuildCommand("c")); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	c.Shutdown()
	c.Shutdown()
	if c.IdleCount() != 0 {
		t.Errorf("IdleCount() after Shutdown = %d", c.IdleCount())
	}
	if _, err := c.SendCommand(context.Background(), protocol.BuildCommand("c")); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("send after Shutdown error = %v, want ErrClosed", err)
	}
}

func TestCleanupClosesStaleConnections(t *testing.T) {
	r := newRemote(t, echo)
	c := NewClient(Options{Address: r.addr()})
	defer c.Shutdown()
	if _, err := c.SendCommand(context.Background(), protocol.BuildCommand("c")); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if n := c.Cleanup(time.Hour); n != 0 {
		t.Errorf("Cleanup(1h) closed %d", n)
	}
	time.Sleep(10 * time.Millisecond)
	if n := c.Cleanup(time.Millisecond); n != 1 {
		t.Errorf("Cleanup(1ms) closed %d, want 1", n)
	}
	stop := c.StartCleaner(time.Millisecond, time.Millisecond)
	stop()
	stop()
}

// ---------------------------------------------------------------------------
// Proxy
// ---------------------------------------------------------------------------

type stringBinder struct{}

func (stringBinder) Bind(v any) (string, error) { return protocol.Encode(v) }
func (stringBinder) Resolve(v any) (any, error) { return v, nil }

func TestProxyInvoke(t *testing.T) {
	r := newRemote(t, func(cmd []string) string {
		switch cmd[0] {
		case protocol.CallProxyCommand:
			if cmd[2] == "fail" {
				return "!xsboom"
			}
			return "yi42"
		case protocol.ReleaseProxyCommand:
			return "yv"
		}
		return "xsunknown"
	})
	c := NewClient(Options{Address: r.addr()})
	defer c.Shutdown()

	p := NewProxy("p1", []string{"lang.Runnable"}, c, stringBinder{})
	if diff := cmp.Diff([]string{"lang.Runnable"}, p.ProxyInterfaces()); diff != "" {
		t.Errorf("interfaces mismatch (-want +got):\n%s", diff)
	}

	got, err := p.Invoke(context.Background(), "answer", "q", int32(7))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != int32(42) {
		t.Errorf("Invoke = %#v, want 42", got)
	}

	_, err = p.Invoke(context.Background(), "fail")
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "boom" {
		t.Errorf("remote failure = %v", err)
	}

	if err := p.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := p.Release(context.Background()); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := p.Invoke(context.Background(), "answer"); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("invoke after release = %v", err)
	}

	want := [][]string{
		{"c", "p1", "answer", "sq", "i7"},
		{"c", "p1", "fail"},
		{"g", "p1"},
	}
	if diff := cmp.Diff(want, r.received()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}
