package server

import (
	"bufio"
	"net"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

// ---------------------------------------------------------------------------
// Shared fixtures: a tiny shop with one counter class, served over net.Pipe.
// ---------------------------------------------------------------------------

type counter struct {
	count int32
	label string
}

type blank struct{}

func asCounter(v any) *counter { return v.(*counter) }

func newShopRegistry() *reflection.Registry {
	r := reflection.NewRegistry()
	r.MustDefine(&reflection.Class{
		Name:   "shop.Counter",
		GoType: reflect.TypeOf(&counter{}),
		Fields: []*reflection.Field{
			{
				Name: "count", Type: reflection.Int,
				Get: func(recv any) any { return asCounter(recv).count },
				Set: func(recv, v any) error { asCounter(recv).count = v.(int32); return nil },
			},
			{
				Name: "LIMIT", Type: reflection.Int, Static: true, Final: true,
				Get: func(any) any { return int32(10) },
			},
		},
		Methods: []*reflection.Method{
			{Name: "inc", Return: reflection.Int, Call: func(recv any, _ []any) (any, error) {
				c := asCounter(recv)
				c.count++
				return c.count, nil
			}},
			{Name: "add", Return: reflection.Int, Params: []string{reflection.Int}, Call: func(recv any, args []any) (any, error) {
				c := asCounter(recv)
				c.count += args[0].(int32)
				return c.count, nil
			}},
			{Name: "label", Return: reflection.StringClass, Call: func(recv any, _ []any) (any, error) {
				return asCounter(recv).label, nil
			}},
			{Name: "fresh", Return: "shop.Counter", Static: true, Call: func(any, []any) (any, error) {
				return &counter{}, nil
			}},
		},
		Constructors: []*reflection.Method{
			{Params: []string{reflection.StringClass}, Call: func(_ any, args []any) (any, error) {
				return &counter{label: args[0].(string)}, nil
			}},
		},
		Nested: []string{"shop.Counter$Mode"},
	})
	r.MustDefine(&reflection.Class{Name: "shop.Counter$Mode"})
	r.MustDefine(&reflection.Class{
		Name:   "shop.Blank",
		GoType: reflect.TypeOf(&blank{}),
		Constructors: []*reflection.Method{
			{Call: func(any, []any) (any, error) { return &blank{}, nil }},
		},
	})
	return r
}

func newShopGateway() (*gateway.Gateway, *counter) {
	entry := &counter{label: "main"}
	engine := reflection.NewEngine(newShopRegistry(), reflection.DefaultCacheSize)
	return gateway.New(engine, entry, nil), entry
}

// testClient speaks the protocol over one end of a pipe.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// pipe serves a fresh pipe connection on s and returns the client end.
func pipe(t *testing.T, s *Server) *testClient {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.ServeConn(serverSide)
		close(done)
	}()
	t.Cleanup(func() {
		clientSide.Close()
		<-done
	})
	return &testClient{t: t, conn: clientSide, r: bufio.NewReader(clientSide)}
}

// send writes the lines of one command and returns the reply line without
// its terminator.
func (c *testClient) send(lines ...string) string {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	reply, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read reply: %v", err)
	}
	return strings.TrimSuffix(reply, "\n")
}

// value sends a command and decodes a success reply.
func (c *testClient) value(lines ...string) any {
	c.t.Helper()
	reply := c.send(lines...)
	v, isError, err := protocol.ParseReply(reply)
	if err != nil {
		c.t.Fatalf("ParseReply(%q): %v", reply, err)
	}
	if isError {
		c.t.Fatalf("command %q failed: %v", lines, v)
	}
	return v
}

func expectError(t *testing.T, reply string) {
	t.Helper()
	if !strings.HasPrefix(reply, "!xs") {
		t.Errorf("reply = %q, want an error reply", reply)
	}
}
