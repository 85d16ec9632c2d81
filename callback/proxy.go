package callback

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/chazu/gobridge/protocol"
)

// Binder converts between local values and wire tokens. The gateway
// implements it so proxy arguments become references it can later resolve.
type Binder interface {
	// Bind turns a local value into a wire token.
	Bind(v any) (string, error)
	// Resolve turns a decoded token into a local value.
	Resolve(v any) (any, error)
}

// RemoteError is an error reply from the remote process.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// Proxy stands in for an object living in the remote process. Calls are
// forwarded over the reverse channel.
type Proxy struct {
	ID         string
	Interfaces []string

	client   *Client
	binder   Binder
	released atomic.Bool
}

// NewProxy binds a remote object id to a client.
func NewProxy(id string, interfaces []string, client *Client, binder Binder) *Proxy {
	return &Proxy{ID: id, Interfaces: interfaces, client: client, binder: binder}
}

// ProxyInterfaces returns the interfaces the remote object implements.
func (p *Proxy) ProxyInterfaces() []string { return p.Interfaces }

// Invoke calls method on the remote object.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	if p.client == nil {
		return nil, fmt.Errorf("proxy %s: no callback client", p.ID)
	}
	if p.released.Load() {
		return nil, fmt.Errorf("proxy %s: %w", p.ID, protocol.ErrClosed)
	}
	lines := make([]string, 0, len(args)+2)
	lines = append(lines, p.ID, method)
	for _, a := range args {
		token, err := p.binder.Bind(a)
		if err != nil {
			return nil, fmt.Errorf("proxy %s.%s: %w", p.ID, method, err)
		}
		lines = append(lines, token)
	}

	reply, err := p.client.SendCommand(ctx, protocol.BuildCommand(protocol.CallProxyCommand, lines...))
	if err != nil {
		return nil, err
	}
	v, isError, err := protocol.ParseReply(reply)
	if err != nil {
		return nil, err
	}
	if isError {
		msg, ok := v.(string)
		if !ok {
			msg = fmt.Sprint(v)
		}
		return nil, &RemoteError{Message: msg}
	}
	return p.binder.Resolve(v)
}

// Release tells the remote process the proxy is no longer referenced.
// Only the first call sends anything.
func (p *Proxy) Release(ctx context.Context) error {
	if p.client == nil || !p.released.CompareAndSwap(false, true) {
		return nil
	}
	_, err := p.client.SendCommand(ctx, protocol.BuildCommand(protocol.ReleaseProxyCommand, p.ID))
	return err
}

// Released reports whether Release has been called.
func (p *Proxy) Released() bool { return p.released.Load() }
