package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

// Command handles one command code. Execute is called after the code line
// has been read; it reads the rest of the command from r, including the end
// line, and writes exactly one reply to w.
//
// Execute returns an error only when the connection itself failed. Faults
// of the command are written to w as error replies.
type Command interface {
	Code() string
	Execute(code string, r *bufio.Reader, w io.Writer) error
}

// DefaultCommands returns the full command table bound to gw.
func DefaultCommands(gw *gateway.Gateway) []Command {
	return []Command{
		NewCallCommand(gw),
		NewConstructorCommand(gw),
		NewFieldCommand(gw),
		NewDirCommand(gw),
		NewMemoryCommand(gw),
		NewReflectionCommand(gw),
		NewViewCommand(gw),
		NewHelpCommand(gw),
		NewArrayCommand(gw),
		NewShutdownCommand(gw),
		NewCancelCommand(gw),
	}
}

// base carries what every command needs.
type base struct {
	gw *gateway.Gateway
}

func (b base) engine() *reflection.Engine { return b.gw.Engine() }

// writeResult writes value as a success reply, or err as an error reply.
func (b base) writeResult(w io.Writer, value any, err error) error {
	if err != nil {
		return writeError(w, err)
	}
	reply, err := b.gw.Reply(value)
	if err != nil {
		return writeError(w, err)
	}
	return writeReply(w, reply)
}

// target resolves a call or field target: a registry id, or a class when
// the id carries the static prefix.
func (b base) target(id string) (obj any, class *reflection.Class, err error) {
	if fqn, ok := strings.CutPrefix(id, protocol.StaticPrefix); ok {
		class, err = b.engine().ClassForName(fqn)
		return nil, class, err
	}
	obj, err = b.gw.Get(id)
	return obj, nil, err
}

// decodeString decodes a token expected to carry a string. Null gives "".
func decodeString(line string) (string, error) {
	v, err := protocol.Decode(line)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}
	return "", fmt.Errorf("expected a string token, got %q", line)
}

// decodeInt decodes a token expected to carry an integer.
func decodeInt(line string) (int, error) {
	v, err := protocol.Decode(line)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	}
	return 0, fmt.Errorf("expected an integer token, got %q", line)
}

// decodeBool decodes a token expected to carry a boolean. Null gives false.
func decodeBool(line string) (bool, error) {
	v, err := protocol.Decode(line)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	}
	return false, fmt.Errorf("expected a boolean token, got %q", line)
}

func argCount(code string, args []string, n int) error {
	if len(args) < n {
		return &protocol.ProtocolError{
			Line:   code,
			Reason: fmt.Sprintf("expected at least %d arguments, got %d", n, len(args)),
		}
	}
	return nil
}

func writeReply(w io.Writer, reply string) error {
	if _, err := io.WriteString(w, reply); err != nil {
		return &protocol.NetworkError{Op: "write reply", Err: err}
	}
	return nil
}

func writeError(w io.Writer, err error) error {
	log.Debugf("command failed: %s", err)
	return writeReply(w, protocol.ErrorReply(err.Error()))
}

func joinLines(names []string) string {
	return strings.Join(names, "\n")
}
