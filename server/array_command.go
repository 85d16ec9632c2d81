package server

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

// ArrayCommand works on arrays held by the gateway.
//
//	a g <array id> <index token> e            element
//	a s <array id> <index token> <value> e    void
//	a l <array id> e                          length
//	a r <array id> <index tokens...> e        reference to a new array
//	a c <element fqn> <length token> e        reference to a new array
type ArrayCommand struct {
	base
	// MaxLength bounds the length of arrays created by clients.
	MaxLength int
}

// DefaultMaxArrayLength is the create limit of a new ArrayCommand.
const DefaultMaxArrayLength = 1 << 20

// NewArrayCommand creates the array command.
func NewArrayCommand(gw *gateway.Gateway) *ArrayCommand {
	return &ArrayCommand{base: base{gw}, MaxLength: DefaultMaxArrayLength}
}

func (c *ArrayCommand) Code() string { return protocol.ArrayCommand }

func (c *ArrayCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 2); err != nil {
		return writeError(w, err)
	}
	sub := lines[0]
	if sub == protocol.ArrayCreateSubCommand {
		v, err := c.create(code, lines[1:])
		return c.writeResult(w, v, err)
	}
	arr, err := c.array(lines[1])
	if err != nil {
		return writeError(w, err)
	}
	args := lines[2:]
	switch sub {
	case protocol.ArrayGetSubCommand:
		if err := argCount(code, lines, 3); err != nil {
			return writeError(w, err)
		}
		i, err := decodeInt(args[0])
		if err != nil {
			return writeError(w, err)
		}
		v, err := arr.Get(i)
		return c.writeResult(w, v, err)
	case protocol.ArraySetSubCommand:
		if err := argCount(code, lines, 4); err != nil {
			return writeError(w, err)
		}
		if err := c.set(arr, args[0], args[1]); err != nil {
			return writeError(w, err)
		}
		return writeReply(w, protocol.VoidReply)
	case protocol.ArrayLenSubCommand:
		return c.writeResult(w, int32(arr.Len()), nil)
	case protocol.ArraySliceSubCommand:
		indices := make([]int, len(args))
		for n, token := range args {
			if indices[n], err = decodeInt(token); err != nil {
				return writeError(w, err)
			}
		}
		v, err := arr.Slice(indices)
		return c.writeResult(w, v, err)
	}
	return writeError(w, fmt.Errorf("unknown array sub-command %q", sub))
}

func (c *ArrayCommand) array(id string) (*reflection.Array, error) {
	obj, err := c.gw.Get(id)
	if err != nil {
		return nil, err
	}
	arr, ok := obj.(*reflection.Array)
	if !ok {
		return nil, fmt.Errorf("object %s is not an array", id)
	}
	return arr, nil
}

func (c *ArrayCommand) set(arr *reflection.Array, indexToken, valueToken string) error {
	i, err := decodeInt(indexToken)
	if err != nil {
		return err
	}
	values, err := c.gw.DecodeArgs([]string{valueToken})
	if err != nil {
		return err
	}
	v, err := c.engine().ConvertTo(arr.Elem, values[0])
	if err != nil {
		return err
	}
	return arr.Set(i, v)
}

func (c *ArrayCommand) create(code string, args []string) (*reflection.Array, error) {
	if err := argCount(code, args, 2); err != nil {
		return nil, err
	}
	elem := protocol.Unescape(args[0])
	if !reflection.IsPrimitive(elem) {
		if _, err := c.engine().ClassForName(elem); err != nil {
			return nil, err
		}
	}
	n, err := decodeInt(args[1])
	if err != nil {
		return nil, err
	}
	if n > c.MaxLength {
		return nil, fmt.Errorf("array length %d exceeds the limit of %d", n, c.MaxLength)
	}
	return reflection.MakeArray(elem, n)
}
