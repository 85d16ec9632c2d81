package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

// FieldCommand reads and writes fields.
//
//	f          f
//	g          s
//	<target>   <target id>
//	<name>     <name>
//	e          <value token>
//	           e
//
// A field get that finds nothing answers with the no-member marker rather
// than an error.
type FieldCommand struct{ base }

// NewFieldCommand creates the field command.
func NewFieldCommand(gw *gateway.Gateway) *FieldCommand { return &FieldCommand{base{gw}} }

func (c *FieldCommand) Code() string { return protocol.FieldCommand }

func (c *FieldCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 3); err != nil {
		return writeError(w, err)
	}
	switch sub := lines[0]; sub {
	case protocol.FieldGetSubCommand:
		v, err := c.get(lines[1], lines[2])
		var nf *protocol.NotFoundError
		if errors.As(err, &nf) && nf.Kind == "field" {
			return writeReply(w, protocol.NoMemberReply)
		}
		return c.writeResult(w, v, err)
	case protocol.FieldSetSubCommand:
		if err := argCount(code, lines, 4); err != nil {
			return writeError(w, err)
		}
		if err := c.set(lines[1], lines[2], lines[3]); err != nil {
			return writeError(w, err)
		}
		return writeReply(w, protocol.VoidReply)
	default:
		return writeError(w, fmt.Errorf("unknown field sub-command %q", sub))
	}
}

func (c *FieldCommand) lookup(targetID, name string) (any, *reflection.Field, error) {
	obj, class, err := c.target(targetID)
	if err != nil {
		return nil, nil, err
	}
	var f *reflection.Field
	if class != nil {
		f, err = c.engine().GetStaticField(class, name)
	} else {
		f, err = c.engine().GetField(obj, name)
	}
	return obj, f, err
}

func (c *FieldCommand) get(targetID, name string) (any, error) {
	obj, f, err := c.lookup(targetID, name)
	if err != nil {
		return nil, err
	}
	return c.engine().GetFieldValue(obj, f)
}

func (c *FieldCommand) set(targetID, name, token string) error {
	obj, f, err := c.lookup(targetID, name)
	if err != nil {
		return err
	}
	values, err := c.gw.DecodeArgs([]string{token})
	if err != nil {
		return err
	}
	return c.engine().SetFieldValue(obj, f, values[0])
}
