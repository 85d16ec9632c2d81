package server

import (
	"bufio"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// CallCommand invokes a method.
//
//	c
//	<target id | z:fqn>
//	<method name>
//	<argument tokens...>
//	e
type CallCommand struct{ base }

// NewCallCommand creates the call command.
func NewCallCommand(gw *gateway.Gateway) *CallCommand { return &CallCommand{base{gw}} }

func (c *CallCommand) Code() string { return protocol.CallCommand }

func (c *CallCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	result, err := c.call(code, lines)
	return c.writeResult(w, result, err)
}

func (c *CallCommand) call(code string, lines []string) (any, error) {
	if err := argCount(code, lines, 2); err != nil {
		return nil, err
	}
	obj, class, err := c.target(lines[0])
	if err != nil {
		return nil, err
	}
	name := lines[1]
	args, err := c.gw.DecodeArgs(lines[2:])
	if err != nil {
		return nil, err
	}
	log.Debugf("call %s.%s with %d arguments", lines[0], name, len(args))

	if class != nil {
		inv, err := c.engine().GetStaticMethod(class, name, args)
		if err != nil {
			return nil, err
		}
		return inv.Invoke(nil, args)
	}
	inv, err := c.engine().GetMethod(obj, name, args)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(obj, args)
}

// ConstructorCommand creates an object and returns a reference to it.
//
//	i
//	<class fqn>
//	<argument tokens...>
//	e
type ConstructorCommand struct{ base }

// NewConstructorCommand creates the constructor command.
func NewConstructorCommand(gw *gateway.Gateway) *ConstructorCommand {
	return &ConstructorCommand{base{gw}}
}

func (c *ConstructorCommand) Code() string { return protocol.ConstructorCommand }

func (c *ConstructorCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	result, err := c.construct(code, lines)
	return c.writeResult(w, result, err)
}

func (c *ConstructorCommand) construct(code string, lines []string) (any, error) {
	if err := argCount(code, lines, 1); err != nil {
		return nil, err
	}
	args, err := c.gw.DecodeArgs(lines[1:])
	if err != nil {
		return nil, err
	}
	inv, err := c.engine().GetConstructor(lines[0], args)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(nil, args)
}
