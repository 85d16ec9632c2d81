package server

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// ReflectionCommand answers name lookups made by clients navigating the
// class space.
//
//	r u <name> <view id> e    class marker, or package marker
//	r m <fqn> <member> e      nested class, static method marker, static field value
//	r j <fqn> e               reference to the class descriptor
type ReflectionCommand struct{ base }

// NewReflectionCommand creates the reflection command.
func NewReflectionCommand(gw *gateway.Gateway) *ReflectionCommand {
	return &ReflectionCommand{base{gw}}
}

func (c *ReflectionCommand) Code() string { return protocol.ReflectionCommand }

func (c *ReflectionCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 2); err != nil {
		return writeError(w, err)
	}
	switch sub := lines[0]; sub {
	case protocol.ReflectionUnknownSubCommand:
		viewID := protocol.DefaultViewID
		if len(lines) > 2 {
			viewID = lines[2]
		}
		v, err := c.unknown(lines[1], viewID)
		return c.writeResult(w, v, err)
	case protocol.ReflectionMemberSubCommand:
		if err := argCount(code, lines, 3); err != nil {
			return writeError(w, err)
		}
		v, err := c.member(lines[1], lines[2])
		return c.writeResult(w, v, err)
	case protocol.ReflectionClassSubCommand:
		class, err := c.engine().ClassForName(lines[1])
		return c.writeResult(w, class, err)
	default:
		return writeError(w, fmt.Errorf("unknown reflection sub-command %q", sub))
	}
}

// unknown resolves name through the view. Anything that is not a class is
// taken to be a package, since packages have no registry of their own.
func (c *ReflectionCommand) unknown(name, viewID string) (any, error) {
	view, err := c.gw.View(viewID)
	if err != nil {
		return nil, err
	}
	if class, ok := view.ResolveClass(name, c.engine().Registry()); ok {
		return protocol.ClassMarker(class.Name), nil
	}
	return protocol.PackageMarker(name), nil
}

func (c *ReflectionCommand) member(fqn, name string) (any, error) {
	class, err := c.engine().ClassForName(fqn)
	if err != nil {
		return nil, err
	}
	if nested, ok := c.engine().NestedClass(class, name); ok {
		return protocol.ClassMarker(nested.Name), nil
	}
	if c.engine().HasStaticMethod(class, name) {
		return protocol.MethodMarker{}, nil
	}
	f, err := c.engine().GetStaticField(class, name)
	if err != nil {
		return nil, &protocol.NotFoundError{Kind: "static member", Name: fqn + "." + name}
	}
	return c.engine().GetFieldValue(nil, f)
}
