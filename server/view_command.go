package server

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// ViewCommand manages import views. Names, imports and search terms are
// sent as plain escaped text, not as typed tokens.
//
//	j c <name> e               reference to a new view
//	j i <view id> <import> e   void
//	j r <view id> <import> e   boolean: whether the import was removed
//	j s <view id> <term> e     matching class names, one per line
type ViewCommand struct{ base }

// NewViewCommand creates the view command.
func NewViewCommand(gw *gateway.Gateway) *ViewCommand { return &ViewCommand{base{gw}} }

func (c *ViewCommand) Code() string { return protocol.ViewCommand }

func (c *ViewCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 2); err != nil {
		return writeError(w, err)
	}
	sub := lines[0]
	if sub == protocol.ViewCreateSubCommand {
		id, _ := c.gw.NewView(protocol.Unescape(lines[1]))
		return writeReply(w, protocol.SuccessReply(string(protocol.ReferenceType)+id))
	}

	if err := argCount(code, lines, 3); err != nil {
		return writeError(w, err)
	}
	view, err := c.gw.View(lines[1])
	if err != nil {
		return writeError(w, err)
	}
	arg := protocol.Unescape(lines[2])
	switch sub {
	case protocol.ViewImportSubCommand:
		view.Import(arg)
		return writeReply(w, protocol.VoidReply)
	case protocol.ViewRemoveSubCommand:
		return c.writeResult(w, view.RemoveImport(arg), nil)
	case protocol.ViewSearchSubCommand:
		return c.writeResult(w, joinLines(view.Search(arg, c.engine().Registry())), nil)
	}
	return writeError(w, fmt.Errorf("unknown view sub-command %q", sub))
}
