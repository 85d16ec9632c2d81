package server

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
	"github.com/chazu/gobridge/reflection"
)

// HelpCommand renders a help page for an object's class or a named class.
//
//	h o <object id> <pattern token> <short token> e
//	h c <fqn> <pattern token> <short token> e
//
// The pattern is a glob over member names; null selects everything.
type HelpCommand struct{ base }

// NewHelpCommand creates the help command.
func NewHelpCommand(gw *gateway.Gateway) *HelpCommand { return &HelpCommand{base{gw}} }

func (c *HelpCommand) Code() string { return protocol.HelpCommand }

func (c *HelpCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 4); err != nil {
		return writeError(w, err)
	}
	page, err := c.page(lines[0], lines[1], lines[2], lines[3])
	return c.writeResult(w, page, err)
}

func (c *HelpCommand) page(sub, target, patternToken, shortToken string) (string, error) {
	pattern, err := decodeString(patternToken)
	if err != nil {
		return "", err
	}
	short, err := decodeBool(shortToken)
	if err != nil {
		return "", err
	}
	var class *reflection.Class
	switch sub {
	case protocol.HelpObjectSubCommand:
		obj, err := c.gw.Get(target)
		if err != nil {
			return "", err
		}
		if class, err = c.engine().ClassOf(obj); err != nil {
			return "", err
		}
	case protocol.HelpClassSubCommand:
		if class, err = c.engine().ClassForName(target); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown help sub-command %q", sub)
	}
	return reflection.HelpPage(reflection.BuildModel(class), pattern, short), nil
}
