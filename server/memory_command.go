package server

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// MemoryCommand releases bindings.
//
//	m
//	d
//	<id>
//	e
//
// Deleting an id that is already gone still succeeds.
type MemoryCommand struct{ base }

// NewMemoryCommand creates the memory command.
func NewMemoryCommand(gw *gateway.Gateway) *MemoryCommand { return &MemoryCommand{base{gw}} }

func (c *MemoryCommand) Code() string { return protocol.MemoryCommand }

func (c *MemoryCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	lines, err := protocol.ReadArguments(r)
	if err != nil {
		return err
	}
	if err := argCount(code, lines, 2); err != nil {
		return writeError(w, err)
	}
	if sub := lines[0]; sub != protocol.MemoryDeleteSubCommand {
		return writeError(w, fmt.Errorf("unknown memory sub-command %q", sub))
	}
	if c.gw.Delete(lines[1]) {
		log.Debugf("released %s", lines[1])
	}
	return writeReply(w, protocol.VoidReply)
}
