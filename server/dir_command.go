package server

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/chazu/gobridge/gateway"
	"github.com/chazu/gobridge/protocol"
)

// DirCommand lists members.
//
//	d
//	<f | m | s>          d
//	<target id | fqn>    v
//	e                    <view id>
//	                     <sequence token>
//	                     e
//
// Exactly one line after the last argument is read and discarded, whatever
// it holds. Names are returned sorted, one per line, as a single string.
type DirCommand struct{ base }

// NewDirCommand creates the directory command.
func NewDirCommand(gw *gateway.Gateway) *DirCommand { return &DirCommand{base{gw}} }

func (c *DirCommand) Code() string { return protocol.DirCommand }

func (c *DirCommand) Execute(code string, r *bufio.Reader, w io.Writer) error {
	sub, err := protocol.ReadLine(r)
	if err != nil {
		return err
	}
	target, err := protocol.ReadLine(r)
	if err != nil {
		return err
	}
	var seq string
	if sub == protocol.DirViewSubCommand {
		if seq, err = protocol.ReadLine(r); err != nil {
			return err
		}
	}
	// Trailing line.
	if _, err := protocol.ReadLine(r); err != nil {
		return err
	}

	switch sub {
	case protocol.DirFieldsSubCommand, protocol.DirMethodsSubCommand:
		obj, err := c.gw.Get(target)
		if err != nil {
			return writeError(w, err)
		}
		var names []string
		if sub == protocol.DirFieldsSubCommand {
			names, err = c.engine().PublicFieldNames(obj)
		} else {
			names, err = c.engine().PublicMethodNames(obj)
		}
		return c.writeResult(w, joinLines(names), err)
	case protocol.DirStaticSubCommand:
		class, err := c.engine().ClassForName(target)
		if err != nil {
			return writeError(w, err)
		}
		return c.writeResult(w, joinLines(c.engine().StaticMemberNames(class)), nil)
	case protocol.DirViewSubCommand:
		return c.dirView(w, target, seq)
	}
	return writeError(w, fmt.Errorf("unknown dir sub-command %q", sub))
}

// dirView answers with void when the client's sequence is current, and
// otherwise with the current sequence followed by the imported simple names.
func (c *DirCommand) dirView(w io.Writer, viewID, seqToken string) error {
	view, err := c.gw.View(viewID)
	if err != nil {
		return writeError(w, err)
	}
	current := view.Sequence()
	if seqToken != "" {
		v, err := protocol.Decode(seqToken)
		if err != nil {
			return writeError(w, err)
		}
		var known int64 = -1
		switch x := v.(type) {
		case int32:
			known = int64(x)
		case int64:
			known = x
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				known = n
			}
		}
		if known == current {
			return writeReply(w, protocol.VoidReply)
		}
	}
	lines := append([]string{strconv.FormatInt(current, 10)}, view.SimpleNames()...)
	return c.writeResult(w, joinLines(lines), nil)
}
