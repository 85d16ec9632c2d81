package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ReadLine reads one protocol line and strips its terminator. A clean end of
// stream is reported as io.EOF; any other read failure is a NetworkError.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", io.EOF
			}
		} else {
			return "", &NetworkError{Op: "read", Err: err}
		}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// ReadArguments reads raw argument lines up to, and consuming, the End line.
func ReadArguments(r *bufio.Reader) ([]string, error) {
	var args []string
	for {
		line, err := ReadLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &NetworkError{Op: "read arguments", Err: io.ErrUnexpectedEOF}
			}
			return nil, err
		}
		if line == End {
			return args, nil
		}
		args = append(args, line)
	}
}

// ReadValues reads argument lines up to End and decodes each as a token.
func ReadValues(r *bufio.Reader) ([]any, error) {
	lines, err := ReadArguments(r)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(lines))
	for _, line := range lines {
		v, err := Decode(line)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// BuildCommand assembles a command from its code and argument lines,
// appending the End line.
func BuildCommand(code string, lines ...string) string {
	var b strings.Builder
	b.WriteString(code)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(End)
	b.WriteByte('\n')
	return b.String()
}
