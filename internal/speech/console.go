package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console reads utterances line by line, typically from stdin.
type Console struct {
	prompt string
	out    io.Writer

	in    io.Reader
	once  sync.Once
	lines chan string
	err   error
}

// NewConsole prints prompt to out before every read. out may be nil.
func NewConsole(in io.Reader, out io.Writer, prompt string) *Console {
	return &Console{
		prompt: prompt,
		out:    out,
		in:     in,
		lines:  make(chan string),
	}
}

func (c *Console) start() {
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		c.err = err
		close(c.lines)
	}()
}

// Listen returns the next non-empty line. A blank line yields ErrNoSpeech
// and the end of input io.EOF.
func (c *Console) Listen(ctx context.Context) (string, error) {
	c.once.Do(c.start)
	if c.out != nil && c.prompt != "" {
		fmt.Fprint(c.out, c.prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", c.err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", ErrNoSpeech
		}
		return line, nil
	}
}

// Printer writes replies to a terminal instead of speaking them.
type Printer struct {
	Out    io.Writer
	Prefix string
}

func (p Printer) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(p.Out, "%s%s\n", p.Prefix, text)
	return err
}

// Multi speaks through every speaker in order and returns the first error.
type Multi []Speaker

func (m Multi) Speak(ctx context.Context, text string) error {
	var first error
	for _, s := range m {
		if err := s.Speak(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
