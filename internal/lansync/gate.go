package lansync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// AcceptRequest describes an inbound session waiting for approval.
type AcceptRequest struct {
	Remote string
	Hello  Hello
}

// AcceptGate decides whether an inbound session may proceed.
type AcceptGate interface {
	Accept(ctx context.Context, req AcceptRequest) (bool, error)
}

// AcceptFunc adapts a function to AcceptGate.
type AcceptFunc func(ctx context.Context, req AcceptRequest) (bool, error)

// Accept calls f.
func (f AcceptFunc) Accept(ctx context.Context, req AcceptRequest) (bool, error) {
	return f(ctx, req)
}

// AutoAccept accepts every session.
type AutoAccept struct{}

// Accept always returns true.
func (AutoAccept) Accept(context.Context, AcceptRequest) (bool, error) {
	return true, nil
}

// PromptGate asks an operator on in/out. End of input rejects.
type PromptGate struct {
	mu      sync.Mutex
	in      *bufio.Reader
	out     io.Writer
	pending chan lineResult // read in flight from a cancelled Accept
}

type lineResult struct {
	line string
	err  error
}

// NewPromptGate returns a gate reading answers from in and writing prompts
// to out.
func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: bufio.NewReader(in), out: out}
}

// Accept prompts until the operator answers y/yes or n/no. Cancelling ctx
// abandons the wait; the line still being read goes to the next Accept.
func (g *PromptGate) Accept(ctx context.Context, req AcceptRequest) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	remote := req.Remote
	if remote == "" {
		remote = "<unknown>"
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(g.out, "Incoming sync from %s. Accept? (y/n): ", remote)

		line, err := g.readLine(ctx)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, fmt.Errorf("read answer: %w", err)
		}
		fmt.Fprintln(g.out, "Please answer y or n.")
	}
}

// readLine waits for the next input line or ctx, whichever comes first.
// Callers hold g.mu.
func (g *PromptGate) readLine(ctx context.Context) (string, error) {
	if g.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := g.in.ReadString('\n')
			ch <- lineResult{line, err}
		}()
		g.pending = ch
	}
	select {
	case r := <-g.pending:
		g.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
