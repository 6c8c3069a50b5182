package lansync

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/roach88/bankero/internal/ledger"
)

// Conn reads and writes newline-terminated records over a stream, one at a
// time and strictly in order.
type Conn struct {
	c       net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration
}

// NewConn wraps c. A positive timeout is applied as a deadline to every
// Send and Receive.
func NewConn(c net.Conn, timeout time.Duration) *Conn {
	return &Conn{c: c, r: bufio.NewReader(c), w: bufio.NewWriter(c), timeout: timeout}
}

// Records sent or read on the way out of a failed session get this long.
const abortGrace = 500 * time.Millisecond

// Send writes m followed by a newline and flushes.
func (c *Conn) Send(m Message) error {
	return c.send(m, c.deadline())
}

// Receive reads the next record. It returns io.EOF when the peer closed the
// stream without sending anything more.
func (c *Conn) Receive() (Message, error) {
	return c.receive(c.deadline())
}

// sendBestEffort writes m within abortGrace, ignoring failures. It is used
// for error records on a session that is already failing.
func (c *Conn) sendBestEffort(m Message) {
	_ = c.send(m, time.Now().Add(abortGrace))
}

// sendFailed explains a failed send. A peer that aborts a session writes an
// error record before closing, so one is looked for within abortGrace; if
// none arrives, err is returned unchanged.
func (c *Conn) sendFailed(err error) error {
	msg, rerr := c.receive(time.Now().Add(abortGrace))
	if rerr != nil {
		return err
	}
	if m, ok := msg.(ErrorMessage); ok {
		return peerError(m)
	}
	return err
}

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

func (c *Conn) send(m Message, deadline time.Time) error {
	line, err := Encode(m)
	if err != nil {
		return err
	}
	if err := c.c.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	if _, err := c.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	return nil
}

func (c *Conn) receive(deadline time.Time) (Message, error) {
	if err := c.c.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	line = bytes.TrimSpace(line)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(line) == 0 {
				return nil, io.EOF
			}
		} else {
			return nil, fmt.Errorf("receive: %w", err)
		}
	}
	if len(line) == 0 {
		return nil, ledger.NewProtocolError("receive", "empty sync message", nil)
	}
	return Decode(line)
}

// RemoteAddr is the address of the other side.
func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.c.Close()
}
