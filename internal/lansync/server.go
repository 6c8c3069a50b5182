package lansync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/snapshot"
)

// RejectedMessage is sent to an initiator whose session was declined.
const RejectedMessage = "Sync rejected by user"

// SessionStats counts what one session moved in each direction.
type SessionStats struct {
	SentEvents     int
	SentRates      int
	ImportedEvents int
	ImportedRates  int
}

// ServerConfig configures the receiving side of a session.
type ServerConfig struct {
	Workspace string
	Identity  ledger.Identity
	// Gate approves sessions after the workspace check. Nil accepts all.
	Gate AcceptGate
	// Timeout is the per-record read/write deadline. Zero means none.
	Timeout time.Duration
	// OnAccept, if set, runs once a session passes the gate.
	OnAccept func(Hello)
	Logger   *slog.Logger
}

// Server runs the receiving side of sync sessions against a replica.
type Server struct {
	cfg     ServerConfig
	replica snapshot.Replica
	log     *slog.Logger
}

// NewServer returns a Server for replica.
func NewServer(cfg ServerConfig, replica snapshot.Replica) *Server {
	if cfg.Gate == nil {
		cfg.Gate = AutoAccept{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, replica: replica, log: log}
}

// Handle runs one session on c and closes it. A session that fails before
// the gate has no effect on the replica; a rejected session returns a
// rejected error. Cancelling ctx closes c, which unblocks any pending read
// or write, and Handle then returns the context's error.
func (s *Server) Handle(ctx context.Context, c net.Conn) (SessionStats, error) {
	conn := NewConn(c, s.cfg.Timeout)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	hello, err := s.handshake(ctx, conn)
	if err != nil {
		return SessionStats{}, cancelled(ctx, err)
	}
	if s.cfg.OnAccept != nil {
		s.cfg.OnAccept(hello)
	}

	stats, err := s.exchange(ctx, conn)
	if err != nil {
		if ctx.Err() != nil {
			return stats, cancelled(ctx, err)
		}
		var le *ledger.Error
		if errors.As(err, &le) && le.Kind == ledger.KindProtocol {
			conn.sendBestEffort(ErrorMessage{Message: le.Message, Code: CodeProtocol})
		}
		return stats, err
	}
	s.log.Info("sync session complete",
		"peer", hello.DeviceID,
		"sent_events", stats.SentEvents,
		"sent_rates", stats.SentRates,
		"imported_events", stats.ImportedEvents,
		"imported_rates", stats.ImportedRates)
	return stats, nil
}

// handshake reads Hello, checks the workspace, asks the gate and sends
// HelloAck.
func (s *Server) handshake(ctx context.Context, conn *Conn) (Hello, error) {
	msg, err := conn.Receive()
	if errors.Is(err, io.EOF) {
		return Hello{}, ledger.NewProtocolError("sync session", "connection closed before hello", nil)
	}
	if err != nil {
		return Hello{}, fmt.Errorf("sync session: %w", err)
	}

	hello, ok := msg.(Hello)
	if !ok {
		conn.sendBestEffort(ErrorMessage{Message: "Expected hello", Code: CodeProtocol})
		return Hello{}, ledger.NewProtocolError("sync session",
			fmt.Sprintf("Expected hello, got %s", msg.Type()), nil)
	}

	if hello.Workspace != s.cfg.Workspace {
		text := fmt.Sprintf("Workspace mismatch (peer=%s, local=%s)", hello.Workspace, s.cfg.Workspace)
		conn.sendBestEffort(ErrorMessage{Message: text, Code: CodeWorkspaceMismatch})
		return Hello{}, ledger.NewProtocolError("sync session", text, nil)
	}

	accepted, err := s.cfg.Gate.Accept(ctx, AcceptRequest{Remote: addrString(conn.RemoteAddr()), Hello: hello})
	if err != nil {
		return Hello{}, fmt.Errorf("sync session: accept: %w", err)
	}
	if !accepted {
		conn.sendBestEffort(ErrorMessage{Message: RejectedMessage, Code: CodeRejected})
		s.log.Info("sync session rejected", "peer", hello.DeviceID, "name", hello.DeviceName)
		return Hello{}, ledger.NewRejectedError("sync session", RejectedMessage)
	}

	if err := conn.Send(AckFrom(s.cfg.Identity)); err != nil {
		return Hello{}, fmt.Errorf("sync session: %w", err)
	}
	return hello, nil
}

// exchange receives the push, sends the pull and the summary.
func (s *Server) exchange(ctx context.Context, conn *Conn) (SessionStats, error) {
	var stats SessionStats

	imported, err := receiveRecords(ctx, conn, s.replica, TypePushBegin, TypePushEnd)
	stats.ImportedEvents = imported.ImportedEvents
	stats.ImportedRates = imported.ImportedRates
	if err != nil {
		return stats, err
	}

	sent, err := sendSnapshot(ctx, conn, s.replica, PullBegin{}, PullEnd{})
	stats.SentEvents = sent.Events
	stats.SentRates = sent.Rates
	if err != nil {
		return stats, err
	}

	if err := conn.Send(Summary{ImportedEvents: imported.ImportedEvents, ImportedRates: imported.ImportedRates}); err != nil {
		return stats, fmt.Errorf("sync session: %w", err)
	}
	return stats, nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// cancelled prefers ctx's error over err once ctx is done, so callers see a
// shutdown rather than the closed-connection error it caused.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	return fmt.Errorf("sync session: %w", ctx.Err())
}
