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

// Client-side defaults.
const (
	DefaultDialTimeout = 3 * time.Second
	DefaultIOTimeout   = 10 * time.Second
)

// ClientConfig configures the initiating side of a session.
type ClientConfig struct {
	Workspace string
	Identity  ledger.Identity
	// DialTimeout bounds the TCP connect. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
	// IOTimeout is the per-record deadline. Zero means DefaultIOTimeout;
	// negative disables deadlines.
	IOTimeout time.Duration
	Logger    *slog.Logger
}

// ClientStats reports a completed session from the initiator's side.
type ClientStats struct {
	Peer               ledger.Identity `json:"peer"`
	SentEvents         int             `json:"sent_events"`
	SentRates          int             `json:"sent_rates"`
	ImportedEvents     int             `json:"imported_events"`
	ImportedRates      int             `json:"imported_rates"`
	PeerImportedEvents int             `json:"peer_imported_events"`
	PeerImportedRates  int             `json:"peer_imported_rates"`
}

// Sync dials addr and runs one push/pull session against replica.
func Sync(ctx context.Context, addr string, cfg ClientConfig, replica snapshot.Replica) (ClientStats, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ClientStats{}, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return SyncConn(ctx, c, cfg, replica)
}

// SyncConn runs one session over an established connection and closes it.
// Cancelling ctx aborts the session.
func SyncConn(ctx context.Context, c net.Conn, cfg ClientConfig, replica snapshot.Replica) (ClientStats, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.IOTimeout
	switch {
	case timeout == 0:
		timeout = DefaultIOTimeout
	case timeout < 0:
		timeout = 0
	}
	conn := NewConn(c, timeout)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	stats, err := runClient(ctx, conn, cfg, replica, log)
	if err != nil {
		return stats, cancelled(ctx, err)
	}
	return stats, nil
}

func runClient(ctx context.Context, conn *Conn, cfg ClientConfig, replica snapshot.Replica, log *slog.Logger) (ClientStats, error) {
	var stats ClientStats

	if err := conn.Send(HelloFrom(cfg.Workspace, cfg.Identity)); err != nil {
		return stats, conn.sendFailed(err)
	}
	msg, err := conn.Receive()
	if errors.Is(err, io.EOF) {
		return stats, ledger.NewProtocolError("", "Unexpected response from peer", nil)
	}
	if err != nil {
		return stats, err
	}
	switch m := msg.(type) {
	case HelloAck:
		stats.Peer = m.Identity()
	case ErrorMessage:
		return stats, peerError(m)
	default:
		return stats, ledger.NewProtocolError("", "Unexpected response from peer", nil)
	}
	log.Debug("sync session accepted", "peer", stats.Peer.DeviceID, "name", stats.Peer.DeviceName)

	sent, err := sendSnapshot(ctx, conn, replica, PushBegin{}, PushEnd{})
	stats.SentEvents = sent.Events
	stats.SentRates = sent.Rates
	if err != nil {
		return stats, err
	}

	imported, err := receiveRecords(ctx, conn, replica, TypePullBegin, TypePullEnd)
	stats.ImportedEvents = imported.ImportedEvents
	stats.ImportedRates = imported.ImportedRates
	if err != nil {
		return stats, err
	}

	msg, err = receive(conn, "summary")
	if err != nil {
		return stats, err
	}
	switch m := msg.(type) {
	case Summary:
		stats.PeerImportedEvents = m.ImportedEvents
		stats.PeerImportedRates = m.ImportedRates
	case ErrorMessage:
		return stats, peerError(m)
	default:
		return stats, ledger.NewProtocolError("summary", fmt.Sprintf("expected summary, got %s", msg.Type()), nil)
	}

	log.Debug("sync session complete",
		"peer", stats.Peer.DeviceID,
		"sent_events", stats.SentEvents,
		"imported_events", stats.ImportedEvents)
	return stats, nil
}
