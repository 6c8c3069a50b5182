package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/bankero/internal/ledger"
)

// Options configures one discovery run.
type Options struct {
	Workspace string
	DeviceID  uuid.UUID
	// Target is an explicit "ip:port" to probe. Empty means broadcast plus
	// localhost on Port.
	Target string
	// Port is the responder port used without a Target. Zero means
	// DefaultDiscoveryPort.
	Port uint16
	// Timeout is the wall-clock bound of the run. Zero means DefaultTimeout.
	Timeout time.Duration
	// PollInterval is the per-read timeout. Zero means 100ms.
	PollInterval time.Duration
	Clock        ledger.Clock
	Logger       *slog.Logger
}

// Discover sends one request and collects matching replies until the
// timeout elapses. The first reply seen for a device id wins; the result is
// sorted by device name, user@host and device id.
func Discover(ctx context.Context, opts Options) ([]Peer, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = pollInterval
	}

	targets, err := resolveTargets(opts)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("bind UDP socket for discovery: %w", err)
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()

	nonce := NewNonce(opts.DeviceID, clock.Now())
	payload, err := json.Marshal(Request{Magic: Magic, Workspace: opts.Workspace, Nonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("encode discovery request: %w", err)
	}
	for _, to := range targets {
		if _, err := conn.WriteToUDPAddrPort(payload, to); err != nil {
			log.Debug("discovery send failed", "to", to, "error", err)
		}
	}

	deadline := time.Now().Add(timeout)
	seen := make(map[uuid.UUID]Peer)
	buf := make([]byte, maxDatagram)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wait := time.Now().Add(poll)
		if wait.After(deadline) {
			wait = deadline
		}
		if err := conn.SetReadDeadline(wait); err != nil {
			return nil, fmt.Errorf("set discovery timeout: %w", err)
		}

		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return nil, fmt.Errorf("discovery UDP recv failed: %w", err)
		}

		var resp Response
		if err := json.Unmarshal(buf[:n], &resp); err != nil {
			continue
		}
		if resp.Magic != Magic || resp.Nonce != nonce || resp.Workspace != opts.Workspace {
			continue
		}
		if _, dup := seen[resp.DeviceID]; dup {
			continue
		}
		seen[resp.DeviceID] = Peer{
			DeviceID:   resp.DeviceID,
			DeviceName: resp.DeviceName,
			UserHost:   resp.UserHost,
			Version:    resp.Version,
			Addr:       from.Addr().Unmap(),
			TCPPort:    resp.TCPPort,
			LastSeenAt: clock.Now().UTC(),
		}
		log.Debug("discovered peer", "device", resp.DeviceID, "name", resp.DeviceName, "from", from)
	}

	peers := make([]Peer, 0, len(seen))
	for _, p := range seen {
		peers = append(peers, p)
	}
	SortPeers(peers)
	return peers, nil
}

// SortPeers orders peers by device name, then user@host, then device id.
func SortPeers(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool {
		a, b := peers[i], peers[j]
		if a.DeviceName != b.DeviceName {
			return a.DeviceName < b.DeviceName
		}
		if a.UserHost != b.UserHost {
			return a.UserHost < b.UserHost
		}
		return a.DeviceID.String() < b.DeviceID.String()
	})
}

func resolveTargets(opts Options) ([]netip.AddrPort, error) {
	if opts.Target != "" {
		addr, err := netip.ParseAddrPort(opts.Target)
		if err != nil {
			return nil, ledger.NewConfigurationError("discover",
				fmt.Sprintf("Invalid --target socket address '%s'", opts.Target), err)
		}
		if !addr.Addr().Is4() && !addr.Addr().Is4In6() {
			return nil, ledger.NewConfigurationError("discover",
				fmt.Sprintf("Invalid --target socket address '%s': only IPv4 is supported", opts.Target), nil)
		}
		return []netip.AddrPort{netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())}, nil
	}
	port := opts.Port
	if port == 0 {
		port = DefaultDiscoveryPort
	}
	return []netip.AddrPort{
		netip.AddrPortFrom(netip.AddrFrom4([4]byte{255, 255, 255, 255}), port),
		netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port),
	}, nil
}
