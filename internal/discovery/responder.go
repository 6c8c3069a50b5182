package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/roach88/bankero/internal/ledger"
)

// ResponderConfig describes the device a Responder announces.
type ResponderConfig struct {
	// Addr is the UDP bind address. Empty means 0.0.0.0:DefaultDiscoveryPort;
	// port 0 picks an ephemeral port.
	Addr      string
	Workspace string
	Identity  ledger.Identity
	// TCPPort is the port of the sync listener running alongside.
	TCPPort uint16
	Logger  *slog.Logger
}

// Responder answers discovery requests for one workspace.
type Responder struct {
	cfg       ResponderConfig
	conn      *net.UDPConn
	log       *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Listen binds the responder's UDP socket.
func Listen(cfg ResponderConfig) (*Responder, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf("0.0.0.0:%d", DefaultDiscoveryPort)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, ledger.NewConfigurationError("discovery listen",
			fmt.Sprintf("invalid bind address '%s'", addr), err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind UDP discovery address %s: %w", addr, err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Responder{cfg: cfg, conn: conn, log: log}, nil
}

// LocalAddr returns the bound UDP address.
func (r *Responder) LocalAddr() netip.AddrPort {
	return r.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Serve answers requests until ctx is cancelled or the responder is closed.
// Read errors other than closure are logged and skipped.
func (r *Responder) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Debug("discovery read failed", "error", err)
			continue
		}

		reply, ok := r.Respond(buf[:n])
		if !ok {
			r.log.Debug("discovery request dropped", "from", from)
			continue
		}
		if _, err := r.conn.WriteToUDPAddrPort(reply, from); err != nil {
			r.log.Debug("discovery reply failed", "to", from, "error", err)
			continue
		}
		r.log.Debug("discovery reply sent", "to", from, "workspace", r.cfg.Workspace)
	}
}

// Respond builds the reply to one datagram. It reports false when the
// datagram is not a request for this responder's workspace.
func (r *Responder) Respond(datagram []byte) ([]byte, bool) {
	var req Request
	if err := json.Unmarshal(datagram, &req); err != nil {
		return nil, false
	}
	if req.Magic != Magic || req.Workspace != r.cfg.Workspace {
		return nil, false
	}
	reply, err := json.Marshal(Response{
		Magic:      Magic,
		Workspace:  r.cfg.Workspace,
		Nonce:      req.Nonce,
		DeviceID:   r.cfg.Identity.DeviceID,
		DeviceName: r.cfg.Identity.DeviceName,
		UserHost:   r.cfg.Identity.UserHost,
		Version:    r.cfg.Identity.Version,
		TCPPort:    r.cfg.TCPPort,
	})
	if err != nil {
		return nil, false
	}
	return reply, true
}

// Close releases the socket. It is safe to call more than once.
func (r *Responder) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}
