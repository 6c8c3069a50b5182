package lansync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/roach88/bankero/internal/discovery"
	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/snapshot"
)

// ExposeConfig configures a long-running exposing device.
type ExposeConfig struct {
	Workspace string
	Identity  ledger.Identity
	// BindIP defaults to 0.0.0.0.
	BindIP string
	// UDPPort and TCPPort default to the well-known ports when nil; a
	// pointer to 0 asks for an ephemeral port.
	UDPPort *uint16
	TCPPort *uint16
	Gate    AcceptGate
	// Once stops after the first session, whatever its outcome.
	Once bool
	// Timeout is the per-record deadline inside a session. Zero means none.
	Timeout time.Duration
	// PrintPorts writes lan_udp and lan_tcp lines before the banner.
	PrintPorts bool
	// Out receives the operator transcript. Nil discards it.
	Out io.Writer
	// OnReady, if set, runs once both sockets are bound.
	OnReady func(udp, tcp netip.AddrPort)
	Logger  *slog.Logger
}

// Expose answers discovery requests and serves sync sessions one at a time
// until ctx is cancelled, or after one session in Once mode.
func Expose(ctx context.Context, cfg ExposeConfig, replica snapshot.Replica) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	bindIP := cfg.BindIP
	if bindIP == "" {
		bindIP = "0.0.0.0"
	}
	if _, err := netip.ParseAddr(bindIP); err != nil {
		return ledger.NewConfigurationError("", fmt.Sprintf("invalid bind address '%s'", bindIP), err)
	}
	udpPort := portOr(cfg.UDPPort, discovery.DefaultDiscoveryPort)
	tcpPort := portOr(cfg.TCPPort, discovery.DefaultSyncPort)

	tcpAddr := net.JoinHostPort(bindIP, fmt.Sprint(tcpPort))
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("bind TCP sync address %s: %w", tcpAddr, err)
	}
	defer ln.Close()
	tcpLocal := ln.Addr().(*net.TCPAddr).AddrPort()

	responder, err := discovery.Listen(discovery.ResponderConfig{
		Addr:      net.JoinHostPort(bindIP, fmt.Sprint(udpPort)),
		Workspace: cfg.Workspace,
		Identity:  cfg.Identity,
		TCPPort:   tcpLocal.Port(),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer responder.Close()

	if cfg.PrintPorts {
		fmt.Fprintf(out, "lan_udp\t%s\n", responder.LocalAddr())
		fmt.Fprintf(out, "lan_tcp\t%s\n", tcpLocal)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := responder.Serve(ctx); err != nil {
			log.Warn("discovery responder stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ln.Close()
	}()

	if cfg.OnReady != nil {
		cfg.OnReady(responder.LocalAddr(), tcpLocal)
	}
	fmt.Fprintf(out, "Exposed as %q waiting for sync events\n", cfg.Identity.DeviceName)
	log.Info("exposing device",
		"workspace", cfg.Workspace,
		"udp", responder.LocalAddr(),
		"tcp", tcpLocal)

	server := NewServer(ServerConfig{
		Workspace: cfg.Workspace,
		Identity:  cfg.Identity,
		Gate:      cfg.Gate,
		Timeout:   cfg.Timeout,
		OnAccept: func(Hello) {
			fmt.Fprintln(out, "received sync event")
			fmt.Fprintln(out, "syncing..")
		},
		Logger: log,
	}, replica)

	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			log.Warn("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		stats, err := server.Handle(ctx, c)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		switch {
		case ledger.IsRejected(err):
			fmt.Fprintln(out, "rejected sync")
		case err != nil:
			fmt.Fprintf(out, "sync failed: %v\n", err)
			log.Warn("sync session failed", "remote", c.RemoteAddr(), "error", err)
		default:
			fmt.Fprintln(out, "sync complete")
			fmt.Fprintln(out, "sync summary:")
			fmt.Fprintf(out, "- sent events: %d\n", stats.SentEvents)
			fmt.Fprintf(out, "- sent rates: %d\n", stats.SentRates)
			fmt.Fprintf(out, "- imported events: %d\n", stats.ImportedEvents)
			fmt.Fprintf(out, "- imported rates: %d\n", stats.ImportedRates)
		}

		if cfg.Once {
			return nil
		}
	}
}

func portOr(p *uint16, def uint16) uint16 {
	if p == nil {
		return def
	}
	return *p
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// nextBackoff doubles the wait after each consecutive accept failure, from
// minAcceptBackoff up to maxAcceptBackoff.
func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptBackoff
	}
	return min(2*prev, maxAcceptBackoff)
}
