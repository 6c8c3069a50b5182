// Package discovery finds peers on the local network that expose the same
// workspace.
//
// A requester sends one JSON datagram {magic, workspace, nonce} either to an
// explicit target or to the broadcast address plus localhost, then samples
// replies until a deadline. A responder answers matching requests with its
// identity and the TCP port of its sync listener. Everything is best effort:
// malformed, foreign or stale datagrams are dropped without an error.
package discovery

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Well-known ports and protocol constants.
const (
	DefaultDiscoveryPort = 45667
	DefaultSyncPort      = 45668
	Magic                = "bankero-sync-v1"

	// DefaultTimeout bounds a discovery run when the caller gives none.
	DefaultTimeout = 1500 * time.Millisecond

	pollInterval = 100 * time.Millisecond
	maxDatagram  = 64 * 1024
)

// Request is the datagram a requester sends.
type Request struct {
	Magic     string `json:"magic"`
	Workspace string `json:"workspace"`
	Nonce     uint64 `json:"nonce"`
}

// Response is a responder's answer to a matching Request.
type Response struct {
	Magic      string    `json:"magic"`
	Workspace  string    `json:"workspace"`
	Nonce      uint64    `json:"nonce"`
	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`
	UserHost   string    `json:"user_host"`
	Version    string    `json:"version"`
	TCPPort    uint16    `json:"tcp_port"`
}

// NewNonce derives a request nonce from the first eight bytes of the device
// id (little endian) XORed with the current unix time in milliseconds.
func NewNonce(deviceID uuid.UUID, now time.Time) uint64 {
	return binary.LittleEndian.Uint64(deviceID[:8]) ^ uint64(now.UnixMilli())
}

// Peer is a discovered device as stored in the peer cache.
type Peer struct {
	DeviceID   uuid.UUID  `json:"device_id"`
	DeviceName string     `json:"device_name"`
	UserHost   string     `json:"user_host"`
	Version    string     `json:"version"`
	Addr       netip.Addr `json:"addr"`
	TCPPort    uint16     `json:"tcp_port"`
	LastSeenAt time.Time  `json:"last_seen_at"`
}

// TCPAddr is the address of the peer's sync listener.
func (p Peer) TCPAddr() netip.AddrPort {
	return netip.AddrPortFrom(p.Addr, p.TCPPort)
}

// FormatPeer renders the listing line for the peer at 1-based handle n.
func FormatPeer(n int, p Peer) string {
	return fmt.Sprintf("@%d %q - %s - bankero v%s", n, p.DeviceName, p.UserHost, p.Version)
}
