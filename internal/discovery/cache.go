package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/bankero/internal/config"
	"github.com/roach88/bankero/internal/ledger"
)

// LoadCache reads the peer cache. A missing file is an empty cache.
func LoadCache(path string) ([]Peer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Peer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	peers := []Peer{}
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, ledger.NewDataError("load peer cache", "failed to parse "+path, err)
	}
	return peers, nil
}

// SaveCache replaces the peer cache with peers, in order.
func SaveCache(path string, peers []Peer) error {
	if peers == nil {
		peers = []Peer{}
	}
	data, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode peer cache: %w", err)
	}
	if err := config.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ParseHandle parses "@N" into its 1-based ordinal.
func ParseHandle(handle string) (int, error) {
	if !strings.HasPrefix(handle, "@") {
		return 0, ledger.NewConfigurationError("", fmt.Sprintf(
			"Invalid peer handle '%s'. Expected like @1. Run: bankero sync discover", handle), nil)
	}
	n, err := strconv.Atoi(handle[1:])
	if err != nil {
		return 0, ledger.NewConfigurationError("", fmt.Sprintf("Invalid peer handle '%s'", handle), err)
	}
	if n < 1 {
		return 0, ledger.NewConfigurationError("", "Peer handle must be >= 1", nil)
	}
	return n, nil
}

// Resolve returns the cached peer for handle.
func Resolve(peers []Peer, handle string) (Peer, error) {
	n, err := ParseHandle(handle)
	if err != nil {
		return Peer{}, err
	}
	if n > len(peers) {
		return Peer{}, ledger.NewConfigurationError("", fmt.Sprintf(
			"No peer %s in cache. Run: bankero sync discover", handle), nil)
	}
	return peers[n-1], nil
}
