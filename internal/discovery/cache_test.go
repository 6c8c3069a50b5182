package discovery

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/testutil"
)

func TestLoadCache_Missing(t *testing.T) {
	peers, err := LoadCache(filepath.Join(t.TempDir(), "peers.json"))
	require.NoError(t, err)
	assert.NotNil(t, peers)
	assert.Empty(t, peers)
}

func TestSaveCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	seen := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	want := []Peer{
		{
			DeviceID:   testutil.DeviceID(1),
			DeviceName: "juicy_strawberry",
			UserHost:   "alice@laptop",
			Version:    "0.3.0",
			Addr:       netip.MustParseAddr("192.168.1.20"),
			TCPPort:    DefaultSyncPort,
			LastSeenAt: seen,
		},
		{
			DeviceID:   testutil.DeviceID(2),
			DeviceName: "zesty_kiwi",
			UserHost:   "bob@desk",
			Version:    "0.3.0",
			Addr:       netip.MustParseAddr("192.168.1.21"),
			TCPPort:    DefaultSyncPort,
			LastSeenAt: seen,
		},
	}
	require.NoError(t, SaveCache(path, want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"addr": "192.168.1.20"`)
	assert.Contains(t, string(raw), `"tcp_port": 45668`)

	got, err := LoadCache(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveCache_OverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	require.NoError(t, SaveCache(path, []Peer{{DeviceName: "a"}, {DeviceName: "b"}}))
	require.NoError(t, SaveCache(path, nil))

	got, err := LoadCache(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCache_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadCache(path)
	require.Error(t, err)
	assert.True(t, ledger.IsDataError(err))
}

func TestResolve(t *testing.T) {
	peers := []Peer{{DeviceName: "a"}, {DeviceName: "b"}}

	tests := []struct {
		handle  string
		want    string
		wantErr string
	}{
		{handle: "@1", want: "a"},
		{handle: "@2", want: "b"},
		{handle: "1", wantErr: "Invalid peer handle '1'. Expected like @1. Run: bankero sync discover"},
		{handle: "@x", wantErr: "Invalid peer handle '@x'"},
		{handle: "@0", wantErr: "Peer handle must be >= 1"},
		{handle: "@3", wantErr: "No peer @3 in cache. Run: bankero sync discover"},
	}
	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			p, err := Resolve(peers, tt.handle)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, ledger.IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.DeviceName)
		})
	}
}
