package ledger

import (
	"os"
	"os/user"

	"github.com/google/uuid"
)

// Identity describes a device as announced to peers during discovery and
// LAN sync.
type Identity struct {
	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`
	UserHost   string    `json:"user_host"`
	Version    string    `json:"version"`
}

// LocalUserHost returns "user@host" for the current process, falling back
// to "unknown" for either half.
func LocalUserHost() string {
	name := os.Getenv("USER")
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	if name == "" {
		name = "unknown"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return name + "@" + host
}
