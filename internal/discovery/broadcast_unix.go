//go:build unix

package discovery

import "syscall"

// enableBroadcast sets SO_BROADCAST so requests can go to 255.255.255.255.
func enableBroadcast(network, address string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return serr
}
