//go:build unix

package dhcp

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// broadcastControl enables SO_BROADCAST for replies to 255.255.255.255 and
// SO_REUSEADDR so a restart can rebind port 67 immediately.
func broadcastControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func isAddrNotAvailable(err error) bool {
	return errors.Is(err, unix.EADDRNOTAVAIL)
}
