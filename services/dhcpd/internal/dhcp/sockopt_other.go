//go:build !unix

package dhcp

import "syscall"

func broadcastControl(network, address string, c syscall.RawConn) error {
	return nil
}

func isAddrNotAvailable(err error) bool {
	return false
}
