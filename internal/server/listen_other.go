//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package server

import (
	"errors"
	"syscall"
)

func reusePort(network, address string, rc syscall.RawConn) error {
	return errors.New("SO_REUSEPORT is not supported on this platform")
}
