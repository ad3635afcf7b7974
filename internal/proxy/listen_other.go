//go:build !unix

package proxy

import (
	"errors"
	"syscall"
)

func setIPv6Only(syscall.RawConn) error {
	return errors.New("ipv6-only listeners are not supported on this platform")
}
