package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var errNotIPv6 = errors.New("ipv6-only listener requires an IPv6 address")

// ListenTCP listens on the given network/address and returns a net.Listener
// that applies keepAliveConfig to accepted TCP connections.
//
// When ipv6Only is set the socket must be IPv6 and will not accept
// IPv4-mapped connections.
func ListenTCP(ctx context.Context, network, addr string, keepAliveConfig net.KeepAliveConfig, ipv6Only bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if ipv6Only {
		lc.Control = func(network, _ string, c syscall.RawConn) error {
			if network != "tcp6" {
				return errNotIPv6
			}
			return setIPv6Only(c)
		}
	}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	return &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAliveConfig}, nil
}

// KeepAliveListener wraps a net.Listener and applies KeepAliveConfig to any
// accepted *net.TCPConn.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

// Accept accepts the next connection and applies KeepAliveConfig if the
// connection is a *net.TCPConn.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	tc, ok := conn.(*net.TCPConn)
	if ok {
		_ = tc.SetKeepAliveConfig(l.KeepAliveConfig)
	}

	return conn, nil
}
