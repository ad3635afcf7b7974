package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

type directDialer struct {
	cfg      Config
	resolver *net.Resolver
}

// NewDirectDialer returns a Dialer that connects to targets itself.
func NewDirectDialer(cfg Config) (Dialer, error) {
	r := cfg.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	return &directDialer{cfg: cfg, resolver: r}, nil
}

// DialContext resolves the host in address to every IPv4 and IPv6 address
// it has and tries them in resolution order, each under DialTimeout. The
// first successful connection is returned. Failures are *ConnectError.
func (f *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	ipNet, err := lookupNetwork(network)
	if err != nil {
		return nil, &ConnectError{Host: host, Port: port, Err: err}
	}

	addrs, err := f.resolver.LookupNetIP(ctx, ipNet, host)
	if err != nil {
		return nil, &ConnectError{Host: host, Port: port, Err: fmt.Errorf("resolve: %w", err)}
	}
	if len(addrs) == 0 {
		return nil, &ConnectError{Host: host, Port: port, Err: errors.New("resolve: no addresses")}
	}

	dd := net.Dialer{Timeout: f.cfg.DialTimeout}

	var lastErr error
	for _, a := range addrs {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		conn, err := dd.DialContext(ctx, network, candidate(a, port))
		if err != nil {
			lastErr = err
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetKeepAliveConfig(f.cfg.KeepAlive)
		}
		return conn, nil
	}

	return nil, &ConnectError{Host: host, Port: port, Err: lastErr}
}

func candidate(a netip.Addr, port string) string {
	return net.JoinHostPort(a.Unmap().String(), port)
}

func lookupNetwork(network string) (string, error) {
	switch network {
	case "tcp":
		return "ip", nil
	case "tcp4":
		return "ip4", nil
	case "tcp6":
		return "ip6", nil
	default:
		return "", fmt.Errorf("unsupported network %q", network)
	}
}
