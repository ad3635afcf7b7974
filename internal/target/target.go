// Package target extracts the destination encoded in a proxied request path.
//
// Requests name their destination in the path using
//
//	/<scheme>://<authority>[/<path>]
//
// where scheme is http, https or rtsp and authority is host, host:port,
// [ipv6] or [ipv6]:port.
package target

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used when the authority carries no usable port.
const DefaultPort = 80

// maxHostLen bounds a bracketed IPv6 literal.
const maxHostLen = 255

// Scheme is the protocol named by the encoded destination.
type Scheme int

const (
	SchemeHTTP Scheme = iota + 1
	SchemeHTTPS
	SchemeRTSP
)

func (s Scheme) String() string {
	switch s {
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	case SchemeRTSP:
		return "rtsp"
	default:
		return "unknown"
	}
}

// PortSource records which parsing branch produced Target.Port.
type PortSource int

const (
	// PortExplicit means the authority carried a valid port.
	PortExplicit PortSource = iota + 1
	// PortDefault means the authority had no port.
	PortDefault
	// PortFallback means the authority had a port that was not usable.
	PortFallback
)

func (p PortSource) String() string {
	switch p {
	case PortExplicit:
		return "explicit"
	case PortDefault:
		return "default"
	case PortFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedScheme means the path does not start with a known
	// scheme marker.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrMalformed means the authority could not be parsed.
	ErrMalformed = errors.New("malformed authority")
	// ErrEmptyHost means the authority parsed but named no host.
	ErrEmptyHost = errors.New("empty host")
)

// Error is returned by Extract. It wraps one of the sentinel errors above.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return "extract target from " + strconv.Quote(e.Path) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Target is a fully parsed destination. Host is never empty.
type Target struct {
	Scheme     Scheme
	Host       string
	Port       int
	Path       string
	PortSource PortSource
}

var markers = []struct {
	prefix string
	scheme Scheme
}{
	{"/http://", SchemeHTTP},
	{"/https://", SchemeHTTPS},
	{"/rtsp://", SchemeRTSP},
}

// Extract parses path. It returns either a complete Target or an *Error.
func Extract(path string) (Target, error) {
	var (
		rest   string
		scheme Scheme
	)
	for _, m := range markers {
		if strings.HasPrefix(path, m.prefix) {
			rest, scheme = path[len(m.prefix):], m.scheme
			break
		}
	}
	if scheme == 0 {
		return Target{}, &Error{Path: path, Err: ErrUnsupportedScheme}
	}

	authority, remainder := rest, "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority, remainder = rest[:i], rest[i:]
	}
	if authority == "" {
		return Target{}, &Error{Path: path, Err: ErrMalformed}
	}

	host, port, src, err := splitAuthority(authority)
	if err != nil {
		return Target{}, &Error{Path: path, Err: err}
	}
	if host == "" {
		return Target{}, &Error{Path: path, Err: ErrEmptyHost}
	}

	return Target{
		Scheme:     scheme,
		Host:       host,
		Port:       port,
		Path:       remainder,
		PortSource: src,
	}, nil
}

func splitAuthority(authority string) (string, int, PortSource, error) {
	if authority[0] == '[' {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, 0, ErrMalformed
		}
		host := authority[1:end]
		if len(host) > maxHostLen {
			return "", 0, 0, ErrMalformed
		}
		after := authority[end+1:]
		if !strings.HasPrefix(after, ":") {
			return host, DefaultPort, PortDefault, nil
		}
		port, src := parsePort(after[1:])
		return host, port, src, nil
	}

	i := strings.LastIndexByte(authority, ':')
	if i < 0 {
		return authority, DefaultPort, PortDefault, nil
	}
	port, src := parsePort(authority[i+1:])
	return authority[:i], port, src, nil
}

func parsePort(s string) (int, PortSource) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return DefaultPort, PortFallback
	}
	return n, PortExplicit
}

// IsIPv6 reports whether Host is an IPv6 literal.
func (t Target) IsIPv6() bool {
	return strings.IndexByte(t.Host, ':') >= 0
}

// Address returns host:port suitable for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// HostHeader returns the value for the Host header sent to the target.
// The port is omitted when it is DefaultPort.
func (t Target) HostHeader() string {
	if t.Port == DefaultPort {
		return t.Host
	}
	return t.Address()
}
