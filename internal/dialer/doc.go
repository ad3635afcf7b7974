// Package dialer provides outbound dialing implementations used by pathproxy.
//
// The direct dialer resolves a target host to all of its IPv4 and IPv6
// addresses and connects to the first one that answers. Upstream dialers
// reach the target through an HTTP CONNECT or SOCKS5 proxy instead.
package dialer
