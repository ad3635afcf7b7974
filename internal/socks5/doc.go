// Package socks5 wraps the SOCKS5 handshake primitives of
// github.com/txthinking/socks5.
//
// The client side lets pathproxy reach targets through an upstream SOCKS5
// proxy. The server side is a minimal CONNECT-only responder used to
// exercise the client in tests and tools; it is not a SOCKS5 server.
package socks5
