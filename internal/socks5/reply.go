package socks5

import (
	"fmt"
	"net"
	"net/netip"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	RepRefused        = txsocks5.RepConnectionRefused
	RepCmdUnsupported = txsocks5.RepCommandNotSupported
)

// Auth holds optional username/password credentials. An empty Username
// means no authentication.
type Auth struct {
	Username string
	Password string
}

// WriteFailureReply writes reply code rep with a zero bound address of the
// same family as atyp.
func WriteFailureReply(conn net.Conn, rep, atyp byte) {
	bound := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	if atyp == txsocks5.ATYPIPv6 {
		bound = netip.AddrPortFrom(netip.IPv6Unspecified(), 0)
	}
	_, _ = boundReply(rep, bound).WriteTo(conn)
}

// WriteSuccessReply reports bound as the address the server connected from.
func WriteSuccessReply(conn net.Conn, bound net.Addr) error {
	ap, err := netip.ParseAddrPort(bound.String())
	if err != nil {
		return fmt.Errorf("parse bound address %q: %w", bound, err)
	}
	if _, err := boundReply(txsocks5.RepSuccess, ap).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

func boundReply(rep byte, ap netip.AddrPort) *txsocks5.Reply {
	port := []byte{byte(ap.Port() >> 8), byte(ap.Port())}
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		b := addr.As4()
		return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, b[:], port)
	}
	b := addr.As16()
	return txsocks5.NewReply(rep, txsocks5.ATYPIPv6, b[:], port)
}

// 0xFF: no acceptable methods.
func writeNoAcceptableMethods(conn net.Conn) {
	_, _ = txsocks5.NewNegotiationReply(0xff).WriteTo(conn)
}
