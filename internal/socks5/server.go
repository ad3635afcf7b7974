package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"

	txsocks5 "github.com/txthinking/socks5"
)

// ServerNegotiate performs the server half of method negotiation. A non-empty
// auth.Username requires username/password auth; otherwise no-auth is used.
func ServerNegotiate(conn net.Conn, auth Auth) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if auth.Username == "" {
		if !slices.Contains(neg.Methods, txsocks5.MethodNone) {
			writeNoAcceptableMethods(conn)
			return errors.New("client does not support no-auth")
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
			return fmt.Errorf("negotiation reply: %w", err)
		}
		return nil
	}

	if !slices.Contains(neg.Methods, txsocks5.MethodUsernamePassword) {
		writeNoAcceptableMethods(conn)
		return errors.New("client does not support username/password")
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}

	urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if string(urq.Uname) != auth.Username || string(urq.Passwd) != auth.Password {
		_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
		return errors.New("auth failed")
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}
	return nil
}

// ServerReadRequest reads the client's command request.
func ServerReadRequest(conn net.Conn) (*txsocks5.Request, error) {
	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return req, nil
}

// ServeConnect answers a single CONNECT on conn: it negotiates auth, dials
// the requested address with dial, replies, and then copies bytes both ways
// until either side closes.
func ServeConnect(ctx context.Context, conn net.Conn, auth Auth, dial func(ctx context.Context, address string) (net.Conn, error)) error {
	if err := ServerNegotiate(conn, auth); err != nil {
		return err
	}

	req, err := ServerReadRequest(conn)
	if err != nil {
		return err
	}
	if req.Cmd != CmdConnect {
		WriteFailureReply(conn, RepCmdUnsupported, req.Atyp)
		return fmt.Errorf("unsupported command %d", req.Cmd)
	}

	dst, err := dial(ctx, req.Address())
	if err != nil {
		WriteFailureReply(conn, RepRefused, req.Atyp)
		return err
	}
	defer dst.Close()

	if err := WriteSuccessReply(conn, dst.LocalAddr()); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(dst, conn)
		_ = dst.Close()
	}()
	_, _ = io.Copy(conn, dst)
	_ = conn.Close()
	<-done
	return nil
}
