package dialer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/die-net/pathproxy/internal/testutil"
)

func TestDirectDialerConnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	_, port, _ := net.SplitHostPort(echoLn.Addr().String())

	d, err := NewDirectDialer(Config{DialTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	// localhost may resolve to ::1 ahead of 127.0.0.1; the echo server only
	// listens on the latter, so this also covers moving past a refused
	// candidate.
	for _, host := range []string{"127.0.0.1", "localhost"} {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
		if err != nil {
			t.Fatalf("%s: %v", host, err)
		}
		if got := FamilyOf(conn.RemoteAddr()); got != FamilyIPv4 {
			t.Errorf("%s: family %s, want ipv4", host, got)
		}
		testutil.AssertEcho(t, conn, conn, []byte("hello"))
		_ = conn.Close()
	}
}

func TestDirectDialerRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	addr := testutil.ClosedAddr(t)
	host, port, _ := net.SplitHostPort(addr)

	d, err := NewDirectDialer(Config{DialTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.DialContext(ctx, "tcp", addr)
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectError, got %v", err)
	}
	if ce.Host != host || ce.Port != port {
		t.Fatalf("got %s:%s want %s:%s", ce.Host, ce.Port, host, port)
	}
}

func TestDirectDialerResolveFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := NewDirectDialer(Config{DialTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.DialContext(ctx, "tcp", "no-such-host.invalid:80")
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectError, got %v", err)
	}
	if ce.Host != "no-such-host.invalid" || ce.Port != "80" {
		t.Fatalf("unexpected error fields: %+v", ce)
	}
}

func TestDirectDialerRejectsBadInput(t *testing.T) {
	d, err := NewDirectDialer(Config{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.DialContext(context.Background(), "tcp", "missing-port"); err == nil {
		t.Fatal("expected error for address without port")
	}
	if _, err := d.DialContext(context.Background(), "udp", "127.0.0.1:53"); err == nil {
		t.Fatal("expected error for udp")
	}
}

func TestDirectDialerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := NewDirectDialer(Config{DialTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.DialContext(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error")
	}
}
