package proxy

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/die-net/pathproxy/internal/dialer"
	"github.com/die-net/pathproxy/internal/metrics"
	"github.com/die-net/pathproxy/internal/request"
	"github.com/die-net/pathproxy/internal/target"
)

// pipeline carries one client connection from request to relay teardown.
type pipeline struct {
	ctx     context.Context
	cfg     *Config
	client  net.Conn
	target  net.Conn
	outcome string
}

func (p *pipeline) run() {
	req, err := request.Read(p.client, p.cfg.Reader)
	if err != nil {
		p.outcome = metrics.OutcomeIncomplete
		p.logf("read request: %v", err)
		return
	}
	p.logf("%s %s control=%t", req.Method, req.Path, req.Control)

	t, err := target.Extract(req.Path)
	if err != nil {
		resp := responseInvalidFormat
		p.outcome = metrics.OutcomeBadTarget
		if errors.Is(err, target.ErrEmptyHost) {
			resp = responseInvalidHostname
			p.outcome = metrics.OutcomeEmptyHost
		}
		p.logf("%v", err)
		p.respond(resp)
		return
	}
	if t.PortSource == target.PortFallback {
		p.logf("invalid port in %q, using %d", req.Path, t.Port)
	}

	start := time.Now()
	conn, err := p.cfg.Dialer.DialContext(p.ctx, "tcp", t.Address())
	metrics.RecordConnect(err == nil, time.Since(start).Seconds())
	if err != nil {
		p.outcome = metrics.OutcomeConnectFailed
		var ce *dialer.ConnectError
		if errors.As(err, &ce) {
			p.logf("connect %s port %s: %v", ce.Host, ce.Port, ce.Err)
		} else {
			p.logf("connect %s: %v", t.Address(), err)
		}
		p.respond(responseBadGateway)
		return
	}
	p.target = conn
	p.logf("connected to %s via %s (%s)", t.Address(), conn.RemoteAddr(), dialer.FamilyOf(conn.RemoteAddr()))

	out := request.Rewrite(req, t)
	metrics.RecordRequest(t.Scheme.String(), out.Mode.String())
	p.logf("forwarding %d bytes to %s (%s)", len(out.Bytes), t.Address(), out.Mode)

	if _, err := conn.Write(out.Bytes); err != nil {
		p.outcome = metrics.OutcomeForwardFailed
		p.logf("forward: %v", err)
		return
	}

	stats, err := Relay(p.ctx, p.client, conn, p.cfg.RelayBuffer)
	metrics.RecordRelay(stats.ClientToTarget, stats.TargetToClient)
	if err != nil {
		p.outcome = metrics.OutcomeRelayError
		p.logf("relay: %v", err)
		return
	}
	p.outcome = metrics.OutcomeRelayed
	p.logf("closed after %d bytes up, %d bytes down", stats.ClientToTarget, stats.TargetToClient)
}

func (p *pipeline) respond(resp []byte) {
	if err := writeResponse(p.client, resp, p.cfg.WriteTimeout); err != nil {
		p.logf("write response: %v", err)
	}
}

func (p *pipeline) logf(format string, args ...any) {
	if !p.cfg.Verbose {
		return
	}
	log.Printf("%s: "+format, append([]any{p.client.RemoteAddr()}, args...)...)
}
