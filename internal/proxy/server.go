package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/die-net/pathproxy/internal/gate"
	"github.com/die-net/pathproxy/internal/metrics"
)

// Server accepts client connections and runs one pipeline per connection,
// never more than Config.MaxConns at once.
type Server struct {
	ctx  context.Context
	cfg  Config
	gate *gate.Gate
	wg   sync.WaitGroup
}

// NewServer constructs a Server. Canceling ctx stops Serve and tears down
// in-flight pipelines.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Dialer == nil {
		return nil, errors.New("proxy: nil dialer")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = gate.DefaultCeiling
	}
	if cfg.RelayBuffer <= 0 {
		cfg.RelayBuffer = DefaultRelayBuffer
	}

	g, err := gate.New(cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	metrics.GateCeiling.Set(float64(g.Ceiling()))

	return &Server{ctx: ctx, cfg: cfg, gate: g}, nil
}

// InUse reports how many pipelines currently hold a slot.
func (s *Server) InUse() int64 {
	return s.gate.InUse()
}

// Serve accepts connections on ln until the server context is canceled or
// ln fails. It closes ln, waits for in-flight pipelines, and returns nil
// on cancellation.
func (s *Server) Serve(ln net.Listener) error {
	stop := context.AfterFunc(s.ctx, func() {
		_ = ln.Close()
	})
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		start := time.Now()
		slot, err := s.gate.Acquire(s.ctx)
		if err != nil {
			_ = conn.Close()
			metrics.RecordPipeline(metrics.OutcomeGateCanceled)
			return nil
		}
		metrics.GateWaitDuration.Observe(time.Since(start).Seconds())

		s.wg.Add(1)
		go s.handle(conn, slot)
	}
}

// handle owns client and slot for the life of one pipeline.
func (s *Server) handle(client net.Conn, slot *gate.Slot) {
	metrics.PipelinesActive.Inc()

	p := &pipeline{
		ctx:    s.ctx,
		cfg:    &s.cfg,
		client: client,
	}

	stop := context.AfterFunc(s.ctx, func() {
		_ = client.Close()
	})

	defer func() {
		if r := recover(); r != nil {
			p.outcome = metrics.OutcomePanic
			log.Printf("%s: panic: %v", client.RemoteAddr(), r)
		}
		stop()
		if p.target != nil {
			_ = p.target.Close()
		}
		_ = client.Close()
		slot.Release()

		metrics.PipelinesActive.Dec()
		metrics.RecordPipeline(p.outcome)
		s.wg.Done()
	}()

	p.run()
}
