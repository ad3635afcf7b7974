package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/pathproxy/internal/dialer"
	"github.com/die-net/pathproxy/internal/gate"
	"github.com/die-net/pathproxy/internal/proxy"
	"github.com/die-net/pathproxy/internal/request"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "2.2"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	readerDefaults := request.DefaultReaderConfig()

	var (
		port     = pflag.IntP("port", "p", 8080, "Listen port")
		bind     = pflag.String("bind", "", "Listen address. Empty listens on all addresses.")
		ipv6Only = pflag.BoolP("ipv6-only", "6", false, "Accept IPv6 connections only")
		verbose  = pflag.BoolP("verbose", "v", false, "Enable per-connection logging")

		upstream = pflag.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | http://[user:pass@]host:port | https://[user:pass@]host:port | socks5://[user:pass@]host:port")

		maxConns           = pflag.Int64("max-conns", gate.DefaultCeiling, "Maximum number of connections served at once")
		readTimeout        = pflag.Duration("read-timeout", readerDefaults.Timeout, "Timeout for reading request headers, and for each idle read of the body")
		controlReadTimeout = pflag.Duration("control-read-timeout", readerDefaults.ControlTimeout, "Timeout for reading headers of streaming-control requests")
		maxHeaderBytes     = pflag.Int("max-header-bytes", readerDefaults.MaxHeaderBytes, "Maximum size of a request header block")
		maxBodyBytes       = pflag.Int("max-body-bytes", readerDefaults.MaxBodyBytes, "Maximum request body buffered before forwarding")
		relayBuffer        = pflag.Int("relay-buffer", proxy.DefaultRelayBuffer, "Size of each relay read in bytes")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /metrics (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and each TCP connect attempt")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for upstream proxy negotiation")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")

		showVersion = pflag.Bool("version", false, "Print version and exit")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *showVersion {
		fmt.Printf("pathproxy %s\n", version)
		return nil
	}

	if *port <= 0 || *port > 65535 {
		return fmt.Errorf("invalid --port %d: must be 1-65535", *port)
	}
	if *maxConns <= 0 {
		return errors.New("invalid --max-conns: must be > 0")
	}
	if *relayBuffer <= 0 {
		return errors.New("invalid --relay-buffer: must be > 0")
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	cfg := proxy.Config{
		Reader: request.ReaderConfig{
			Timeout:        *readTimeout,
			ControlTimeout: *controlReadTimeout,
			MaxHeaderBytes: *maxHeaderBytes,
			MaxBodyBytes:   *maxBodyBytes,
		},
		MaxConns:     *maxConns,
		RelayBuffer:  *relayBuffer,
		WriteTimeout: *readTimeout,
		Verbose:      *verbose,
	}

	dialCfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
	}

	cfg.Dialer, err = dialer.New(dialCfg, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := proxy.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("invalid --max-conns: %w", err)
	}

	if *debugListen != "" {
		http.Handle("/metrics", promhttp.Handler())
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", *debugListen)
	}

	addr := listenAddress(*bind, *port, *ipv6Only)
	ln, err := proxy.ListenTCP(ctx, "tcp", addr, ka, *ipv6Only)
	if err != nil {
		return err
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("proxy serve: %w", err)
		}
		return nil
	})
	log.Printf("pathproxy %s listening on %s (max %d connections, upstream %s)", version, ln.Addr(), *maxConns, redactUpstream(*upstream))

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Print("shutting down")
	return err
}

// listenAddress builds the proxy listen address. An empty bind listens on
// every address, IPv6 only when ipv6Only is set.
func listenAddress(bind string, port int, ipv6Only bool) string {
	if bind == "" && ipv6Only {
		bind = "::"
	}
	return net.JoinHostPort(strings.Trim(bind, "[]"), strconv.Itoa(port))
}

// redactUpstream hides any password in an upstream URL for logging.
func redactUpstream(s string) string {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return s
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":xxxxx@" + host
	}
	return s
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}
