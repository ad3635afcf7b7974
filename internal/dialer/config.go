package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds each outbound connect attempt.
	DialTimeout time.Duration
	// NegotiationTimeout bounds handshakes with an upstream proxy.
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig

	// Resolver resolves target hosts for direct dialing. Nil means
	// net.DefaultResolver.
	Resolver *net.Resolver
}
