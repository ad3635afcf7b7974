package proxy

import (
	"time"

	"github.com/die-net/pathproxy/internal/dialer"
	"github.com/die-net/pathproxy/internal/request"
)

// DefaultRelayBuffer is the relay chunk size used when none is configured.
const DefaultRelayBuffer = 8192

type Config struct {
	Reader request.ReaderConfig

	// MaxConns caps the number of pipelines served at once.
	MaxConns int64

	// RelayBuffer is the size of each relay read.
	RelayBuffer int

	// WriteTimeout bounds writing a diagnostic response. Zero means no
	// deadline.
	WriteTimeout time.Duration

	Dialer dialer.Dialer

	Verbose bool
}
