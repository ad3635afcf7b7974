package request

import (
	"bytes"
	"strings"

	"github.com/die-net/pathproxy/internal/target"
)

// Mode records how Rewrite produced its output.
type Mode int

const (
	// ModePassthrough forwards a streaming-control request verbatim.
	ModePassthrough Mode = iota + 1
	// ModeRewritten forwards a reconstructed request.
	ModeRewritten
	// ModeRawFallback forwards the original bytes because the request
	// could not be reconstructed.
	ModeRawFallback
)

func (m Mode) String() string {
	switch m {
	case ModePassthrough:
		return "passthrough"
	case ModeRewritten:
		return "rewritten"
	case ModeRawFallback:
		return "raw-fallback"
	default:
		return "unknown"
	}
}

// Outbound is the byte sequence to send to the target.
type Outbound struct {
	Bytes []byte
	Mode  Mode
}

const (
	rewriteProto = "HTTP/1.1"

	// proxyHeaderPrefix marks hop-by-hop headers meant for the proxy.
	proxyHeaderPrefix = "Proxy-"
)

// Rewrite builds the outbound request for t.
//
// Streaming-control requests pass through unchanged. Other requests get a
// new request line with t.Path, lose their Host and Proxy-* headers, and
// gain a Host header for t and "Connection: close".
func Rewrite(req *Request, t target.Target) Outbound {
	if req.Control {
		return Outbound{Bytes: req.Raw, Mode: ModePassthrough}
	}
	if req.Method == "" || req.Path == "" {
		return Outbound{Bytes: req.Raw, Mode: ModeRawFallback}
	}

	var b bytes.Buffer
	b.Grow(len(req.Raw) + 64)

	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(t.Path)
	b.WriteByte(' ')
	b.WriteString(rewriteProto)
	b.WriteString("\r\n")

	for _, h := range req.Headers {
		if hasPrefixFold(h, "Host:") || hasPrefixFold(h, proxyHeaderPrefix) {
			continue
		}
		b.WriteString(h)
		b.WriteString("\r\n")
	}

	b.WriteString("Host: ")
	b.WriteString(t.HostHeader())
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	b.Write(req.Body)

	return Outbound{Bytes: b.Bytes(), Mode: ModeRewritten}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
