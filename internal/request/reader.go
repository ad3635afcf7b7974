// Package request reads a proxied request off a client connection and
// builds the bytes sent on to the target.
package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrIncompleteRequest means the client did not deliver a complete
	// header block in time or within the size limit.
	ErrIncompleteRequest = errors.New("incomplete request")

	headerTerminator = []byte("\r\n\r\n")
)

const readChunk = 4096

// ReaderConfig bounds how long and how much Read will wait for.
type ReaderConfig struct {
	// Timeout bounds the header phase, and each idle read in the body phase.
	Timeout time.Duration
	// ControlTimeout replaces Timeout for the header phase once the method
	// is recognized as a streaming-control method.
	ControlTimeout time.Duration
	// MaxHeaderBytes caps the header block.
	MaxHeaderBytes int
	// MaxBodyBytes caps how much body is buffered before forwarding.
	MaxBodyBytes int
}

// DefaultReaderConfig returns the limits used when none are configured.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Timeout:        5 * time.Second,
		ControlTimeout: 30 * time.Second,
		MaxHeaderBytes: 64 << 10,
		MaxBodyBytes:   1 << 20,
	}
}

// Request is a request as received from the client. It is not modified
// after Read returns.
type Request struct {
	Method string
	Path   string
	Proto  string
	// Headers holds the header lines in arrival order, without CRLF.
	Headers []string
	// Body holds every byte received after the header terminator.
	Body []byte
	// Raw holds every byte received.
	Raw []byte
	// Control is set for streaming-control methods.
	Control bool
}

// Read reads one request from conn. Any deadline set on conn is cleared
// before returning.
func Read(conn net.Conn, cfg ReaderConfig) (*Request, error) {
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	start := time.Now()
	_ = conn.SetReadDeadline(start.Add(cfg.Timeout))

	var (
		buf       = make([]byte, 0, readChunk)
		headerEnd = -1
		control   bool
		extended  bool
	)
	for headerEnd < 0 {
		if cfg.MaxHeaderBytes > 0 && len(buf) >= cfg.MaxHeaderBytes {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrIncompleteRequest, cfg.MaxHeaderBytes)
		}

		var err error
		scan := max(0, len(buf)-len(headerTerminator)+1)
		buf, err = readMore(conn, buf)
		if i := bytes.Index(buf[scan:], headerTerminator); i >= 0 {
			headerEnd = scan + i + len(headerTerminator)
		}

		if !extended {
			if m, ok := methodToken(buf); ok {
				extended = true
				if IsControlMethod(m) {
					control = true
					_ = conn.SetReadDeadline(start.Add(cfg.ControlTimeout))
				}
			}
		}

		if headerEnd < 0 && err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIncompleteRequest, err)
		}
	}

	req := parseHead(buf[:headerEnd])
	req.Control = control

	if !control {
		want := contentLength(req.Headers)
		if cfg.MaxBodyBytes > 0 {
			want = min(want, cfg.MaxBodyBytes)
		}
		for len(buf)-headerEnd < want {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.Timeout))
			var err error
			buf, err = readMore(conn, buf)
			if err != nil {
				// A short body is forwarded as is.
				break
			}
		}
	}

	req.Raw = buf
	req.Body = buf[headerEnd:]
	return req, nil
}

// readMore appends at most one read's worth of bytes to buf.
func readMore(r io.Reader, buf []byte) ([]byte, error) {
	if cap(buf)-len(buf) < readChunk {
		buf = append(buf, make([]byte, readChunk)...)[:len(buf)]
	}
	n, err := r.Read(buf[len(buf):cap(buf)])
	buf = buf[:len(buf)+n]
	if n == 0 && err == nil {
		err = io.ErrNoProgress
	}
	return buf, err
}

// methodToken returns the first token of buf once it is complete.
func methodToken(buf []byte) (string, bool) {
	i := bytes.IndexAny(buf, " \r\n")
	if i < 0 {
		return "", false
	}
	return string(buf[:i]), true
}

func parseHead(head []byte) *Request {
	lines := strings.Split(string(head[:len(head)-len(headerTerminator)]), "\r\n")

	req := &Request{}
	fields := strings.Fields(lines[0])
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.Path = fields[1]
	}
	if len(fields) > 2 {
		req.Proto = fields[2]
	}
	for _, l := range lines[1:] {
		if l != "" {
			req.Headers = append(req.Headers, l)
		}
	}
	return req
}

// contentLength returns the value of the first Content-Length header, or 0.
func contentLength(headers []string) int {
	v, ok := headerValue(headers, "Content-Length")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// headerValue returns the trimmed value of the first header named name,
// compared case-insensitively.
func headerValue(headers []string, name string) (string, bool) {
	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
