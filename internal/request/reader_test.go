package request

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed returns the server side of a pipe whose client writes each chunk in
// turn, pausing between chunks, and closes afterwards if closeAfter is set.
func feed(t *testing.T, pause time.Duration, closeAfter bool, chunks ...string) net.Conn {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	go func() {
		for i, c := range chunks {
			if i > 0 && pause > 0 {
				time.Sleep(pause)
			}
			if _, err := client.Write([]byte(c)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = client.Close()
		}
	}()

	return server
}

func testConfig() ReaderConfig {
	cfg := DefaultReaderConfig()
	cfg.Timeout = 2 * time.Second
	cfg.ControlTimeout = 4 * time.Second
	return cfg
}

func TestReadSimpleGet(t *testing.T) {
	raw := "GET /http://example.com/ HTTP/1.1\r\nHost: proxy\r\nAccept: */*\r\n\r\n"
	conn := feed(t, 0, false, raw)

	req, err := Read(conn, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/http://example.com/", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, []string{"Host: proxy", "Accept: */*"}, req.Headers)
	assert.Empty(t, req.Body)
	assert.Equal(t, raw, string(req.Raw))
	assert.False(t, req.Control)
}

func TestReadBodySplitAcrossWrites(t *testing.T) {
	head := "POST /http://example.com/upload HTTP/1.1\r\ncontent-length: 11\r\n\r\n"
	conn := feed(t, 10*time.Millisecond, false, head[:20], head[20:]+"hello", " world")

	req, err := Read(conn, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(req.Body))
	assert.Equal(t, head+"hello world", string(req.Raw))
}

func TestReadUsesFirstContentLength(t *testing.T) {
	head := "POST /http://example.com/ HTTP/1.1\r\nContent-Length: 3\r\nContent-Length: 50\r\n\r\n"
	conn := feed(t, 0, false, head+"abc")

	req, err := Read(conn, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(req.Body))
}

func TestReadShortBodyTolerated(t *testing.T) {
	head := "POST /http://example.com/ HTTP/1.1\r\nContent-Length: 10\r\n\r\n"
	conn := feed(t, 0, true, head+"abcd")

	req, err := Read(conn, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(req.Body))
}

func TestReadShortBodyIdleTimeout(t *testing.T) {
	head := "POST /http://example.com/ HTTP/1.1\r\nContent-Length: 10\r\n\r\n"
	conn := feed(t, 0, false, head+"ab")

	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond

	req, err := Read(conn, cfg)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(req.Body))
}

func TestReadBodyCap(t *testing.T) {
	head := "POST /http://example.com/ HTTP/1.1\r\nContent-Length: 100000\r\n\r\n"
	conn := feed(t, 0, false, head+strings.Repeat("x", 10), strings.Repeat("y", 10))

	cfg := testConfig()
	cfg.MaxBodyBytes = 10

	req, err := Read(conn, cfg)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10), string(req.Body))
}

func TestReadControlMethodSkipsBody(t *testing.T) {
	raw := "DESCRIBE rtsp://cam/stream RTSP/1.0\r\nCSeq: 2\r\nContent-Length: 500\r\n\r\n"
	conn := feed(t, 0, false, raw)

	start := time.Now()
	req, err := Read(conn, testConfig())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, req.Control)
	assert.Equal(t, "DESCRIBE", req.Method)
	assert.Equal(t, raw, string(req.Raw))
	assert.Empty(t, req.Body)
}

func TestReadControlMethodExtendsDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.ControlTimeout = 3 * time.Second

	conn := feed(t, 300*time.Millisecond, false, "SETUP /rtsp://cam/track1 RTSP/1.0\r\n", "CSeq: 3\r\n\r\n")

	req, err := Read(conn, cfg)
	require.NoError(t, err)
	assert.True(t, req.Control)
	assert.Equal(t, []string{"CSeq: 3"}, req.Headers)
}

func TestReadOrdinaryMethodNotExtended(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.ControlTimeout = 3 * time.Second

	conn := feed(t, 300*time.Millisecond, false, "GET /http://example.com/ HTTP/1.1\r\n", "Accept: */*\r\n\r\n")

	_, err := Read(conn, cfg)
	require.ErrorIs(t, err, ErrIncompleteRequest)
}

func TestReadIncomplete(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		closeAfter bool
	}{
		{name: "closed before terminator", data: "GET / HTTP/1.1\r\nHost: x\r\n", closeAfter: true},
		{name: "closed immediately", closeAfter: true},
		{name: "deadline before terminator", data: "GET / HTTP/1.1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var chunks []string
			if tt.data != "" {
				chunks = append(chunks, tt.data)
			}
			conn := feed(t, 0, tt.closeAfter, chunks...)

			cfg := testConfig()
			cfg.Timeout = 100 * time.Millisecond

			_, err := Read(conn, cfg)
			require.ErrorIs(t, err, ErrIncompleteRequest)
		})
	}
}

func TestReadHeaderLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHeaderBytes = 64

	conn := feed(t, 0, false, "GET /http://example.com/ HTTP/1.1\r\nX-Pad: "+strings.Repeat("a", 8192))

	_, err := Read(conn, cfg)
	require.ErrorIs(t, err, ErrIncompleteRequest)
}

func TestIsControlMethod(t *testing.T) {
	for _, m := range []string{"DESCRIBE", "SETUP", "PLAY", "PAUSE", "TEARDOWN", "OPTIONS", "GET_PARAMETER", "SET_PARAMETER"} {
		assert.True(t, IsControlMethod(m), m)
	}
	for _, m := range []string{"GET", "POST", "describe", "Play", "ANNOUNCE", ""} {
		assert.False(t, IsControlMethod(m), m)
	}
}
