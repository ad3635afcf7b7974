package proxy

import (
	"net"
	"time"
)

const (
	// BodyInvalidFormat is sent when the request path does not encode a
	// usable target.
	BodyInvalidFormat = "Invalid proxy URL format. Use: /http://target_host:port/path, /https://target_host:port/path, or /rtsp://[ipv6]:port/path"
	// BodyInvalidHostname is sent when the encoded target has no host.
	BodyInvalidHostname = "Invalid hostname"
	// BodyBadGateway is sent when the target cannot be reached.
	BodyBadGateway = "Cannot connect to target server"
)

var (
	responseInvalidFormat   = plainResponse("400 Bad Request", BodyInvalidFormat)
	responseInvalidHostname = plainResponse("400 Bad Request", BodyInvalidHostname)
	responseBadGateway      = plainResponse("502 Bad Gateway", BodyBadGateway)
)

func plainResponse(status, body string) []byte {
	return []byte("HTTP/1.1 " + status + "\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n" + body)
}

// writeResponse writes a complete diagnostic response to conn.
func writeResponse(conn net.Conn, resp []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}
	_, err := conn.Write(resp)
	return err
}
