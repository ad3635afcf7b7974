// Package proxy implements the pathproxy listener side.
//
// A Server accepts client connections, reads one request from each, and
// connects to the target named in the request path. The rewritten request
// is sent on and the two connections are then relayed until either side
// closes. The package also holds the keepalive listener used by the
// command.
package proxy
