//go:build windows

package halproxy

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// NamedPipePath is the well-known endpoint on Windows, where the serving
// daemon listens on a named pipe instead of a unix socket.
const NamedPipePath = `\\.\pipe\fphal-fingerprint`

// Listen binds the serving endpoint.
func Listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}

func dialTransport(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
