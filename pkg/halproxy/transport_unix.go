//go:build !windows

package halproxy

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// Listen binds the serving endpoint, replacing a stale socket left by a
// previous run.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

func dialTransport(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
