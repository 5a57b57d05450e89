package listener

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// ListenUnix binds a Unix-domain socket listener at path, removing any
// stale socket file left behind by a previous, uncleanly-terminated run.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("listener: remove stale socket %s: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listener: unix listen %s: %w", path, err)
	}
	return &unixListener{Listener: ln, path: path}, nil
}

// unixListener removes its socket file from the filesystem on Close, so a
// clean shutdown never leaves a stale path behind.
type unixListener struct {
	net.Listener
	path string
}

func (l *unixListener) Close() error {
	err := l.Listener.Close()
	if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		if err == nil {
			err = rerr
		}
	}
	return err
}
