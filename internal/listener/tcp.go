package listener

import (
	"fmt"
	"net"
)

// ListenTCP binds a plain TCP listener at addr.
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: tcp listen %s: %w", addr, err)
	}
	return ln, nil
}
