package listener

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/girish946/psubd/internal/tlsidentity"
)

// ListenTLS binds a TLS-wrapped TCP listener at addr, loading the
// server's identity from a PKCS#12 file per spec.md §6.
func ListenTLS(addr, certPath, certPassword string) (net.Listener, error) {
	cfg, err := tlsidentity.ServerTLSConfig(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("listener: tls identity: %w", err)
	}

	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("listener: tls listen %s: %w", addr, err)
	}
	return ln, nil
}
