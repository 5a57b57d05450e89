package listener

import (
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_psubd._tcp"
	mdnsDomain      = "local."
)

// Advertiser owns the lifecycle of the broker's mDNS advertisement.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the broker's TCP/TLS endpoint on the local network
// so other hosts can discover it without a hardcoded address.
func Advertise(port int, tlsEnabled bool) (*Advertiser, error) {
	if port <= 0 {
		return nil, fmt.Errorf("listener: invalid mdns port %d", port)
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "psubd"
	}

	instance := sanitizeInstance(fmt.Sprintf("psubd broker (%s)", hostname))

	txt := []string{
		fmt.Sprintf("tcp_port=%d", port),
		fmt.Sprintf("tls=%d", boolToInt(tlsEnabled)),
		"proto=v1",
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("listener: mdns register: %w", err)
	}

	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sanitizeInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if cleaned == "" {
		cleaned = "psubd broker"
	}
	runes := []rune(cleaned)
	const maxLen = 63
	if len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}
