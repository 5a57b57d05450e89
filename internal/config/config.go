// Package config derives psubd's runtime configuration from environment
// variables, the way the rest of this codebase keeps transport and
// storage wiring out of CLI flag parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config lists the tunable parameters for the psubd broker.
type Config struct {
	TCPAddr         string
	UnixPath        string
	WSAddr          string
	TLSCertPath     string
	TLSCertPassword string
	IngressCapacity int
	LogLevel        string
	MDNSEnabled     bool
	AuditDBPath     string
	AdminAddr       string
}

const (
	defaultTCPAddr         = ":6480"
	defaultIngressCapacity = 1024
	defaultLogLevel        = "info"
	defaultMDNSEnabled     = true
	defaultAuditDBPath     = "data/psubd.db"
	defaultAdminAddr       = ":8481"
)

// Load derives configuration values from environment variables, falling
// back to defaults. Unix, WebSocket and TLS transports are opt-in: their
// addr/path fields are empty unless the corresponding env var is set.
func Load() (Config, error) {
	cfg := Config{
		TCPAddr:         defaultTCPAddr,
		IngressCapacity: defaultIngressCapacity,
		LogLevel:        defaultLogLevel,
		MDNSEnabled:     defaultMDNSEnabled,
		AuditDBPath:     defaultAuditDBPath,
		AdminAddr:       defaultAdminAddr,
	}

	if v := os.Getenv("PSUBD_TCP_ADDR"); v != "" {
		cfg.TCPAddr = v
	}

	if v := os.Getenv("PSUBD_UNIX_PATH"); v != "" {
		cfg.UnixPath = v
	}

	if v := os.Getenv("PSUBD_WS_ADDR"); v != "" {
		cfg.WSAddr = v
	}

	if v := os.Getenv("PSUBD_TLS_CERT"); v != "" {
		cfg.TLSCertPath = v
	}

	if v := os.Getenv("PSUBD_TLS_CERT_PASSWORD"); v != "" {
		cfg.TLSCertPassword = v
	}

	if v := os.Getenv("PSUBD_INGRESS_CAPACITY"); v != "" {
		capacity, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PSUBD_INGRESS_CAPACITY: %w", err)
		}
		cfg.IngressCapacity = capacity
	}

	if v := os.Getenv("PSUBD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("PSUBD_MDNS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PSUBD_MDNS: %w", err)
		}
		cfg.MDNSEnabled = enabled
	}

	if v := os.Getenv("PSUBD_AUDIT_DB_PATH"); v != "" {
		cfg.AuditDBPath = v
	}

	if v := os.Getenv("PSUBD_ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}

	return cfg, nil
}
