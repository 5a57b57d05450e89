package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultTCPAddr, cfg.TCPAddr)
	assert.Equal(t, "", cfg.UnixPath)
	assert.Equal(t, defaultIngressCapacity, cfg.IngressCapacity)
	assert.True(t, cfg.MDNSEnabled)
	assert.Equal(t, defaultAuditDBPath, cfg.AuditDBPath)
	assert.Equal(t, defaultAdminAddr, cfg.AdminAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PSUBD_TCP_ADDR", "127.0.0.1:9000")
	t.Setenv("PSUBD_UNIX_PATH", "/tmp/psubd.sock")
	t.Setenv("PSUBD_INGRESS_CAPACITY", "256")
	t.Setenv("PSUBD_MDNS", "false")
	t.Setenv("PSUBD_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.TCPAddr)
	assert.Equal(t, "/tmp/psubd.sock", cfg.UnixPath)
	assert.Equal(t, 256, cfg.IngressCapacity)
	assert.False(t, cfg.MDNSEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalidIngressCapacity(t *testing.T) {
	t.Setenv("PSUBD_INGRESS_CAPACITY", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadInvalidMDNSFlag(t *testing.T) {
	t.Setenv("PSUBD_MDNS", "maybe")
	_, err := Load()
	require.Error(t, err)
}
