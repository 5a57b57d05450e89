package tlsidentity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerIdentityMissingFile(t *testing.T) {
	_, err := LoadServerIdentity("/nonexistent/identity.pfx", "password")
	require.Error(t, err)
}

func TestLoadClientTrustMissingFile(t *testing.T) {
	_, err := LoadClientTrust("/nonexistent/cert.pem")
	require.Error(t, err)
}

func TestLoadClientTrustRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadClientTrust(path)
	require.Error(t, err)
}

func TestClientTLSConfigPropagatesLoadError(t *testing.T) {
	_, err := ClientTLSConfig("/nonexistent/cert.pem", "localhost")
	require.Error(t, err)
}
