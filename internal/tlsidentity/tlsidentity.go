// Package tlsidentity loads the TLS materials the broker and its client
// need: a server identity bundled as a PKCS#12 file, and a PEM trust
// anchor for clients that dial a TLS listener.
package tlsidentity

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadServerIdentity reads a PKCS#12 file (as produced by `openssl pkcs12
// -export`) and returns a tls.Certificate suitable for tls.Config.Certificates.
// An empty password is tried when none is supplied, matching how the
// original implementation treats a missing cert_password.
func LoadServerIdentity(path, password string) (tls.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsidentity: read %s: %w", path, err)
	}

	key, cert, err := pkcs12.Decode(raw, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsidentity: decode pkcs12 identity: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// ServerTLSConfig builds a *tls.Config for a TLS listener from a PKCS#12
// identity file.
func ServerTLSConfig(certPath, certPassword string) (*tls.Config, error) {
	cert, err := LoadServerIdentity(certPath, certPassword)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// LoadClientTrust reads a PEM-encoded certificate and returns a pool a
// client can use to verify a TLS server's identity.
func LoadClientTrust(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsidentity: read %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("tlsidentity: no certificates found in %s", path)
	}
	return pool, nil
}

// ClientTLSConfig builds a *tls.Config a client uses to dial a TLS
// listener, verifying the server's certificate against the CA in certPath
// and checking the hostname against serverName.
func ClientTLSConfig(certPath, serverName string) (*tls.Config, error) {
	pool, err := LoadClientTrust(certPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}
