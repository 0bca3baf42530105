package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	certFile = "server-cert.pem"
	keyFile  = "server-key.pem"
)

// CertManager provides the certificate for the relay's HTTPS listener. An
// operator-supplied pair in certDir is used as is; otherwise a self-signed
// certificate for localhost is generated and written there.
type CertManager struct {
	certDir string
	cert    tls.Certificate
	leaf    *x509.Certificate
}

// NewCertManager loads or generates the server certificate in certDir.
func NewCertManager(certDir string) (*CertManager, error) {
	if err := os.MkdirAll(certDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create cert directory")
	}

	cm := &CertManager{certDir: certDir}
	certPath := filepath.Join(certDir, certFile)
	keyPath := filepath.Join(certDir, keyFile)

	if fileExists(certPath) && fileExists(keyPath) {
		if err := cm.load(certPath, keyPath); err != nil {
			return nil, errors.Wrap(err, "failed to load server cert")
		}
		return cm, nil
	}

	if err := cm.generate(certPath, keyPath); err != nil {
		return nil, errors.Wrap(err, "failed to generate server cert")
	}
	return cm, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (cm *CertManager) load(certPath, keyPath string) error {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return err
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return err
	}
	cm.cert = cert
	cm.leaf = leaf
	return nil
}

func (cm *CertManager) generate(certPath, keyPath string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"nerdrelay"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		IsCA:                  true, // self-signed, so it must be able to verify itself
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}

	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return err
	}
	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return err
	}
	return cm.load(certPath, keyPath)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	return os.WriteFile(path, data, perm)
}

// ServerTLSConfig returns the listener config. Browsers connect without
// client certificates.
func (cm *CertManager) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cm.cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// CertPool trusts the served certificate; useful for clients of a
// self-signed deployment.
func (cm *CertManager) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(cm.leaf)
	return pool
}
