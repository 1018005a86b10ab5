// Package secrets loads the material used to authenticate the game server.
package secrets

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrNoCertificates is returned when a trust store file holds no usable
// PEM certificate.
var ErrNoCertificates = errors.New("no certificates found")

// LoadCertPool reads every PEM certificate in the file at path into a new
// pool. Blocks of other types are skipped.
func LoadCertPool(path string) (*x509.CertPool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading trust store")
	}
	return ParseCertPool(b)
}

// ParseCertPool is LoadCertPool on already read file contents.
func ParseCertPool(pemData []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	count := 0
	for {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			glog.V(2).Infof("trust store: skipping %q block", block.Type)
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing certificate %d", count+1)
		}
		pool.AddCert(cert)
		count++
		glog.V(1).Infof("trust store: added %q", cert.Subject.CommonName)
	}
	if count == 0 {
		return nil, ErrNoCertificates
	}
	return pool, nil
}

// ClientTLSConfig returns the configuration used to authenticate the server:
// no client certificate is presented. An empty serverName is filled in with
// the dialed host when connecting.
func ClientTLSConfig(pool *x509.CertPool, serverName string) *tls.Config {
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
}
