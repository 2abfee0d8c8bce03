package net

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
)

// AlternativeNameEncoding is the base32 alphabet of peer names
const AlternativeNameEncoding = "abcdefghijklmnopqrstuvwxyz234567"

// serverTLSConfig requires and verifies a client certificate.
func serverTLSConfig(privateKey ed25519.PrivateKey) (*tls.Config, error) {
	cert, err := generateCertificate(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate certificate")
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		MinVersion:            tls.VersionTLS13,
		NextProtos:            []string{ALPN},
		ClientAuth:            tls.RequireAnyClientCert,
		VerifyPeerCertificate: verifyPeerCertificate,
	}, nil
}

// clientTLSConfig trusts any server whose certificate is bound to its own
// key; callers compare the name against the one they expect.
func clientTLSConfig(privateKey ed25519.PrivateKey) (*tls.Config, error) {
	cert, err := generateCertificate(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate certificate")
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: true,
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return &cert, nil
		},
		VerifyPeerCertificate: verifyPeerCertificate,
	}, nil
}

// generateCertificate creates a self-signed certificate whose only DNS name
// is derived from the public key.
func generateCertificate(privateKey ed25519.PrivateKey) (tls.Certificate, error) {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	altName, err := GenerateAlternativeName(publicKey)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "failed to generate alternative name")
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "failed to generate serial number")
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: altName,
		},
		DNSNames:              []string{altName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, publicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "failed to create certificate")
	}

	return tls.Certificate{
		Certificate: [][]byte{certBytes},
		PrivateKey:  privateKey,
	}, nil
}

// GenerateAlternativeName is "e" followed by the public key, read as a
// little-endian integer, in 52 base32 digits.
func GenerateAlternativeName(pubKey ed25519.PublicKey) (string, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return "", errors.Newf("invalid public key size: %d", len(pubKey))
	}

	n := new(big.Int)
	revBytes := make([]byte, len(pubKey))
	for i, b := range pubKey {
		revBytes[len(pubKey)-1-i] = b
	}
	n.SetBytes(revBytes)

	result := "e"
	thirtytwo := big.NewInt(32)
	mod := new(big.Int)
	for i := 0; i < 52; i++ {
		mod = mod.Mod(n, thirtytwo)
		result += string(AlternativeNameEncoding[mod.Int64()])
		n.Div(n, thirtytwo)
	}
	return result, nil
}

// verifyPeerCertificate checks that the peer's certificate carries an
// Ed25519 key and that its single DNS name is derived from that key.
func verifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("no certificate provided by peer")
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return errors.Wrap(err, "failed to parse peer certificate")
	}

	publicKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return errors.New("peer certificate does not use Ed25519 key")
	}
	if len(cert.DNSNames) != 1 {
		return errors.Newf("peer certificate must have exactly one DNS name, has %d", len(cert.DNSNames))
	}

	expectedName, err := GenerateAlternativeName(publicKey)
	if err != nil {
		return errors.Wrap(err, "failed to generate expected name")
	}
	if cert.DNSNames[0] != expectedName {
		return errors.Newf("peer certificate DNS name does not match expected name: %s vs %s",
			cert.DNSNames[0], expectedName)
	}
	return nil
}

// peerName is the verified name of the remote side of a TLS session.
func peerName(state tls.ConnectionState) string {
	if len(state.PeerCertificates) == 0 || len(state.PeerCertificates[0].DNSNames) == 0 {
		return ""
	}
	return state.PeerCertificates[0].DNSNames[0]
}
