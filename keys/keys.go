// Package keys loads signing credentials: certificates and RSA private
// keys from PEM, DER and PKCS #12 files.
package keys

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// Common errors
var (
	ErrNoCertFound      = errors.New("no certificate found in data")
	ErrNoKeyFound       = errors.New("no private key found in data")
	ErrUnknownKeyType   = errors.New("unknown private key type")
	ErrInvalidPEMBlock  = errors.New("invalid PEM block")
	ErrDecryptionFailed = errors.New("failed to decrypt private key")
	ErrKeyMismatch      = errors.New("private key does not match certificate")
	ErrUnsupportedKey   = errors.New("signing requires an RSA key")
)

// Credential is a signing certificate with its private key and chain.
type Credential struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	Chain       []*x509.Certificate
}

// Validate checks that the key is RSA and belongs to the certificate.
func (c *Credential) Validate() error {
	if c.Certificate == nil {
		return ErrNoCertFound
	}
	if c.PrivateKey == nil {
		return ErrNoKeyFound
	}
	pub, ok := c.PrivateKey.Public().(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedKey, c.PrivateKey)
	}
	certPub, ok := c.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(certPub) {
		return ErrKeyMismatch
	}
	return nil
}

// LoadPKCS12 reads a PKCS #12 file.
func LoadPKCS12(filename, password string) (*Credential, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return LoadPKCS12Data(data, password)
}

// LoadPKCS12Data decodes a PKCS #12 archive holding a key, its
// certificate and optional CA certificates.
func LoadPKCS12Data(data []byte, password string) (*Credential, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		return nil, fmt.Errorf("failed to decode PKCS#12: %w", err)
	}
	signer, err := toPrivateKey(key)
	if err != nil {
		return nil, err
	}
	cred := &Credential{Certificate: cert, PrivateKey: signer, Chain: caCerts}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// LoadPEMDER reads a certificate file, which may carry the chain after the
// signer certificate, and a key file.
func LoadPEMDER(certFile, keyFile string, passphrase []byte) (*Credential, error) {
	certData, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", certFile, err)
	}
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", keyFile, err)
	}

	certs, err := LoadCertsFromPemDerData(certData)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	key, err := LoadPrivateKeyFromPemDerData(keyData, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	cred := &Credential{Certificate: certs[0], PrivateKey: key, Chain: certs[1:]}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// LoadCertsFromPemDerData loads certificates from PEM or DER encoded data.
func LoadCertsFromPemDerData(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	if isPEM(data) {
		for rest := data; len(rest) > 0; {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
	} else {
		parsed, err := x509.ParseCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DER certificate: %w", err)
		}
		certs = parsed
	}

	if len(certs) == 0 {
		return nil, ErrNoCertFound
	}
	return certs, nil
}

// LoadPrivateKeyFromPemDerData loads a private key from PEM or DER data.
// Legacy encrypted PEM blocks are decrypted with passphrase.
func LoadPrivateKeyFromPemDerData(data []byte, passphrase []byte) (crypto.Signer, error) {
	if !isPEM(data) {
		return loadPrivateKeyFromDER(data)
	}

	for rest := data; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			continue
		}

		keyBytes := block.Bytes
		if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
			if passphrase == nil {
				return nil, fmt.Errorf("%w: key is encrypted but no passphrase provided", ErrDecryptionFailed)
			}
			var err error
			keyBytes, err = x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
			}
		}
		return parsePrivateKeyByType(block.Type, keyBytes)
	}
	return nil, ErrInvalidPEMBlock
}

func loadPrivateKeyFromDER(data []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		return toPrivateKey(key)
	}
	if key, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(data); err == nil {
		return key, nil
	}
	return nil, ErrNoKeyFound
}

func parsePrivateKeyByType(blockType string, keyBytes []byte) (crypto.Signer, error) {
	switch blockType {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(keyBytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(keyBytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		return toPrivateKey(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyType, blockType)
	}
}

func toPrivateKey(key any) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKeyType, key)
	}
}

func isPEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("-----BEGIN"))
}
