// Package keys manages the ed25519 key pair that names the local caller.
//
// A caller's identity is the last 20 bytes of the Keccak-256 hash of its
// raw ed25519 public key.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/roach88/chitchat/internal/ir"
)

const (
	privatePEMType = "ED25519 PRIVATE KEY"
	publicPEMType  = "ED25519 PUBLIC KEY"
)

// ErrKeyExists is returned by Generate when a private key is already on disk.
var ErrKeyExists = errors.New("keys: private key already exists")

// Ensure loads a key pair from disk, generating it on first run.
// A missing or stale public key file is rewritten from the private key.
func Ensure(privatePath, publicPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	priv, err := LoadPrivateKey(privatePath)
	if err == nil {
		pub := priv.Public().(ed25519.PublicKey)

		stored, pubErr := LoadPublicKey(publicPath)
		if pubErr != nil || !bytes.Equal(stored, pub) {
			if err := SavePublicKey(publicPath, pub); err != nil {
				return nil, nil, err
			}
		}
		return priv, pub, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	return Generate(privatePath, publicPath)
}

// Generate creates a fresh key pair and writes both files.
// Fails with ErrKeyExists rather than overwrite a private key.
func Generate(privatePath, publicPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if _, err := os.Stat(privatePath); err == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrKeyExists, privatePath)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}

	if err := SavePrivateKey(privatePath, priv); err != nil {
		return nil, nil, err
	}
	if err := SavePublicKey(publicPath, pub); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// LoadPrivateKey loads an ed25519 private key from a PEM file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	block, err := readPEM(path, privatePEMType, ed25519.PrivateKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(block), nil
}

// LoadPublicKey loads an ed25519 public key from a PEM file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	block, err := readPEM(path, publicPEMType, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(block), nil
}

// SavePrivateKey writes a private key PEM file with 0600 permissions.
func SavePrivateKey(path string, key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("save ed25519 private key: invalid key size %d", len(key))
	}
	return writePEM(path, privatePEMType, key, 0o600)
}

// SavePublicKey writes a public key PEM file.
func SavePublicKey(path string, key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("save ed25519 public key: invalid key size %d", len(key))
	}
	return writePEM(path, publicPEMType, key, 0o644)
}

// Address derives the identity named by pub.
func Address(pub ed25519.PublicKey) ir.Identity {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)

	var id ir.Identity
	copy(id[:], sum[len(sum)-ir.IdentityLength:])
	return id
}

// Fingerprint returns the truncated SHA-256 of pub grouped in blocks of
// four uppercase hex digits, for reading aloud.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	clean := strings.ToUpper(hex.EncodeToString(sum[:16]))

	var b strings.Builder
	for i := 0; i < len(clean); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(clean[i : i+4])
	}
	return b.String()
}

func readPEM(path, wantType string, wantSize int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", strings.ToLower(wantType), err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode %s: no PEM block", path)
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("decode %s: unexpected type %q", path, block.Type)
	}
	if len(block.Bytes) != wantSize {
		return nil, fmt.Errorf("decode %s: invalid key size %d", path, len(block.Bytes))
	}
	return block.Bytes, nil
}

func writePEM(path, typ string, der []byte, perm os.FileMode) error {
	block := &pem.Block{Type: typ, Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), perm); err != nil {
		return fmt.Errorf("write %s: %w", strings.ToLower(typ), err)
	}
	return nil
}
