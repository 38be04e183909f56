package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func paths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "ed25519_private.pem"), filepath.Join(dir, "ed25519_public.pem")
}

func TestEnsureGeneratesThenReloads(t *testing.T) {
	privPath, pubPath := paths(t)

	priv1, pub1, err := Ensure(privPath, pubPath)
	if err != nil {
		t.Fatalf("first Ensure failed: %v", err)
	}

	info, err := os.Stat(privPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("private key permissions = %o, want 600", perm)
	}

	priv2, pub2, err := Ensure(privPath, pubPath)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if !priv1.Equal(priv2) || !pub1.Equal(pub2) {
		t.Fatal("Ensure generated a new key pair on reload")
	}
}

func TestEnsureRepairsPublicKey(t *testing.T) {
	privPath, pubPath := paths(t)

	_, pub, err := Ensure(privPath, pubPath)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := os.Remove(pubPath); err != nil {
		t.Fatalf("remove public key: %v", err)
	}

	if _, _, err := Ensure(privPath, pubPath); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	restored, err := LoadPublicKey(pubPath)
	if err != nil {
		t.Fatalf("LoadPublicKey failed: %v", err)
	}
	if !restored.Equal(pub) {
		t.Fatal("restored public key does not match private key")
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	privPath, pubPath := paths(t)

	if _, _, err := Generate(privPath, pubPath); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, _, err := Generate(privPath, pubPath); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("second Generate error = %v, want ErrKeyExists", err)
	}
}

func TestLoadRejectsWrongType(t *testing.T) {
	privPath, pubPath := paths(t)
	if _, _, err := Generate(privPath, pubPath); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := LoadPrivateKey(pubPath); err == nil {
		t.Fatal("expected public key file to be rejected as private key")
	}
	if _, err := LoadPublicKey(privPath); err == nil {
		t.Fatal("expected private key file to be rejected as public key")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not pem"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := LoadPrivateKey(garbage); err == nil || !strings.Contains(err.Error(), "no PEM block") {
		t.Fatalf("expected no PEM block error, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		seed string
		pub  string
		addr string
	}{
		{
			seed: "0000000000000000000000000000000000000000000000000000000000000000",
			pub:  "3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29",
			addr: "0x431540d1f4faecdc7f7259797f629530995e7c6c",
		},
		{
			seed: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			pub:  "03a107bff3ce10be1d70dd18e74bc09967e4d6309ba50d5f1ddc8664125531b8",
			addr: "0x6c87813fdfc7b0f59e46c29459bc6fea12923ba7",
		},
	}

	for _, tt := range tests {
		seed, _ := hex.DecodeString(tt.seed)
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)

		if got := hex.EncodeToString(pub); got != tt.pub {
			t.Fatalf("public key = %s, want %s", got, tt.pub)
		}
		if got := Address(pub).String(); got != tt.addr {
			t.Errorf("Address() = %s, want %s", got, tt.addr)
		}
	}
}

func TestFingerprint(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	fp := Fingerprint(pub)
	groups := strings.Split(fp, " ")
	if len(groups) != 8 {
		t.Fatalf("Fingerprint() = %q, want 8 groups", fp)
	}
	for _, g := range groups {
		if len(g) != 4 || strings.ToUpper(g) != g {
			t.Fatalf("Fingerprint() group %q malformed", g)
		}
	}
}
