package security

import (
	"bytes"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *SecretsManager {
	t.Helper()
	sm, err := NewSecretsManager(DeriveKey("test-installation-secret"))
	if err != nil {
		t.Fatalf("NewSecretsManager() error = %v", err)
	}
	return sm
}

func TestNewSecretsManager(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{name: "derived key", key: DeriveKey("secret"), wantErr: false},
		{name: "short key", key: make([]byte, 16), wantErr: true},
		{name: "empty key", key: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSecretsManager(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	sm := newTestManager(t)
	plaintext := []byte(`{"user":"swift","password":"s3cr3t"}`)

	ciphertext, err := sm.EncryptSecret(plaintext)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should not equal plaintext")
	}

	decrypted, err := sm.DecryptSecret(ciphertext)
	if err != nil {
		t.Fatalf("DecryptSecret() error = %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("DecryptSecret() = %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	sm := newTestManager(t)
	other, _ := NewSecretsManager(DeriveKey("another-secret"))

	ciphertext, err := sm.EncryptSecret([]byte("data"))
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	if _, err := other.DecryptSecret(ciphertext); err == nil {
		t.Error("DecryptSecret() with wrong key should fail")
	}
}

func TestSealString(t *testing.T) {
	sm := newTestManager(t)

	tests := []struct {
		name       string
		input      string
		wantSealed bool
	}{
		{name: "password", input: "hunter2", wantSealed: true},
		{name: "empty stays empty", input: "", wantSealed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := sm.SealString(tt.input)
			if err != nil {
				t.Fatalf("SealString() error = %v", err)
			}
			if IsSealed(sealed) != tt.wantSealed {
				t.Errorf("IsSealed(%q) = %v, want %v", sealed, IsSealed(sealed), tt.wantSealed)
			}

			again, err := sm.SealString(sealed)
			if err != nil {
				t.Fatalf("SealString() twice error = %v", err)
			}
			if again != sealed {
				t.Error("sealing a sealed value should be a no-op")
			}

			opened, err := sm.OpenString(sealed)
			if err != nil {
				t.Fatalf("OpenString() error = %v", err)
			}
			if opened != tt.input {
				t.Errorf("OpenString() = %q, want %q", opened, tt.input)
			}
		})
	}
}

func TestSealCredentials(t *testing.T) {
	sm := newTestManager(t)
	creds := map[string]string{"user": "admin", "password": "secret"}

	sealed, err := sm.SealCredentials(creds)
	if err != nil {
		t.Fatalf("SealCredentials() error = %v", err)
	}
	if creds["password"] != "secret" {
		t.Error("SealCredentials() must not modify its input")
	}
	for k, v := range sealed {
		if !strings.HasPrefix(v, sealedPrefix) {
			t.Errorf("credential %s not sealed: %q", k, v)
		}
	}

	opened, err := sm.OpenCredentials(sealed)
	if err != nil {
		t.Fatalf("OpenCredentials() error = %v", err)
	}
	if opened["user"] != "admin" || opened["password"] != "secret" {
		t.Errorf("OpenCredentials() = %v", opened)
	}
}

func TestGenerateKeyPair(t *testing.T) {
	private, public, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if !strings.HasPrefix(public, "ssh-rsa ") {
		t.Errorf("public key has unexpected format: %q", public)
	}

	signer, err := ParsePrivateKey(private)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if !strings.HasPrefix(public, signer.PublicKey().Type()) {
		t.Errorf("public key type mismatch: %s", signer.PublicKey().Type())
	}
}
