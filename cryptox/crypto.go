// Package cryptox implements passphrase-based encryption of message bodies
// and password hashing.
//
// A message ciphertext is the standard base64 encoding of nonce || sealed,
// where sealed is the AES-256-GCM output under a key derived with argon2id
// from the thread passphrase and the thread's salt. The GCM tag doubles as
// the integrity marker: a wrong passphrase or a tampered ciphertext fails
// to open and is reported as ErrDecryptFailed.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32

	markerPlaintext = "wire:thread-key"
)

var ErrDecryptFailed = errors.New("decryption failed")

// Provider is the contract the thread layer depends on.
type Provider interface {
	Encrypt(plaintext, passphrase string) (string, error)
	Decrypt(ciphertext, passphrase string) (string, error)

	NewSalt() ([]byte, error)
	DeriveKey(passphrase string, salt []byte) []byte
	Seal(key []byte, plaintext string) (string, error)
	Open(key []byte, ciphertext string) (string, error)
	Marker(key []byte) (string, error)
	VerifyMarker(key []byte, marker string) error
}

// AESProvider is the default Provider: argon2id key derivation and AES-GCM.
type AESProvider struct {
	time    uint32
	memory  uint32
	threads uint8
}

func NewAESProvider() *AESProvider {
	return &AESProvider{time: 1, memory: 64 * 1024, threads: 4}
}

func (p *AESProvider) NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (p *AESProvider) DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.time, p.memory, p.threads, KeySize)
}

// Encrypt is the self-contained form: the salt is prepended to the output,
// so the passphrase alone is enough to decrypt.
func (p *AESProvider) Encrypt(plaintext, passphrase string) (string, error) {
	salt, err := p.NewSalt()
	if err != nil {
		return "", err
	}
	sealed, err := seal(p.DeriveKey(passphrase, salt), []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(salt, sealed...)), nil
}

func (p *AESProvider) Decrypt(ciphertext, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < SaltSize {
		return "", ErrDecryptFailed
	}
	plain, err := open(p.DeriveKey(passphrase, raw[:SaltSize]), raw[SaltSize:])
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (p *AESProvider) Seal(key []byte, plaintext string) (string, error) {
	sealed, err := seal(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *AESProvider) Open(key []byte, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}
	plain, err := open(key, raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Marker seals a fixed plaintext; storing it lets a passphrase be checked
// before any message is encrypted with it.
func (p *AESProvider) Marker(key []byte) (string, error) {
	return p.Seal(key, markerPlaintext)
}

func (p *AESProvider) VerifyMarker(key []byte, marker string) error {
	plain, err := p.Open(key, marker)
	if err != nil {
		return err
	}
	if plain != markerPlaintext {
		return ErrDecryptFailed
	}
	return nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, raw []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(raw) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrDecryptFailed
	}

	nonce, sealed := raw[:aesgcm.NonceSize()], raw[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
