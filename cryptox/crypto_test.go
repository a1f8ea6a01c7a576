package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	p := NewAESProvider()

	for _, body := range []string{"hi", "multi\nline body", "ünïcödé ✓"} {
		ct, err := p.Encrypt(body, "correct horse")
		require.NoError(t, err)
		assert.NotEqual(t, body, ct)

		plain, err := p.Decrypt(ct, "correct horse")
		require.NoError(t, err)
		assert.Equal(t, body, plain)
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	p := NewAESProvider()

	ct, err := p.Encrypt("secret body", "pass1")
	require.NoError(t, err)

	_, err = p.Decrypt(ct, "pass2")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecrypt_Malformed(t *testing.T) {
	p := NewAESProvider()

	_, err := p.Decrypt("!!!not base64!!!", "pass")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = p.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), "pass")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	key := p.DeriveKey("pass", make([]byte, SaltSize))
	_, err = p.Open(key, base64.StdEncoding.EncodeToString(make([]byte, 20)))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestSealOpen_Tampered(t *testing.T) {
	p := NewAESProvider()
	salt, err := p.NewSalt()
	require.NoError(t, err)
	key := p.DeriveKey("pass", salt)

	ct, err := p.Seal(key, "body")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0x01
	_, err = p.Open(key, base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestMarker(t *testing.T) {
	p := NewAESProvider()
	salt, err := p.NewSalt()
	require.NoError(t, err)

	marker, err := p.Marker(p.DeriveKey("right", salt))
	require.NoError(t, err)

	assert.NoError(t, p.VerifyMarker(p.DeriveKey("right", salt), marker))
	assert.ErrorIs(t, p.VerifyMarker(p.DeriveKey("wrong", salt), marker), ErrDecryptFailed)
}

func TestDeriveKey_SaltMatters(t *testing.T) {
	p := NewAESProvider()
	k1 := p.DeriveKey("pass", []byte("salt-number-0001"))
	k2 := p.DeriveKey("pass", []byte("salt-number-0002"))

	assert.Len(t, k1, KeySize)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, p.DeriveKey("pass", []byte("salt-number-0001")))
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, h.Compare(hash, "secret1"))
	assert.False(t, h.Compare(hash, "secret2"))
	assert.False(t, h.Compare("not-a-hash", "secret1"))
}
