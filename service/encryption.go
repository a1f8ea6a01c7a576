package service

import (
	"github.com/zlnvch/wire/apperr"
)

// EnableEncryption makes every message of the thread encrypted under
// passphrase. It must be called before the first save; the thread is
// unlocked for the rest of the session. Only the salt and a marker sealed
// with the derived key are stored, never the passphrase.
func (t *Thread) EnableEncryption(passphrase string) error {
	if t.Key != 0 {
		return apperr.ErrThreadSaved
	}
	if passphrase == "" {
		return apperr.Validation("invalid thread", apperr.ErrPassphraseEmpty)
	}

	salt, err := t.svc.Crypto.NewSalt()
	if err != nil {
		return err
	}
	key := t.svc.Crypto.DeriveKey(passphrase, salt)
	marker, err := t.svc.Crypto.Marker(key)
	if err != nil {
		return err
	}

	t.Encrypted = true
	t.salt = salt
	t.marker = marker
	t.key = key
	return nil
}

func (t *Thread) Unlocked() bool {
	return !t.Encrypted || t.key != nil
}

// Unlock checks passphrase against the stored marker and keeps the derived
// key for this session, so replies can be encrypted.
func (t *Thread) Unlock(passphrase string) error {
	if !t.Encrypted {
		return nil
	}
	key := t.svc.Crypto.DeriveKey(passphrase, t.salt)
	if err := t.svc.Crypto.VerifyMarker(key, t.marker); err != nil {
		return apperr.Wrap(apperr.KindDecryptFailed, apperr.ErrDecryptFailed.Error(), err)
	}
	t.key = key
	return nil
}

// Decrypt replaces every message body with its plaintext. It is all or
// nothing: on any failure neither the bodies nor Decrypted change. Bodies
// are always opened from their stored ciphertext.
func (t *Thread) Decrypt(passphrase string) error {
	if !t.Encrypted {
		t.Decrypted = true
		return nil
	}
	if err := t.Unlock(passphrase); err != nil {
		return err
	}
	if t.Decrypted {
		return nil
	}

	plain := make([]string, len(t.Messages))
	for i, m := range t.Messages {
		if !m.Encrypted {
			plain[i] = m.stored
			continue
		}
		text, err := t.svc.Crypto.Open(t.key, m.stored)
		if err != nil {
			return apperr.Wrap(apperr.KindDecryptFailed, apperr.ErrDecryptFailed.Error(), err)
		}
		plain[i] = text
	}

	for i, m := range t.Messages {
		m.plaintext = plain[i]
		m.Body = plain[i]
	}
	t.Decrypted = true
	return nil
}

func (t *Thread) seal(plaintext string) (string, error) {
	if t.key == nil {
		return "", apperr.ErrThreadLocked
	}
	return t.svc.Crypto.Seal(t.key, plaintext)
}
