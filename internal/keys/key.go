package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var keySize = 32 // 32 bytes for AES-256

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Key []byte

func NewKey() (*Key, error) {
	bytes := make([]byte, keySize)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	key := Key(bytes)
	return &key, nil
}

// ParseKey accepts a raw AES key or the base64 form printed by Key.String.
func ParseKey(bytes []byte) (*Key, error) {
	if decoded, err := base64.URLEncoding.DecodeString(string(bytes)); err == nil && len(decoded) == keySize {
		key := Key(decoded)
		return &key, nil
	}
	switch len(bytes) {
	case 16, 24, 32:
		key := Key(bytes)
		return &key, nil
	default:
		return nil, fmt.Errorf("invalid key size: got %d, need 16, 24 or 32", len(bytes))
	}
}

func (k Key) String() string {
	return base64.URLEncoding.EncodeToString(k)
}

func (k Key) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals data with AES-GCM. The nonce is prepended to the result.
func (k Key) Encrypt(data []byte) ([]byte, error) {
	aead, err := k.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func (k Key) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := k.aead()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
