package tiercache

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"time"
)

var (
	encryptionMagic = []byte("ENC1")

	ErrEncryptionKey = errors.New("tiercache: encryption key must be 16, 24, or 32 bytes")
	ErrDecryptFailed = errors.New("tiercache: decrypt failed")
)

// encryptingBackend seals values with AES-GCM as ENC1 | nonce | ciphertext.
// The entry key is bound as additional data, so a sealed value copied to a
// different key fails to open.
type encryptingBackend struct {
	inner Backend
	aead  cipher.AEAD
}

func newEncryptingBackend(inner Backend, key []byte) (Backend, error) {
	if len(key) == 0 {
		return inner, nil
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrEncryptionKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &encryptingBackend{inner: inner, aead: aead}, nil
}

func (b *encryptingBackend) Driver() Driver { return b.inner.Driver() }

func (b *encryptingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := b.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	plain, err := b.open(key, body)
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

func (b *encryptingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := b.seal(key, value)
	if err != nil {
		return err
	}
	return b.inner.Set(ctx, key, sealed, ttl)
}

func (b *encryptingBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

func (b *encryptingBackend) seal(key string, plain []byte) ([]byte, error) {
	header := len(encryptionMagic) + b.aead.NonceSize()
	out := make([]byte, header, header+len(plain)+b.aead.Overhead())
	copy(out, encryptionMagic)
	nonce := out[len(encryptionMagic):header]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return b.aead.Seal(out, nonce, plain, []byte(key)), nil
}

// open passes through values written before encryption was enabled.
func (b *encryptingBackend) open(key string, in []byte) ([]byte, error) {
	if !bytes.HasPrefix(in, encryptionMagic) {
		return in, nil
	}
	header := len(encryptionMagic) + b.aead.NonceSize()
	if len(in) < header+b.aead.Overhead() {
		return nil, ErrDecryptFailed
	}
	plain, err := b.aead.Open(nil, in[len(encryptionMagic):header], in[header:], []byte(key))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
