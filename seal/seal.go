// Package seal wraps any parcel format with authenticated encryption.
//
// A sealed document can travel through queues and logs that must not read
// message headers or bodies. The inner content type is bound to every
// ciphertext as additional data, so a document sealed as JSON will not
// open as MessagePack.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zoobzio/parcel"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealing errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher seals and opens byte slices. additionalData is authenticated but
// not encrypted.
type Cipher interface {
	Seal(plaintext, additionalData []byte) ([]byte, error)
	Open(ciphertext, additionalData []byte) ([]byte, error)
}

// aeadCipher prepends a random nonce to each ciphertext.
type aeadCipher struct {
	aead cipher.AEAD
}

// AES returns an AES-GCM cipher.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func AES(key []byte) (Cipher, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{aead: aead}, nil
}

// XChaCha20 returns an XChaCha20-Poly1305 cipher. Key must be 32 bytes.
// Nonces are 24 random bytes.
func XChaCha20(key []byte) (Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{aead: aead}, nil
}

func (c *aeadCipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Open(ciphertext, additionalData []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, body, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// envelopeCipher seals each document with a fresh AES-256 data key and
// seals that key with the master key.
type envelopeCipher struct {
	master *aeadCipher
}

// Envelope returns an envelope cipher using a master key.
// Master key must be 16, 24, or 32 bytes.
func Envelope(masterKey []byte) (Cipher, error) {
	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	return &envelopeCipher{master: &aeadCipher{aead: aead}}, nil
}

// Seal writes [2-byte sealed key length][sealed key][sealed data].
func (c *envelopeCipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	dataKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return nil, err
	}
	data, err := AES(dataKey)
	if err != nil {
		return nil, err
	}

	sealedData, err := data.Seal(plaintext, additionalData)
	if err != nil {
		return nil, err
	}
	sealedKey, err := c.master.Seal(dataKey, additionalData)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 2, 2+len(sealedKey)+len(sealedData))
	binary.BigEndian.PutUint16(out, uint16(len(sealedKey))) // #nosec G115 -- nonce+key+tag is 60 bytes
	out = append(out, sealedKey...)
	return append(out, sealedData...), nil
}

func (c *envelopeCipher) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < 2 {
		return nil, ErrCiphertextShort
	}
	keyLen := int(binary.BigEndian.Uint16(ciphertext))
	if len(ciphertext) < 2+keyLen {
		return nil, ErrCiphertextShort
	}

	dataKey, err := c.master.Open(ciphertext[2:2+keyLen], additionalData)
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	data, err := AES(dataKey)
	if err != nil {
		return nil, err
	}
	return data.Open(ciphertext[2+keyLen:], additionalData)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealFormat encrypts the output of an inner format.
type sealFormat struct {
	inner  parcel.Format
	cipher Cipher
}

// Wrap returns a format that seals inner's output with c. A nil inner
// means parcel.JSON().
func Wrap(inner parcel.Format, c Cipher) (parcel.Format, error) {
	if c == nil {
		return nil, errors.New("seal: nil cipher")
	}
	if inner == nil {
		inner = parcel.JSON()
	}
	return &sealFormat{inner: inner, cipher: c}, nil
}

// ContentType returns the inner MIME type with a +sealed suffix.
func (f *sealFormat) ContentType() string {
	return f.inner.ContentType() + "+sealed"
}

// Marshal encodes doc with the inner format and seals the result.
func (f *sealFormat) Marshal(doc any) ([]byte, error) {
	data, err := f.inner.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return f.cipher.Seal(data, []byte(f.inner.ContentType()))
}

// Unmarshal opens data and decodes it with the inner format.
func (f *sealFormat) Unmarshal(data []byte) (any, error) {
	plain, err := f.cipher.Open(data, []byte(f.inner.ContentType()))
	if err != nil {
		return nil, err
	}
	return f.inner.Unmarshal(plain)
}
