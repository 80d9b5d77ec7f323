package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32 // AES-256

// loadOrCreateKey reads the per-installation key file at path, creating
// it with mode 0600 on first daemon start if absent.
func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %s has %d bytes, want %d", path, len(data), keySize)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("write key file %s: %w", path, err)
	}
	return key, nil
}

// deriveCipherKey runs the raw on-disk key through HKDF-SHA256 to obtain
// the key actually used for AES-GCM, so the bytes written to disk are
// never used directly as AES key material.
func deriveCipherKey(raw []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, raw, nil, []byte("visage-model-store-v1"))
	derived := make([]byte, keySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("derive cipher key: %w", err)
	}
	return derived, nil
}

// newAEAD builds the AES-256-GCM AEAD from the derived key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// encryptEmbedding seals the 2048-byte raw embedding with a random
// per-record nonce, returning nonce||ciphertext.
func encryptEmbedding(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// rawEmbeddingSize is the byte length of an unencrypted 512x float32
// embedding (512 * 4). Records of exactly this length are treated as
// legacy plaintext for backward compatibility.
const rawEmbeddingSize = 512 * 4

// decodeEmbeddingBytes returns the plaintext 2048-byte embedding for a
// stored blob, transparently accepting legacy plaintext records.
func decodeEmbeddingBytes(aead cipher.AEAD, blob []byte) ([]byte, error) {
	if len(blob) == rawEmbeddingSize {
		return blob, nil
	}

	nonceSize := aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("stored embedding too short: %d bytes", len(blob))
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt stored embedding: %w", err)
	}
	if len(plaintext) != rawEmbeddingSize {
		return nil, fmt.Errorf("decrypted embedding has %d bytes, want %d", len(plaintext), rawEmbeddingSize)
	}
	return plaintext, nil
}
