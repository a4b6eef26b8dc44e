// Package crypto provides the cryptographic primitives used to protect
// provider API keys and user credentials at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// GenerateRandomBytes generates cryptographically secure random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HMACSign generates an HMAC-SHA256 signature.
func HMACSign(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// HMACVerify verifies an HMAC-SHA256 signature.
func HMACVerify(key, data, signature []byte) bool {
	expectedSig := HMACSign(key, data)
	return hmac.Equal(signature, expectedSig)
}

// Encrypt encrypts data using AES-256-GCM. The returned ciphertext has the
// nonce prepended, so no separate nonce storage is needed. This is how
// project_settings.provider_keys entries are stored at rest.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, nil
}

// Decrypt decrypts data produced by Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

// Hash256 computes a SHA-256 hash.
func Hash256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// ZeroBytes overwrites a byte slice with zeroes, used to scrub decrypted key
// material from memory once it has been used.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
