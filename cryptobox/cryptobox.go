// Package cryptobox implements the password-derived AEAD envelope protecting a
// recovery secret at rest. A fresh 16-byte salt and 12-byte nonce are drawn
// per encryption; the key is derived with PBKDF2-SHA256 at 310,000 iterations
// and the plaintext sealed with AES-256-GCM.
//
// All parameters except the passphrase travel inside the envelope, so future
// format upgrades stay self-describing and old envelopes stay decryptable.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

const (
	kdfName    = "PBKDF2"
	kdfHash    = "SHA-256"
	cipherName = "AES-GCM"

	// Iterations is the PBKDF2 iteration count for newly created envelopes.
	Iterations = 310_000

	saltLen  = 16
	nonceLen = 12
	keyLen   = 32
)

// KDFParams records how the encryption key was derived.
type KDFParams struct {
	Name       string `json:"name"`
	Hash       string `json:"hash"`
	Iterations int    `json:"iterations"`
	SaltB64    string `json:"saltB64"`
}

// CipherParams records the AEAD cipher and its nonce.
type CipherParams struct {
	Name  string `json:"name"`
	IVB64 string `json:"ivB64"`
}

// Envelope is the self-describing encrypted container persisted inside backup
// records. The JSON shape is part of the backup file format and must not
// change without a format version bump.
type Envelope struct {
	KDF           KDFParams    `json:"kdf"`
	Cipher        CipherParams `json:"cipher"`
	CiphertextB64 string       `json:"ciphertextB64"`
}

// Encrypt seals plaintext under a key derived from passphrase. The passphrase
// must be non-empty; length policy is enforced by the layer above before any
// secret material is touched.
func Encrypt(passphrase, plaintext string) (Envelope, error) {
	if passphrase == "" {
		return Envelope{}, fmt.Errorf("%w: empty passphrase", interfaces.ErrValidation)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Envelope{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := newAEAD(passphrase, salt, Iterations)
	if err != nil {
		return Envelope{}, err
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	return Envelope{
		KDF: KDFParams{
			Name:       kdfName,
			Hash:       kdfHash,
			Iterations: Iterations,
			SaltB64:    base64.StdEncoding.EncodeToString(salt),
		},
		Cipher: CipherParams{
			Name:  cipherName,
			IVB64: base64.StdEncoding.EncodeToString(nonce),
		},
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt re-derives the key from passphrase and the envelope's stored salt
// and iteration count, then authenticates and opens the ciphertext. Every
// failure path returns interfaces.ErrDecryption without distinguishing a
// wrong passphrase from tampered data, and never returns partial plaintext.
func Decrypt(passphrase string, env Envelope) (string, error) {
	if env.KDF.Name != kdfName || env.KDF.Hash != kdfHash || env.Cipher.Name != cipherName {
		return "", fmt.Errorf("%w: unsupported envelope parameters", interfaces.ErrInvalidBackupFormat)
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDF.SaltB64)
	if err != nil {
		return "", interfaces.ErrDecryption
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Cipher.IVB64)
	if err != nil {
		return "", interfaces.ErrDecryption
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.CiphertextB64)
	if err != nil {
		return "", interfaces.ErrDecryption
	}
	if len(nonce) != nonceLen {
		return "", interfaces.ErrDecryption
	}

	aead, err := newAEAD(passphrase, salt, env.KDF.Iterations)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM reports one opaque error for both bad keys and bad data.
		// Keep it that way.
		return "", interfaces.ErrDecryption
	}

	return string(plaintext), nil
}

func newAEAD(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	if iterations <= 0 {
		return nil, errors.New("invalid KDF iteration count")
	}

	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
