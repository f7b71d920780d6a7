package service

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

const (
	aeadEncKeySize = 32
	aeadMacKeySize = 32
	aesBlockSize   = 16
)

var hkdfInfo = []byte("cosmosfle-aead-v1")

// AEADCipher implements domain.Cipher: AES-256-CBC composed with
// HMAC-SHA-256 under an encrypt-then-MAC discipline. It has no
// awareness of type markers or JSON.
//
// The encryption and MAC sub-keys are derived once, at construction,
// from the unwrapped data-encryption key via HKDF-SHA256 — the
// in-memory and on-wire representation of a DEK stays a single opaque
// blob, never two independently stored keys.
type AEADCipher struct {
	encKey [aeadEncKeySize]byte
	macKey [aeadMacKeySize]byte
}

// NewAEADCipher derives the AEAD key schedule from raw data-encryption
// key bytes unwrapped by the master-key store.
func NewAEADCipher(dek []byte) (*AEADCipher, error) {
	r := hkdf.New(sha256.New, dek, nil, hkdfInfo)
	var derived [aeadEncKeySize + aeadMacKeySize]byte
	if _, err := io.ReadFull(r, derived[:]); err != nil {
		return nil, err
	}
	c := &AEADCipher{}
	copy(c.encKey[:], derived[:aeadEncKeySize])
	copy(c.macKey[:], derived[aeadEncKeySize:])
	return c, nil
}

// Encrypt implements domain.Cipher. mode selects the IV strategy:
// Deterministic derives the IV from an HMAC over the plaintext so
// equal plaintexts under the same key yield equal ciphertexts;
// Randomized draws the IV from a CSPRNG.
func (c *AEADCipher) Encrypt(plaintext []byte, mode domain.EncryptionType) ([]byte, error) {
	iv, err := c.deriveIV(plaintext, mode)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(c.encKey[:])
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aesBlockSize)
	enc := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(enc, padded)

	out := make([]byte, 0, 1+domain.IVSize+len(enc)+domain.MACSize)
	out = append(out, domain.AlgorithmVersion)
	out = append(out, iv...)
	out = append(out, enc...)

	mac := c.computeMAC(out)
	out = append(out, mac...)
	return out, nil
}

// Decrypt implements domain.Cipher. It validates the version byte and
// the MAC in constant time before decrypting, failing with
// CryptoIntegrity on any mismatch.
func (c *AEADCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	minLen := 1 + domain.IVSize + domain.MACSize
	if len(ciphertext) < minLen {
		return nil, domain.CryptoIntegrity
	}

	version := ciphertext[0]
	iv := ciphertext[1 : 1+domain.IVSize]
	enc := ciphertext[1+domain.IVSize : len(ciphertext)-domain.MACSize]
	tag := ciphertext[len(ciphertext)-domain.MACSize:]

	if version != domain.AlgorithmVersion {
		return nil, domain.CryptoIntegrity
	}
	if len(enc)%aesBlockSize != 0 || len(enc) == 0 {
		return nil, domain.CryptoIntegrity
	}

	expected := c.computeMAC(ciphertext[:len(ciphertext)-domain.MACSize])
	if !hmac.Equal(expected, tag) {
		return nil, domain.CryptoIntegrity
	}

	block, err := aes.NewCipher(c.encKey[:])
	if err != nil {
		return nil, err
	}
	padded := make([]byte, len(enc))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(padded, enc)

	plaintext, err := pkcs7Unpad(padded, aesBlockSize)
	if err != nil {
		return nil, domain.CryptoIntegrity
	}
	return plaintext, nil
}

func (c *AEADCipher) deriveIV(plaintext []byte, mode domain.EncryptionType) ([]byte, error) {
	switch mode {
	case domain.Deterministic:
		mac := hmac.New(sha256.New, c.macKey[:])
		mac.Write(plaintext)
		sum := mac.Sum(nil)
		return sum[:domain.IVSize], nil
	case domain.Randomized:
		iv := make([]byte, domain.IVSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
		return iv, nil
	default:
		return nil, domain.UnsupportedValue
	}
}

func (c *AEADCipher) computeMAC(data []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey[:])
	mac.Write(data)
	return mac.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, domain.CryptoIntegrity
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, domain.CryptoIntegrity
	}
	padding := data[len(data)-padLen:]
	for _, b := range padding {
		if int(b) != padLen {
			return nil, domain.CryptoIntegrity
		}
	}
	return data[:len(data)-padLen], nil
}
