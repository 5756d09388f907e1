// Package cryptox implements the passcode-based encryption scheme used for
// stored files: scrypt key stretching plus AES-256-CBC over a self-contained
// envelope. The envelope keeps the {"iv": hex, "content": hex} wire format
// of the Node service this one replaces, so previously stored objects stay
// readable.
//
// CBC with PKCS#7 padding carries no integrity tag: a wrong passcode is
// detected only because unpadding fails, and block-aligned garbage can in
// theory unpad successfully. An authenticated AES-256-GCM mode is available
// behind Config.Authenticated for deployments that do not need envelope
// compatibility.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
)

const (
	// KeySize is the derived AES key length (AES-256).
	KeySize = 32
	// IVSize is the CBC initialization vector length.
	IVSize = aes.BlockSize
	// GCMNonceSize is the nonce length used in authenticated mode.
	GCMNonceSize = 12

	// scrypt cost parameters, matching Node's crypto.scryptSync defaults
	// so existing passcodes keep deriving the same keys.
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// ErrDecryptionFailed is returned when an envelope cannot be decrypted with
// the supplied passcode. In CBC mode this is a padding failure, in GCM mode
// an authentication failure; either way the passcode is almost certainly
// wrong or the envelope is corrupt.
var ErrDecryptionFailed = errors.New("decryption failed")

// Envelope is the self-contained encrypted payload persisted to the blob
// backend. Both fields are hex-encoded in the serialized JSON form.
type Envelope struct {
	IV      []byte
	Content []byte
}

type envelopeJSON struct {
	IV      string `json:"iv"`
	Content string `json:"content"`
}

// MarshalJSON serializes the envelope as {"iv": hex, "content": hex}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		IV:      hex.EncodeToString(e.IV),
		Content: hex.EncodeToString(e.Content),
	})
}

// UnmarshalJSON parses the hex-encoded wire form of the envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var j envelopeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	iv, err := hex.DecodeString(j.IV)
	if err != nil {
		return fmt.Errorf("invalid iv encoding: %w", err)
	}
	content, err := hex.DecodeString(j.Content)
	if err != nil {
		return fmt.Errorf("invalid content encoding: %w", err)
	}
	e.IV = iv
	e.Content = content
	return nil
}

// Config holds the immutable parameters of a Codec.
type Config struct {
	// Salt is the fixed key-derivation salt. Every passcode maps to the
	// same key regardless of file; see the package comment for the
	// compatibility constraint behind this.
	Salt []byte
	// Authenticated switches encryption from AES-256-CBC to AES-256-GCM.
	// Envelopes produced in one mode cannot be opened in the other.
	Authenticated bool
}

// Codec derives keys from passcodes and encrypts/decrypts envelopes.
// Codec is stateless and safe for concurrent use.
type Codec struct {
	salt          []byte
	authenticated bool
}

// NewCodec creates a Codec from the given configuration.
func NewCodec(cfg Config) *Codec {
	return &Codec{salt: cfg.Salt, authenticated: cfg.Authenticated}
}

// DeriveKey stretches the passcode into a 32-byte AES key. The function is
// deterministic: the same passcode and salt always produce the same key,
// which is what makes passcode-only decryption possible.
func (c *Codec) DeriveKey(passcode []byte) ([]byte, error) {
	key, err := scrypt.Key(passcode, c.salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return key, nil
}

// Encrypt encrypts plaintext under a key derived from the passcode, using a
// fresh random IV (or nonce in authenticated mode) for every call.
func (c *Codec) Encrypt(plaintext, passcode []byte) (*Envelope, error) {
	key, err := c.DeriveKey(passcode)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	if c.authenticated {
		return sealGCM(key, plaintext)
	}
	return sealCBC(key, plaintext)
}

// Decrypt opens an envelope with a key derived from the supplied passcode.
// It returns ErrDecryptionFailed when the passcode does not match the one
// used at encryption time.
func (c *Codec) Decrypt(env *Envelope, passcode []byte) ([]byte, error) {
	key, err := c.DeriveKey(passcode)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	return c.DecryptWithKey(env, key)
}

// DecryptWithKey opens an envelope with an already-derived key. Used by the
// token-based download path where the key travels sealed inside the
// capability instead of being re-derived from a passcode.
func (c *Codec) DecryptWithKey(env *Envelope, key []byte) ([]byte, error) {
	if c.authenticated {
		return openGCM(key, env)
	}
	return openCBC(key, env)
}

func sealCBC(key, plaintext []byte) (*Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(IVSize)
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &Envelope{IV: iv, Content: ciphertext}, nil
}

func openCBC(key []byte, env *Envelope) ([]byte, error) {
	if len(env.IV) != IVSize {
		return nil, fmt.Errorf("%w: bad iv length %d", ErrDecryptionFailed, len(env.IV))
	}
	if len(env.Content) == 0 || len(env.Content)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block-aligned", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(env.Content))
	cipher.NewCBCDecrypter(block, env.IV).CryptBlocks(plaintext, env.Content)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return unpadded, nil
}

func sealGCM(key, plaintext []byte) (*Envelope, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(GCMNonceSize)

	return &Envelope{IV: nonce, Content: aead.Seal(nil, nonce, plaintext, nil)}, nil
}

func openGCM(key []byte, env *Envelope) ([]byte, error) {
	if len(env.IV) != GCMNonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrDecryptionFailed, len(env.IV))
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, env.IV, env.Content, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealWithKey encrypts data under the given 32-byte key with AES-GCM,
// prepending the nonce to the ciphertext. Used to seal derived file keys
// inside download tokens so the raw passcode never leaves the server.
func SealWithKey(key, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())

	return aead.Seal(nonce, nonce, data, nil), nil
}

// OpenWithKey reverses SealWithKey.
func OpenWithKey(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: sealed data too short", ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
