// Copyright 2016 Ross Light
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kdbcrypt provides the KeePass 2 (KDBX 4) key schedule, header
// authentication, and payload ciphers.
package kdbcrypt // import "zombiezen.com/go/kdbxread/pkg/kdbcrypt"

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/twofish"
	"zombiezen.com/go/kdbxread/pkg/binio"
	"zombiezen.com/go/kdbxread/pkg/cipherio"
	"zombiezen.com/go/kdbxread/pkg/padding"
)

// Errors
var (
	ErrUnknownCipher = errors.New("kdbcrypt: unknown cipher")
	ErrNoCredentials = errors.New("kdbcrypt: no password or key file given")
)

// Cipher is a payload cipher algorithm.
type Cipher int

// Available ciphers
const (
	AES256 Cipher = 1 + iota
	Twofish
	ChaCha20
)

var cipherIDs = map[Cipher]uuid.UUID{
	AES256:   uuid.MustParse("31c1f2e6-bf71-4350-be58-05216afc5aff"),
	Twofish:  uuid.MustParse("ad68f29f-576f-4bb9-a36a-d47af965346c"),
	ChaCha20: uuid.MustParse("d6038a2b-8b6f-4cb5-a524-339a31dbb59a"),
}

// CipherFromUUID returns the cipher with the given identifier.
func CipherFromUUID(id uuid.UUID) (Cipher, error) {
	for c, cid := range cipherIDs {
		if cid == id {
			return c, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownCipher, "cipher %v", id)
}

// UUID returns the cipher's identifier in the outer header.
func (c Cipher) UUID() uuid.UUID {
	return cipherIDs[c]
}

// IVSize returns the length of the encryption IV (or nonce) in bytes.
func (c Cipher) IVSize() int {
	switch c {
	case AES256, Twofish:
		return 16
	case ChaCha20:
		return chacha20.NonceSize
	default:
		return 0
	}
}

func (c Cipher) String() string {
	switch c {
	case AES256:
		return "AES-256"
	case Twofish:
		return "Twofish"
	case ChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("Cipher(%d)", int(c))
	}
}

func (c Cipher) block(key []byte) (cipher.Block, error) {
	switch c {
	case AES256:
		return aes.NewCipher(key)
	case Twofish:
		return twofish.NewCipher(key)
	default:
		return nil, ErrUnknownCipher
	}
}

// An IVSizeError is returned when the IV length does not match the cipher.
type IVSizeError struct {
	Cipher Cipher
	Size   int
}

func (e *IVSizeError) Error() string {
	return fmt.Sprintf("kdbcrypt: %v IV is %d bytes, want %d", e.Cipher, e.Size, e.Cipher.IVSize())
}

// NewDecrypter returns a reader that decrypts r.  Block ciphers run in
// CBC mode and have their PKCS #7 padding stripped; ChaCha20 is a plain
// stream.
func NewDecrypter(r io.Reader, c Cipher, key []byte, iv []byte) (io.Reader, error) {
	if len(iv) != c.IVSize() {
		if c.IVSize() == 0 {
			return nil, ErrUnknownCipher
		}
		return nil, &IVSizeError{Cipher: c, Size: len(iv)}
	}
	if c == ChaCha20 {
		s, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, err
		}
		return cipherio.NewStreamReader(r, s), nil
	}
	b, err := c.block(key)
	if err != nil {
		return nil, err
	}
	return cipherio.NewReader(r, cipher.NewCBCDecrypter(b, iv), padding.PKCS7), nil
}

// NewEncrypter creates a new writer that encrypts to w.  Closing the
// new writer writes the final, padded block but does not close w.
func NewEncrypter(w io.Writer, c Cipher, key []byte, iv []byte) (io.WriteCloser, error) {
	if len(iv) != c.IVSize() {
		if c.IVSize() == 0 {
			return nil, ErrUnknownCipher
		}
		return nil, &IVSizeError{Cipher: c, Size: len(iv)}
	}
	if c == ChaCha20 {
		s, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, err
		}
		return cipherio.NewStreamWriter(nopCloser{w}, s), nil
	}
	b, err := c.block(key)
	if err != nil {
		return nil, err
	}
	return cipherio.NewWriter(w, cipher.NewCBCEncrypter(b, iv), padding.PKCS7), nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// CompositeKey combines the SHA-256 hash of a password and the hash of a
// key file into the key fed to the KDF.  Either may be nil, but not both.
func CompositeKey(passwordHash, keyFileHash []byte) ([]byte, error) {
	if len(passwordHash) == 0 && len(keyFileHash) == 0 {
		return nil, ErrNoCredentials
	}
	h := sha256.New()
	h.Write(passwordHash)
	h.Write(keyFileHash)
	return h.Sum(nil), nil
}

// Keys holds the keys derived from the master seed and transformed key.
type Keys struct {
	Cipher [sha256.Size]byte
	HMAC   [sha512.Size]byte
}

// Schedule derives the payload cipher key and the HMAC base key.
func Schedule(masterSeed, transformedKey []byte) *Keys {
	k := new(Keys)
	h := sha256.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	h.Sum(k.Cipher[:0])

	h512 := sha512.New()
	h512.Write(masterSeed)
	h512.Write(transformedKey)
	h512.Write([]byte{0x01})
	h512.Sum(k.HMAC[:0])
	return k
}

// Zero overwrites the key material.
func (k *Keys) Zero() {
	for i := range k.Cipher {
		k.Cipher[i] = 0
	}
	for i := range k.HMAC {
		k.HMAC[i] = 0
	}
}

// String returns a placeholder so keys are not printed by accident.
func (k Keys) String() string {
	return "kdbcrypt.Keys{redacted}"
}

// GoString returns the same placeholder as String.
func (k Keys) GoString() string {
	return k.String()
}

// HeaderIndex is the block index used to authenticate the outer header.
const HeaderIndex = ^uint64(0)

// BlockKey returns the HMAC-SHA256 key for the block at index.
func BlockKey(index uint64, hmacKey []byte) []byte {
	h := sha512.New()
	h.Write(binio.Int64Bytes(int64(index)))
	h.Write(hmacKey)
	return h.Sum(nil)
}

// HeaderHash returns the SHA-256 hash of the raw outer header.
func HeaderHash(raw []byte) [sha256.Size]byte {
	return sha256.Sum256(raw)
}

// HeaderMAC returns the HMAC-SHA256 of the raw outer header.
func HeaderMAC(hmacKey []byte, raw []byte) []byte {
	m := hmac.New(sha256.New, BlockKey(HeaderIndex, hmacKey))
	m.Write(raw)
	return m.Sum(nil)
}
