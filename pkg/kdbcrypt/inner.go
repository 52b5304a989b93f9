// Copyright 2026 The Sandpass Authors
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

package kdbcrypt

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Inner random stream identifiers.  Only ChaCha20 is used by KDBX 4.
const (
	InnerStreamNone     uint32 = 0
	InnerStreamArc4     uint32 = 1
	InnerStreamSalsa20  uint32 = 2
	InnerStreamChaCha20 uint32 = 3
)

// An UnsupportedStreamError is returned for inner random stream ids other
// than ChaCha20.
type UnsupportedStreamError struct {
	ID uint32
}

func (e *UnsupportedStreamError) Error() string {
	return fmt.Sprintf("kdbcrypt: unsupported inner random stream %d", e.ID)
}

// An InnerStream produces the key stream that masks protected values
// inside the XML document.  Values must be unmasked in document order,
// since the stream is shared by all of them.
type InnerStream struct {
	c *chacha20.Cipher
}

// NewInnerStream returns the stream for the given inner header id and key.
func NewInnerStream(id uint32, key []byte) (*InnerStream, error) {
	if id != InnerStreamChaCha20 {
		return nil, &UnsupportedStreamError{ID: id}
	}
	sum := sha512.Sum512(key)
	c, err := chacha20.NewUnauthenticatedCipher(sum[:chacha20.KeySize], sum[chacha20.KeySize:chacha20.KeySize+chacha20.NonceSize])
	if err != nil {
		return nil, err
	}
	return &InnerStream{c: c}, nil
}

// Unmask XORs the next len(b) bytes of the stream into b in place.
func (s *InnerStream) Unmask(b []byte) {
	s.c.XORKeyStream(b, b)
}
