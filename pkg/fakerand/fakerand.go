// Copyright 2016 The Sandpass Authors
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

// Package fakerand provides a deterministic PRNG, suitable for testing.
// It must never be used to generate real keys.
package fakerand // import "zombiezen.com/go/kdbxread/pkg/fakerand"

import (
	"encoding/binary"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20"
)

// New returns a new reader that returns the same sequence of bytes every time.
// The reader can be used from multiple goroutines.
func New() io.Reader {
	return NewSeeded(0)
}

// NewSeeded returns a reader whose sequence is determined by seed.
// Readers with different seeds produce unrelated sequences.
func NewSeeded(seed uint64) io.Reader {
	var key [chacha20.KeySize]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	return &reader{c: c}
}

type reader struct {
	mu sync.Mutex
	c  *chacha20.Cipher
}

func (r *reader) Read(p []byte) (n int, err error) {
	for i := range p {
		p[i] = 0
	}
	r.mu.Lock()
	r.c.XORKeyStream(p, p)
	r.mu.Unlock()
	return len(p), nil
}

// Bytes returns the next n bytes of r.
func Bytes(r io.Reader, n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		panic(err)
	}
	return b
}
