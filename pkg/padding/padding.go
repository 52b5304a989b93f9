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

// Package padding provides the block padding schemes used by KeePass
// payload ciphers.
package padding // import "zombiezen.com/go/kdbxread/pkg/padding"

import (
	"crypto/subtle"

	"github.com/pkg/errors"
)

// Padding is a padding algorithm.
type Padding interface {
	// Pad appends padding to b so its length is a multiple of blockSize.
	// A full block is appended when b is already aligned.
	Pad(b []byte, blockSize int) []byte

	// Strip returns b without its padding.  The result is always a
	// prefix of b.  b must be one or more whole blocks.
	Strip(b []byte, blockSize int) ([]byte, error)
}

// Errors
var (
	ErrWrongPadding = errors.New("padding: wrong padding")
	ErrBadBlockSize = errors.New("padding: bad block size")
	ErrDataSize     = errors.New("padding: input is not a positive multiple of block size")
)

// PKCS7 is the padding from RFC 5652 section 6.3: n bytes of value n,
// with 1 <= n <= blockSize.  Block sizes must be in [2, 255].
var PKCS7 Padding = pkcs7{}

type pkcs7 struct{}

func (pkcs7) String() string   { return "PKCS7" }
func (pkcs7) GoString() string { return "padding.PKCS7" }

func validBlockSize(blockSize int) bool {
	return blockSize > 1 && blockSize < 256
}

func (pkcs7) Pad(b []byte, blockSize int) []byte {
	if !validBlockSize(blockSize) {
		panic("padding: illegal PKCS7 block size")
	}
	n := blockSize - len(b)%blockSize
	for i := 0; i < n; i++ {
		b = append(b, byte(n))
	}
	return b
}

// Strip compares every byte of the final block with crypto/subtle, so
// its timing does not reveal the padding length.
func (pkcs7) Strip(b []byte, blockSize int) ([]byte, error) {
	if !validBlockSize(blockSize) {
		return b, ErrBadBlockSize
	}
	if len(b) == 0 || len(b)%blockSize != 0 {
		return b, ErrDataSize
	}
	last := b[len(b)-blockSize:]
	n := int(last[blockSize-1])
	good := subtle.ConstantTimeLessOrEq(1, n) & subtle.ConstantTimeLessOrEq(n, blockSize)
	for i, x := range last {
		inPad := subtle.ConstantTimeLessOrEq(blockSize-i, n)
		match := subtle.ConstantTimeByteEq(x, byte(n))
		// Bytes outside the padding always pass.
		good &= match | (inPad ^ 1)
	}
	if good != 1 {
		return b, ErrWrongPadding
	}
	return b[:len(b)-n], nil
}
