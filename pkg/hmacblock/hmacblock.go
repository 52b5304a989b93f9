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

// Package hmacblock reads and writes the HMAC-authenticated block stream
// that carries a KDBX 4 payload.
//
// Each block is
//
//	mac     32 bytes, HMAC-SHA256
//	length  uint32, little-endian
//	data    length bytes
//
// and the stream ends with a block of length zero.  The MAC of block i is
// keyed by SHA-512(int64(i) || K) over int64(i) || int32(length) || data,
// so blocks can not be reordered, dropped, or truncated undetected.
package hmacblock // import "zombiezen.com/go/kdbxread/pkg/hmacblock"

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/binio"
	"zombiezen.com/go/kdbxread/pkg/kdbcrypt"
)

// MaxBlockSize is the largest block length accepted by a Reader.
const MaxBlockSize = math.MaxInt32

// DefaultBlockSize is the block length used by KeePass when writing.
const DefaultBlockSize = 1 << 20

// ErrMAC is matched by errors.Is for every *MACError.
var ErrMAC = errors.New("hmacblock: block authentication failed")

// A MACError reports a block whose MAC did not verify.
type MACError struct {
	Index uint64
}

func (e *MACError) Error() string {
	return fmt.Sprintf("hmacblock: block %d failed authentication", e.Index)
}

// Is reports whether target is ErrMAC.
func (e *MACError) Is(target error) bool {
	return target == ErrMAC
}

// A SizeError reports a block length outside [0, MaxBlockSize].
type SizeError struct {
	Index  uint64
	Length uint32
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("hmacblock: block %d has length %d, exceeds %d", e.Index, e.Length, MaxBlockSize)
}

// Reader verifies and returns the payload of a block stream.  No byte of
// a block is returned before the block's MAC has been checked.  Errors are
// sticky.
type Reader struct {
	r     *binio.Reader
	key   []byte
	index uint64
	block []byte
	err   error
}

// NewReader returns a reader of the block stream in r authenticated by
// the 64-byte HMAC base key.
func NewReader(r io.Reader, hmacKey []byte) *Reader {
	return &Reader{
		r:   binio.NewReader(r),
		key: append([]byte(nil), hmacKey...),
	}
}

// Read implements io.Reader.  It returns io.EOF after the terminating
// empty block has been verified.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.block) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.next()
	}
	n := copy(p, r.block)
	r.block = r.block[n:]
	return n, nil
}

// Index returns the index of the next block to be read.
func (r *Reader) Index() uint64 {
	return r.index
}

// next reads and verifies one block.
func (r *Reader) next() {
	var mac [sha256.Size]byte
	r.r.ReadFull(mac[:])
	length := r.r.Uint32()
	if err := r.r.Err(); err != nil {
		r.err = truncated(err)
		return
	}
	if length > MaxBlockSize {
		r.err = &SizeError{Index: r.index, Length: length}
		return
	}
	var data []byte
	if length > 0 {
		// Grow the buffer in steps so a forged length can not force a
		// huge allocation before the stream runs dry.
		data = make([]byte, 0, min(int(length), DefaultBlockSize))
		for len(data) < int(length) {
			chunk := min(int(length)-len(data), DefaultBlockSize)
			data = append(data, r.r.Bytes(chunk)...)
			if err := r.r.Err(); err != nil {
				r.err = truncated(err)
				return
			}
		}
	}
	if !hmac.Equal(mac[:], blockMAC(r.key, r.index, data)) {
		r.err = &MACError{Index: r.index}
		return
	}
	r.index++
	if length == 0 {
		r.err = io.EOF
		return
	}
	r.block = data
}

func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func blockMAC(hmacKey []byte, index uint64, data []byte) []byte {
	m := hmac.New(sha256.New, kdbcrypt.BlockKey(index, hmacKey))
	m.Write(binio.Int64Bytes(int64(index)))
	m.Write(binio.Int32Bytes(int32(len(data))))
	m.Write(data)
	return m.Sum(nil)
}

// Writer splits its input into authenticated blocks.
type Writer struct {
	w         *binio.Writer
	key       []byte
	blockSize int
	index     uint64
	buf       []byte
	closed    bool
}

// NewWriter returns a writer that emits blocks of blockSize bytes to w.
// A blockSize of zero or less selects DefaultBlockSize.
func NewWriter(w io.Writer, hmacKey []byte, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{
		w:         binio.NewWriter(w),
		key:       append([]byte(nil), hmacKey...),
		blockSize: blockSize,
		buf:       make([]byte, 0, blockSize),
	}
}

// Write buffers p, emitting each block as it fills.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, errors.New("hmacblock: write on closed writer")
	}
	for len(p) > 0 {
		k := min(len(p), w.blockSize-len(w.buf))
		w.buf = append(w.buf, p[:k]...)
		p = p[k:]
		n += k
		if len(w.buf) == w.blockSize {
			w.flush()
		}
		if err := w.w.Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *Writer) flush() {
	w.w.Write(blockMAC(w.key, w.index, w.buf))
	w.w.Prefixed(w.buf)
	w.index++
	w.buf = w.buf[:0]
}

// Close writes any buffered data followed by the terminating empty block.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.w.Err()
	}
	w.closed = true
	if len(w.buf) > 0 {
		w.flush()
	}
	w.flush()
	return w.w.Err()
}
