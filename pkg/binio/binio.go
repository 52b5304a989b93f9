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

// Package binio provides fixed-width integer and length-prefixed byte
// codecs over byte streams.  Readers and writers keep the first error
// they encounter and turn every later call into a no-op, so a sequence
// of reads can be checked once at the end.
package binio // import "zombiezen.com/go/kdbxread/pkg/binio"

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFieldSize is the largest length prefix that Prefixed will accept.
const MaxFieldSize = 64 << 20

// A Reader decodes primitive values from an underlying reader.
type Reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

// NewReader returns a reader that decodes from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered.  A stream that ends in the
// middle of a value reports io.ErrUnexpectedEOF.  A fixed-width read
// that finds no bytes at all reports io.EOF; Bytes and Prefixed always
// report io.ErrUnexpectedEOF, since their length is already known.
func (r *Reader) Err() error {
	return r.err
}

// ReadFull fills p.  Nothing is read once an error has occurred.
func (r *Reader) ReadFull(p []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, p)
}

func (r *Reader) fixed(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := r.buf[:n]
	if _, r.err = io.ReadFull(r.r, b); r.err != nil {
		return nil
	}
	return b
}

// Byte reads a single byte.
func (r *Reader) Byte() byte {
	b := r.fixed(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.fixed(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.fixed(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint32BE reads a big-endian uint32.
func (r *Reader) Uint32BE() uint32 {
	b := r.fixed(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	b := r.fixed(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Int32 reads a little-endian two's complement int32.
func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

// Int64 reads a little-endian two's complement int64.
func (r *Reader) Int64() int64 {
	return int64(r.Uint64())
}

// Bytes reads exactly n bytes into a new slice.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > MaxFieldSize {
		r.err = &LengthError{Length: int64(n), Max: MaxFieldSize}
		return nil
	}
	b := make([]byte, n)
	if _, r.err = io.ReadFull(r.r, b); r.err != nil {
		if r.err == io.EOF && n > 0 {
			r.err = io.ErrUnexpectedEOF
		}
		return nil
	}
	return b
}

// Prefixed reads a little-endian uint32 length followed by that many bytes.
func (r *Reader) Prefixed() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	if n > MaxFieldSize {
		r.err = &LengthError{Length: int64(n), Max: MaxFieldSize}
		return nil
	}
	b := r.Bytes(int(n))
	if r.err == io.EOF {
		r.err = io.ErrUnexpectedEOF
	}
	return b
}

// A LengthError is returned when a length prefix is negative or exceeds
// the permitted maximum.
type LengthError struct {
	Length int64
	Max    int64
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("binio: length %d out of range [0, %d]", e.Length, e.Max)
}

// A Writer encodes primitive values to an underlying writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter returns a writer that encodes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.err
}

// Write writes p verbatim.
func (w *Writer) Write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.Write([]byte{b})
}

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(i uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], i)
	w.Write(buf[:])
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(i uint32) {
	w.Write(Uint32Bytes(i))
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(i uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], i)
	w.Write(buf[:])
}

// Prefixed writes len(p) as a little-endian uint32 followed by p.
func (w *Writer) Prefixed(p []byte) {
	w.Uint32(uint32(len(p)))
	w.Write(p)
}

// Int64Bytes returns the little-endian encoding of i.
func Int64Bytes(i int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(i))
	return b
}

// Int32Bytes returns the little-endian encoding of i.
func Int32Bytes(i int32) []byte {
	return Uint32Bytes(uint32(i))
}

// Uint32Bytes returns the little-endian encoding of i.
func Uint32Bytes(i uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, i)
	return b
}
