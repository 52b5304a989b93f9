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

// Package cipherio provides I/O interfaces for encryption streams.
package cipherio // import "zombiezen.com/go/kdbxread/pkg/cipherio"

import (
	"crypto/cipher"
	"io"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/padding"
)

const defaultBufSize = 4096

type reader struct {
	r    io.Reader
	mode cipher.BlockMode
	pad  padding.Padding

	// buf[rawStart:rawEnd] holds ciphertext that has not been decrypted
	// yet.  The last complete block is always held back until EOF, since
	// only then is it known to carry the padding.
	buf      []byte
	rawStart int
	rawEnd   int
	plain    []byte
	err      error
}

// NewReader creates a new reader that decrypts and strips padding from r.
// Ciphertext that ends in the middle of a block, or is empty, produces
// io.ErrUnexpectedEOF.
func NewReader(r io.Reader, mode cipher.BlockMode, pad padding.Padding) io.Reader {
	bufSize := defaultBufSize
	if bs := mode.BlockSize(); 2*bs > bufSize {
		bufSize = 2 * bs
	}
	return &reader{
		r:    r,
		mode: mode,
		pad:  pad,
		buf:  make([]byte, bufSize),
	}
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}
	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}

// fill reads more ciphertext and decrypts whatever can safely be released.
// It must only be called once r.plain has been consumed.
func (r *reader) fill() {
	bs := r.mode.BlockSize()
	r.rawEnd = copy(r.buf, r.buf[r.rawStart:r.rawEnd])
	r.rawStart = 0
	n, err := r.r.Read(r.buf[r.rawEnd:])
	r.rawEnd += n
	switch {
	case err == io.EOF:
		r.finish(bs)
		return
	case err != nil:
		r.err = err
		return
	}

	release := (r.rawEnd - 1) / bs * bs
	if release <= 0 {
		return
	}
	blocks := r.buf[:release]
	r.mode.CryptBlocks(blocks, blocks)
	r.plain = blocks
	r.rawStart = release
}

func (r *reader) finish(bs int) {
	raw := r.buf[r.rawStart:r.rawEnd]
	r.rawStart, r.rawEnd = 0, 0
	if len(raw) == 0 || len(raw)%bs != 0 {
		r.err = io.ErrUnexpectedEOF
		return
	}
	r.mode.CryptBlocks(raw, raw)
	plain, err := r.pad.Strip(raw, bs)
	if err != nil {
		r.err = err
		return
	}
	r.plain = plain
	r.err = io.EOF
}

type writer struct {
	w       io.Writer
	mode    cipher.BlockMode
	pad     padding.Padding
	bufSize int

	buf []byte
	err error
}

// NewWriter creates a new writer that encrypts its input and writes to w.
// Closing the writer adds the final padding but does not close w.
func NewWriter(w io.Writer, mode cipher.BlockMode, pad padding.Padding) io.WriteCloser {
	bufSize := defaultBufSize
	if bs := mode.BlockSize(); bs > bufSize {
		bufSize = bs
	}
	return newWriter(w, mode, pad, bufSize)
}

func newWriter(w io.Writer, mode cipher.BlockMode, pad padding.Padding, bufSize int) io.WriteCloser {
	if mode.BlockSize() > bufSize {
		panic("cipherio: block size larger than buffer")
	}
	return &writer{
		w:       w,
		mode:    mode,
		pad:     pad,
		bufSize: bufSize,
		buf:     make([]byte, 0, bufSize+mode.BlockSize()),
	}
}

func (w *writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}
	bs := w.mode.BlockSize()
	for len(p) > 0 {
		k := copy(w.buf[len(w.buf):w.bufSize], p)
		w.buf = w.buf[:len(w.buf)+k]
		p = p[k:]
		n += k
		if len(w.buf) < w.bufSize {
			break
		}
		full := len(w.buf) / bs * bs
		if err := w.flush(full); err != nil {
			return n, err
		}
	}
	return n, nil
}

// flush encrypts and writes the first n buffered bytes, which must be a
// whole number of blocks.
func (w *writer) flush(n int) error {
	if n == 0 {
		return nil
	}
	w.mode.CryptBlocks(w.buf[:n], w.buf[:n])
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		w.err = err
		return err
	}
	w.buf = append(w.buf[:0], w.buf[n:]...)
	return nil
}

func (w *writer) Close() error {
	if w.err == errClosed {
		return nil
	} else if w.err != nil {
		return w.err
	}
	w.buf = w.pad.Pad(w.buf, w.mode.BlockSize())
	err := w.flush(len(w.buf))
	w.err = errClosed
	return err
}

var errClosed = errors.New("cipherio: write on closed writer")

// NewStreamReader returns a reader that XORs the key stream s into the
// bytes read from r.
func NewStreamReader(r io.Reader, s cipher.Stream) io.Reader {
	return &cipher.StreamReader{S: s, R: r}
}

// NewStreamWriter returns a writer that XORs the key stream s into the
// bytes written to w.  Closing it closes w if w is an io.Closer.
func NewStreamWriter(w io.Writer, s cipher.Stream) io.WriteCloser {
	return &cipher.StreamWriter{S: s, W: w}
}
