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
	"compress/gzip"
	"fmt"
	"io"
)

// Compression is a payload compression algorithm.
type Compression uint32

// Compression algorithms, numbered as in the outer header.
const (
	NoCompression Compression = 0
	GZip          Compression = 1
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case GZip:
		return "gzip"
	default:
		return fmt.Sprintf("Compression(%d)", uint32(c))
	}
}

// An UnknownCompressionError is returned for unrecognized compression ids.
type UnknownCompressionError struct {
	ID uint32
}

func (e *UnknownCompressionError) Error() string {
	return fmt.Sprintf("kdbcrypt: unknown compression algorithm %d", e.ID)
}

// CompressionFromID returns the compression algorithm with the given id.
func CompressionFromID(id uint32) (Compression, error) {
	switch c := Compression(id); c {
	case NoCompression, GZip:
		return c, nil
	default:
		return 0, &UnknownCompressionError{ID: id}
	}
}

// NewDecompressor returns a reader that decompresses r.
func NewDecompressor(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case NoCompression:
		return io.NopCloser(r), nil
	case GZip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		zr.Multistream(false)
		return zr, nil
	default:
		return nil, &UnknownCompressionError{ID: uint32(c)}
	}
}

// NewCompressor returns a writer that compresses to w.  Closing it
// flushes the compressed stream but does not close w.
func NewCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case NoCompression:
		return nopCloser{w}, nil
	case GZip:
		return gzip.NewWriter(w), nil
	default:
		return nil, &UnknownCompressionError{ID: uint32(c)}
	}
}
