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

package kdbx

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/binio"
	"zombiezen.com/go/kdbxread/pkg/kdbcrypt"
	"zombiezen.com/go/kdbxread/pkg/kdf"
	"zombiezen.com/go/kdbxread/pkg/variant"
)

// File signatures and versions.
const (
	Signature1 uint32 = 0x9aa2d903
	Signature2 uint32 = 0xb54bfb67

	// Second signatures of older formats.
	signature2KDB    uint32 = 0xb54bfb65
	signature2KDBXPR uint32 = 0xb54bfb66

	Version4         uint32 = 0x00040000
	versionMajorMask uint32 = 0xffff0000
)

// Outer header tags.  Tags 5, 6, 8, 9, and 10 belong to KDBX 3 and are
// rejected.
const (
	tagEnd              byte = 0
	tagComment          byte = 1
	tagCipherID         byte = 2
	tagCompression      byte = 3
	tagMasterSeed       byte = 4
	tagEncryptionIV     byte = 7
	tagKDFParameters    byte = 11
	tagPublicCustomData byte = 12
)

// Inner header tags.
const (
	innerTagEnd       byte = 0
	innerTagStreamID  byte = 1
	innerTagStreamKey byte = 2
	innerTagBinary    byte = 3
)

// Header field names used in errors.
const (
	fieldCipher           = "cipher"
	fieldCompression      = "compression"
	fieldMasterSeed       = "master seed"
	fieldEncryptionIV     = "encryption IV"
	fieldKDFParameters    = "KDF parameters"
	fieldPublicCustomData = "public custom data"
	fieldStreamID         = "inner random stream ID"
	fieldStreamKey        = "inner random stream key"
	fieldBinary           = "binary"
)

const masterSeedSize = 32

// Header is the decoded outer header.
type Header struct {
	Cipher       kdbcrypt.Cipher
	Compression  kdbcrypt.Compression
	MasterSeed   []byte
	EncryptionIV []byte
	KDF          kdf.KDF

	// PublicCustomData is never nil; it is empty if the field is absent.
	PublicCustomData *variant.Map
}

// InnerHeader is the decoded header at the start of the decrypted payload.
type InnerHeader struct {
	StreamID  uint32
	StreamKey []byte
	Binaries  []Binary
}

// Binary is an attachment stored in the inner header.
type Binary struct {
	Protected bool
	Data      []byte
}

// String describes b without printing its contents.
func (b Binary) String() string {
	if b.Protected {
		return fmt.Sprintf("protected binary (%d bytes)", len(b.Data))
	}
	return fmt.Sprintf("binary (%d bytes)", len(b.Data))
}

// A fieldDecoder decodes the value of one header field.  It returns an
// *Error so the failure is already classified.
type fieldDecoder func(value []byte) error

// readFields reads tag-length-value fields until the end tag and hands
// each value to the decoder registered for its tag.  A tag without a
// decoder is fatal.
func readFields(r *binio.Reader, decoders map[byte]fieldDecoder, end byte, inner bool) error {
	stage := "header"
	if inner {
		stage = "inner header"
	}
	for {
		tag := r.Byte()
		value := r.Prefixed()
		if err := r.Err(); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return streamError(stage, err)
		}
		if tag == end {
			return nil
		}
		dec := decoders[tag]
		if dec == nil {
			return &Error{Kind: FormatError, Field: stage, Err: &UnknownFieldError{Inner: inner, Tag: tag}}
		}
		if err := dec(value); err != nil {
			return err
		}
	}
}

// readHeader reads the signatures, version, and outer header fields from
// r.  It also returns the exact bytes consumed, which the header hash and
// MAC are computed over.
func readHeader(r io.Reader, maxSize int) (*Database, []byte, error) {
	raw := new(bytes.Buffer)
	lr := &io.LimitedReader{R: r, N: int64(maxSize)}
	br := binio.NewReader(io.TeeReader(lr, raw))
	db, err := readHeaderFields(br)
	if err != nil {
		if lr.N == 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, &Error{Kind: FormatError, Field: "header", Err: &HeaderSizeError{Max: maxSize}}
		}
		return nil, nil, err
	}
	return db, raw.Bytes(), nil
}

func readHeaderFields(br *binio.Reader) (*Database, error) {
	db := &Database{
		Signature1: br.Uint32(),
		Signature2: br.Uint32(),
		Version:    br.Uint32(),
	}
	if err := br.Err(); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &Error{Kind: FormatError, Field: "signature", Err: err}
	}
	if err := checkSignature(db.Signature1, db.Signature2, db.Version); err != nil {
		return nil, &Error{Kind: FormatError, Field: "signature", Err: err}
	}

	h := &Header{Compression: kdbcrypt.NoCompression}
	seen := make(map[string]bool)
	decoders := map[byte]fieldDecoder{
		tagComment: func([]byte) error { return nil },
		tagCipherID: func(v []byte) error {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return fieldSizeError(fieldCipher, len(v), len(id))
			}
			c, err := kdbcrypt.CipherFromUUID(id)
			if err != nil {
				return &Error{Kind: FormatError, Field: fieldCipher, Err: err}
			}
			h.Cipher = c
			seen[fieldCipher] = true
			return nil
		},
		tagCompression: func(v []byte) error {
			if len(v) != 4 {
				return fieldSizeError(fieldCompression, len(v), 4)
			}
			c, err := kdbcrypt.CompressionFromID(binio.NewReader(bytes.NewReader(v)).Uint32())
			if err != nil {
				return &Error{Kind: FormatError, Field: fieldCompression, Err: err}
			}
			h.Compression = c
			return nil
		},
		tagMasterSeed: func(v []byte) error {
			if len(v) != masterSeedSize {
				return fieldSizeError(fieldMasterSeed, len(v), masterSeedSize)
			}
			h.MasterSeed = v
			seen[fieldMasterSeed] = true
			return nil
		},
		tagEncryptionIV: func(v []byte) error {
			h.EncryptionIV = v
			seen[fieldEncryptionIV] = true
			return nil
		},
		tagKDFParameters: func(v []byte) error {
			m, err := variant.Decode(v)
			if err != nil {
				return &Error{Kind: FormatError, Field: fieldKDFParameters, Err: err}
			}
			k, err := kdf.FromParams(m)
			if err != nil {
				return &Error{Kind: kdfErrorKind(err), Field: fieldKDFParameters, Err: err}
			}
			h.KDF = k
			seen[fieldKDFParameters] = true
			return nil
		},
		tagPublicCustomData: func(v []byte) error {
			m, err := variant.Decode(v)
			if err != nil {
				return &Error{Kind: FormatError, Field: fieldPublicCustomData, Err: err}
			}
			h.PublicCustomData = m
			return nil
		},
	}
	if err := readFields(br, decoders, tagEnd, false); err != nil {
		return nil, err
	}
	for _, f := range []string{fieldCipher, fieldMasterSeed, fieldEncryptionIV, fieldKDFParameters} {
		if !seen[f] {
			return nil, &Error{Kind: ValidationError, Field: f, Err: &MissingFieldError{Field: f}}
		}
	}
	if len(h.EncryptionIV) != h.Cipher.IVSize() {
		return nil, fieldSizeError(fieldEncryptionIV, len(h.EncryptionIV), h.Cipher.IVSize())
	}
	if h.PublicCustomData == nil {
		h.PublicCustomData = new(variant.Builder).Map()
	}
	db.Header = h
	return db, nil
}

func checkSignature(sig1, sig2, version uint32) error {
	if sig1 != Signature1 {
		return ErrSignature
	}
	switch sig2 {
	case Signature2:
	case signature2KDB, signature2KDBXPR:
		return ErrUnsupportedVersion
	default:
		return ErrSignature
	}
	if version&versionMajorMask != Version4 {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d.%d", version>>16, version&0xffff)
	}
	return nil
}

// readInnerHeader reads the inner header from the start of the
// decompressed payload.
func readInnerHeader(br *binio.Reader) (*InnerHeader, error) {
	ih := new(InnerHeader)
	var hasID, hasKey bool
	decoders := map[byte]fieldDecoder{
		innerTagStreamID: func(v []byte) error {
			if len(v) != 4 {
				return fieldSizeError(fieldStreamID, len(v), 4)
			}
			id := binio.NewReader(bytes.NewReader(v)).Uint32()
			if id != kdbcrypt.InnerStreamChaCha20 {
				return &Error{Kind: ValidationError, Field: fieldStreamID, Err: &kdbcrypt.UnsupportedStreamError{ID: id}}
			}
			ih.StreamID = id
			hasID = true
			return nil
		},
		innerTagStreamKey: func(v []byte) error {
			ih.StreamKey = v
			hasKey = true
			return nil
		},
		innerTagBinary: func(v []byte) error {
			if len(v) < 1 {
				return fieldSizeError(fieldBinary, len(v), 1)
			}
			ih.Binaries = append(ih.Binaries, Binary{
				Protected: v[0]&1 != 0,
				Data:      v[1:],
			})
			return nil
		},
	}
	if err := readFields(br, decoders, innerTagEnd, true); err != nil {
		return nil, err
	}
	if !hasID {
		return nil, &Error{Kind: ValidationError, Field: fieldStreamID, Err: &MissingFieldError{Field: fieldStreamID}}
	}
	if !hasKey {
		return nil, &Error{Kind: ValidationError, Field: fieldStreamKey, Err: &MissingFieldError{Field: fieldStreamKey}}
	}
	return ih, nil
}

func fieldSizeError(field string, size, want int) error {
	return &Error{Kind: FormatError, Field: field, Err: &FieldSizeError{Field: field, Size: size, Want: want}}
}

// kdfErrorKind classifies an error from building or running a KDF.
func kdfErrorKind(err error) Kind {
	var (
		paramErr   *kdf.ParamError
		missingErr *variant.MissingError
	)
	switch {
	case errors.Is(err, kdf.ErrUnsupported):
		return UnsupportedError
	case errors.As(err, &paramErr), errors.As(err, &missingErr):
		return ValidationError
	default:
		return FormatError
	}
}
