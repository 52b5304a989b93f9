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

// Package kdbx reads KeePass 2 databases in the KDBX 4 format.
//
// A file is laid out as
//
//	signatures  two uint32s, then the uint32 format version
//	header      tag-length-value fields, ending with tag 0
//	hash        SHA-256 of the bytes above
//	mac         HMAC-SHA256 of the same bytes, keyed from the credentials
//	payload     HMAC block stream of the encrypted, optionally gzipped,
//	            inner header followed by the XML document
//
// Open verifies every layer before returning and never returns a
// partially decoded database.
package kdbx // import "zombiezen.com/go/kdbxread/pkg/kdbx"

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/binio"
	"zombiezen.com/go/kdbxread/pkg/hmacblock"
	"zombiezen.com/go/kdbxread/pkg/kdbcrypt"
	"zombiezen.com/go/kdbxread/pkg/kdf"
	"zombiezen.com/go/kdbxread/pkg/xmltree"
)

// Database is a decoded KDBX 4 file.
type Database struct {
	Signature1 uint32
	Signature2 uint32
	Version    uint32

	Header      *Header
	InnerHeader *InnerHeader
	Root        *xmltree.Node
}

// Open reads a database from r.  The whole stream is consumed,
// including the terminating block, so that trailing corruption is
// reported.  Every error returned is an *Error.
func Open(r io.Reader, opts *Options) (*Database, error) {
	composite, err := kdbcrypt.CompositeKey(opts.getPasswordHash(), opts.getKeyFileHash())
	if err != nil {
		return nil, &Error{Kind: ValidationError, Err: ErrNoCredentials}
	}
	defer zero(composite)

	db, raw, err := readHeader(r, opts.getMaxHeaderSize())
	if err != nil {
		return nil, err
	}
	if err := checkKDFCost(db.Header.KDF, opts.getMaxKDFMemory()); err != nil {
		return nil, err
	}
	tk, err := db.Header.KDF.Derive(composite)
	if err != nil {
		return nil, &Error{Kind: kdfErrorKind(err), Field: fieldKDFParameters, Err: err}
	}
	keys := kdbcrypt.Schedule(db.Header.MasterSeed, tk)
	zero(tk)
	defer keys.Zero()

	var sum [sha256.Size]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return nil, streamError("header hash", err)
	}
	if kdbcrypt.HeaderHash(raw) != sum {
		return nil, &Error{Kind: IntegrityError, Err: ErrHeaderHash}
	}
	var mac [sha256.Size]byte
	if _, err := io.ReadFull(r, mac[:]); err != nil {
		return nil, streamError("header MAC", err)
	}
	if !hmac.Equal(mac[:], kdbcrypt.HeaderMAC(keys.HMAC[:], raw)) {
		return nil, &Error{Kind: CredentialsError, Err: ErrBadCredentials}
	}

	payload, err := kdbcrypt.NewDecrypter(hmacblock.NewReader(r, keys.HMAC[:]), db.Header.Cipher, keys.Cipher[:], db.Header.EncryptionIV)
	if err != nil {
		return nil, &Error{Kind: UnsupportedError, Field: fieldCipher, Err: err}
	}
	if err := readPayload(db, payload, opts); err != nil {
		return nil, err
	}
	return db, nil
}

// readPayload decodes the decrypted payload into db and then drains it,
// so that the MACs of any remaining blocks and the padding are checked.
func readPayload(db *Database, payload io.Reader, opts *Options) error {
	zr, err := kdbcrypt.NewDecompressor(payload, db.Header.Compression)
	if err != nil {
		return streamError("payload", err)
	}
	db.InnerHeader, err = readInnerHeader(binio.NewReader(zr))
	if err != nil {
		return err
	}
	stream, err := kdbcrypt.NewInnerStream(db.InnerHeader.StreamID, db.InnerHeader.StreamKey)
	if err != nil {
		return &Error{Kind: ValidationError, Field: fieldStreamID, Err: err}
	}
	db.Root, err = xmltree.Decode(zr)
	if err != nil {
		return streamError("document", err)
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return streamError("payload", err)
	}
	if err := zr.Close(); err != nil {
		return streamError("payload", err)
	}
	if _, err := io.Copy(io.Discard, payload); err != nil {
		return streamError("payload", err)
	}
	if opts.revealProtected() {
		if err := revealProtected(db.Root, stream); err != nil {
			return err
		}
	}
	return nil
}

// revealProtected replaces the text of every element marked
// Protected="True" with its plaintext.  Values are unmasked in document
// order, which is the order the key stream was consumed when writing.
func revealProtected(root *xmltree.Node, s *kdbcrypt.InnerStream) error {
	return root.Walk(func(n *xmltree.Node) error {
		if v, ok := n.Attr("Protected"); !ok || v != "True" {
			return nil
		}
		text, ok := n.Value.(xmltree.Text)
		if !ok {
			return nil
		}
		b, err := base64.StdEncoding.DecodeString(string(text))
		if err != nil {
			return &Error{Kind: FormatError, Field: "protected value " + n.Name, Err: err}
		}
		s.Unmask(b)
		n.Value = xmltree.Text(b)
		return nil
	})
}

func checkKDFCost(k kdf.KDF, maxKiB uint32) error {
	a, ok := k.(*kdf.Argon2)
	if !ok || maxKiB == 0 || a.AllocatedKiB() <= uint64(maxKiB) {
		return nil
	}
	return &Error{Kind: UnsupportedError, Field: fieldKDFParameters, Err: ErrKDFMemory}
}

// streamError classifies a failure while reading the stream.
func streamError(field string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := FormatError
	if errors.Is(err, hmacblock.ErrMAC) {
		kind = BlockIntegrityError
	}
	return &Error{Kind: kind, Field: field, Err: err}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
