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

// Package kdbxtest builds KDBX 4 files for tests.  Its output is
// deterministic, and any header field can be replaced to produce files
// that readers must reject.
package kdbxtest // import "zombiezen.com/go/kdbxread/internal/kdbxtest"

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/binio"
	"zombiezen.com/go/kdbxread/pkg/fakerand"
	"zombiezen.com/go/kdbxread/pkg/hmacblock"
	"zombiezen.com/go/kdbxread/pkg/kdbcrypt"
	"zombiezen.com/go/kdbxread/pkg/kdf"
	"zombiezen.com/go/kdbxread/pkg/variant"
)

// File signatures.
const (
	Signature1 uint32 = 0x9aa2d903
	Signature2 uint32 = 0xb54bfb67
	Version41  uint32 = 0x00040001
)

// Outer header tags.
const (
	TagEnd              byte = 0
	TagComment          byte = 1
	TagCipherID         byte = 2
	TagCompression      byte = 3
	TagMasterSeed       byte = 4
	TagEncryptionIV     byte = 7
	TagKDFParameters    byte = 11
	TagPublicCustomData byte = 12
)

// Inner header tags.
const (
	InnerTagEnd       byte = 0
	InnerTagStreamID  byte = 1
	InnerTagStreamKey byte = 2
	InnerTagBinary    byte = 3
)

// A Field is a raw tag-length-value header field.
type Field struct {
	Tag   byte
	Value []byte
}

// Binary is an attachment written to the inner header.
type Binary struct {
	Protected bool
	Data      []byte
}

// Fixture describes a database.  Fields and InnerFields replace the
// generated header fields when non-nil.  Keys always come from KDF,
// MasterSeed, and IV, whatever Fields says.
type Fixture struct {
	Password    string
	Signature2  uint32
	Version     uint32
	Cipher      kdbcrypt.Cipher
	Compression kdbcrypt.Compression
	KDF         kdf.KDF
	MasterSeed  []byte
	IV          []byte
	StreamKey   []byte
	Binaries    []Binary
	XML         string
	BlockSize   int

	Fields      []Field
	InnerFields []Field
}

// New returns an AES-256, gzip-compressed database protected by a cheap
// AES-KDF, with a document holding one entry whose password is protected.
func New() *Fixture {
	rng := fakerand.New()
	k, err := kdf.NewAES(fakerand.Bytes(rng, 32), 10)
	if err != nil {
		panic(err)
	}
	f := &Fixture{
		Password:    "swordfish",
		Signature2:  Signature2,
		Version:     Version41,
		Cipher:      kdbcrypt.AES256,
		Compression: kdbcrypt.GZip,
		KDF:         k,
		MasterSeed:  fakerand.Bytes(rng, 32),
		IV:          fakerand.Bytes(rng, 16),
		StreamKey:   fakerand.Bytes(rng, 64),
		Binaries: []Binary{
			{Protected: true, Data: []byte("attachment")},
			{Protected: false, Data: []byte{}},
		},
		BlockSize: 64,
	}
	f.XML = Document(Entry{
		UUID:     "AAECAwQFBgcICQoLDA0ODw==",
		Title:    "Example",
		UserName: "gopher",
		URL:      "https://example.com/login",
		Password: f.Mask("hunter2")[0],
	})
	return f
}

// An Entry is the content of an <Entry> element written by Document.
// Password must already be masked.
type Entry struct {
	UUID     string
	Title    string
	UserName string
	URL      string
	Password string
}

// Document returns a KeePass XML document with the entries in a single
// group.
func Document(entries ...Entry) string {
	sb := new(bytes.Buffer)
	sb.WriteString(`<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<KeePassFile>
	<Meta>
		<Generator>kdbxread</Generator>
	</Meta>
	<Root>
		<Group>
			<Name>General</Name>
`)
	for _, e := range entries {
		sb.WriteString("\t\t\t<Entry>\n\t\t\t\t<UUID>" + e.UUID + "</UUID>\n")
		writeString(sb, "Title", e.Title, false)
		writeString(sb, "UserName", e.UserName, false)
		writeString(sb, "URL", e.URL, false)
		writeString(sb, "Password", e.Password, true)
		sb.WriteString("\t\t\t</Entry>\n")
	}
	sb.WriteString("\t\t</Group>\n\t</Root>\n</KeePassFile>\n")
	return sb.String()
}

func writeString(sb *bytes.Buffer, key, value string, protected bool) {
	attr := ""
	if protected {
		attr = ` Protected="True"`
	}
	sb.WriteString("\t\t\t\t<String><Key>" + key + "</Key><Value" + attr + ">" + value + "</Value></String>\n")
}

// Mask encrypts values with the fixture's inner stream in order and
// returns them base64-encoded.
func (f *Fixture) Mask(values ...string) []string {
	s, err := kdbcrypt.NewInnerStream(kdbcrypt.InnerStreamChaCha20, f.StreamKey)
	if err != nil {
		panic(err)
	}
	out := make([]string, len(values))
	for i, v := range values {
		b := []byte(v)
		s.Unmask(b)
		out[i] = base64.StdEncoding.EncodeToString(b)
	}
	return out
}

// DefaultFields returns the outer header fields written when Fields is nil.
func (f *Fixture) DefaultFields() []Field {
	cipherID := f.Cipher.UUID()
	return []Field{
		{Tag: TagCipherID, Value: cipherID[:]},
		{Tag: TagCompression, Value: binio.Uint32Bytes(uint32(f.Compression))},
		{Tag: TagMasterSeed, Value: f.MasterSeed},
		{Tag: TagEncryptionIV, Value: f.IV},
		{Tag: TagKDFParameters, Value: variant.Encode(f.KDF.Params())},
	}
}

// DefaultInnerFields returns the inner header fields written when
// InnerFields is nil.
func (f *Fixture) DefaultInnerFields() []Field {
	fields := []Field{
		{Tag: InnerTagStreamID, Value: binio.Uint32Bytes(kdbcrypt.InnerStreamChaCha20)},
		{Tag: InnerTagStreamKey, Value: f.StreamKey},
	}
	for _, b := range f.Binaries {
		var flags byte
		if b.Protected {
			flags = 1
		}
		fields = append(fields, Field{Tag: InnerTagBinary, Value: append([]byte{flags}, b.Data...)})
	}
	return fields
}

func writeFields(w *binio.Writer, fields []Field, end byte) {
	for _, fld := range fields {
		w.Byte(fld.Tag)
		w.Prefixed(fld.Value)
	}
	w.Byte(end)
	w.Prefixed([]byte("\r\n\r\n"))
}

// Header returns the raw outer header, from the signatures through the
// end field.
func (f *Fixture) Header() []byte {
	buf := new(bytes.Buffer)
	w := binio.NewWriter(buf)
	w.Uint32(Signature1)
	w.Uint32(f.Signature2)
	w.Uint32(f.Version)
	fields := f.Fields
	if fields == nil {
		fields = f.DefaultFields()
	}
	writeFields(w, fields, TagEnd)
	return buf.Bytes()
}

// Encode returns the database file.
func (f *Fixture) Encode() ([]byte, error) {
	raw := f.Header()
	pw := sha256.Sum256([]byte(f.Password))
	composite, err := kdbcrypt.CompositeKey(pw[:], nil)
	if err != nil {
		return nil, err
	}
	tk, err := f.KDF.Derive(composite)
	if err != nil {
		return nil, errors.Wrap(err, "kdbxtest: derive")
	}
	keys := kdbcrypt.Schedule(f.MasterSeed, tk)

	out := new(bytes.Buffer)
	out.Write(raw)
	sum := kdbcrypt.HeaderHash(raw)
	out.Write(sum[:])
	out.Write(kdbcrypt.HeaderMAC(keys.HMAC[:], raw))

	bw := hmacblock.NewWriter(out, keys.HMAC[:], f.BlockSize)
	ew, err := kdbcrypt.NewEncrypter(bw, f.Cipher, keys.Cipher[:], f.IV)
	if err != nil {
		return nil, errors.Wrap(err, "kdbxtest")
	}
	cw, err := kdbcrypt.NewCompressor(ew, f.Compression)
	if err != nil {
		return nil, errors.Wrap(err, "kdbxtest")
	}
	inner := f.InnerFields
	if inner == nil {
		inner = f.DefaultInnerFields()
	}
	iw := binio.NewWriter(cw)
	writeFields(iw, inner, InnerTagEnd)
	iw.Write([]byte(f.XML))
	if err := iw.Err(); err != nil {
		return nil, errors.Wrap(err, "kdbxtest: write payload")
	}
	for _, c := range []io.Closer{cw, ew, bw} {
		if err := c.Close(); err != nil {
			return nil, errors.Wrap(err, "kdbxtest: close")
		}
	}
	return out.Bytes(), nil
}

// Replace returns a copy of fields with every field tagged fld.Tag
// replaced by fld.
func Replace(fields []Field, fld Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Tag == fld.Tag {
			f = fld
		}
		out[i] = f
	}
	return out
}

// Remove returns a copy of fields without those tagged tag.
func Remove(fields []Field, tag byte) []Field {
	var out []Field
	for _, f := range fields {
		if f.Tag != tag {
			out = append(out, f)
		}
	}
	return out
}
