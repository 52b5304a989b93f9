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

// Package variant decodes and encodes KDBX variant dictionaries: small
// versioned maps of names to type-tagged values, used for key
// derivation parameters and custom header data.
//
// The encoding is a little-endian uint16 version followed by entries of
//
//	type     1 byte
//	name     int32 length, UTF-8 bytes
//	value    int32 length, bytes
//
// and ends with a single zero type byte.
package variant // import "zombiezen.com/go/kdbxread/pkg/variant"

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/binio"
)

// Version is the dictionary version written by Encode.
const Version uint16 = 0x0100

const versionCriticalMask = 0xff00

// Type is a value type tag.
type Type byte

// Value types.
const (
	End    Type = 0x00
	Uint32 Type = 0x04
	Uint64 Type = 0x05
	Bool   Type = 0x08
	Int32  Type = 0x0c
	Int64  Type = 0x0d
	String Type = 0x18
	Bytes  Type = 0x42
)

// size returns the exact encoded size of fixed-width types or -1.
func (t Type) size() int {
	switch t {
	case Bool:
		return 1
	case Uint32, Int32:
		return 4
	case Uint64, Int64:
		return 8
	case String, Bytes:
		return -1
	default:
		return -2
	}
}

func (t Type) String() string {
	switch t {
	case End:
		return "end"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("Type(%#02x)", byte(t))
	}
}

// A Value is a single typed dictionary value.  The Go type of Data is
// determined by Type: bool, uint32, uint64, int32, int64, string or
// []byte.
type Value struct {
	Type Type
	Data interface{}
}

// An Entry is a named value.
type Entry struct {
	Name string
	Value
}

// A Map is an immutable ordered dictionary.  The zero value is empty.
type Map struct {
	entries []Entry
	index   map[string]int
}

// Len returns the number of distinct names in the map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the entries in encoding order.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	e := make([]Entry, len(m.entries))
	copy(e, m.entries)
	return e
}

// Lookup returns the value stored under name.
func (m *Map) Lookup(name string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[name]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].Value, true
}

func (m *Map) set(name string, v Value) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[name]; ok {
		m.entries[i].Value = v
		return
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, Entry{Name: name, Value: v})
}

func (m *Map) typed(name string, t Type) (interface{}, bool, error) {
	v, ok := m.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	if v.Type != t {
		return nil, true, &TypeError{Name: name, Type: v.Type, Want: t}
	}
	return v.Data, true, nil
}

func (m *Map) required(name string, t Type) (interface{}, error) {
	d, ok, err := m.typed(name, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &MissingError{Name: name}
	}
	return d, nil
}

// Bool returns the boolean stored under name.  ok is false if the name
// is absent; err is non-nil if it is present with another type.
func (m *Map) Bool(name string) (v bool, ok bool, err error) {
	d, ok, err := m.typed(name, Bool)
	if !ok || err != nil {
		return false, ok, err
	}
	return d.(bool), true, nil
}

// Uint32 returns the uint32 stored under name.
func (m *Map) Uint32(name string) (v uint32, ok bool, err error) {
	d, ok, err := m.typed(name, Uint32)
	if !ok || err != nil {
		return 0, ok, err
	}
	return d.(uint32), true, nil
}

// Uint64 returns the uint64 stored under name.
func (m *Map) Uint64(name string) (v uint64, ok bool, err error) {
	d, ok, err := m.typed(name, Uint64)
	if !ok || err != nil {
		return 0, ok, err
	}
	return d.(uint64), true, nil
}

// Int32 returns the int32 stored under name.
func (m *Map) Int32(name string) (v int32, ok bool, err error) {
	d, ok, err := m.typed(name, Int32)
	if !ok || err != nil {
		return 0, ok, err
	}
	return d.(int32), true, nil
}

// Int64 returns the int64 stored under name.
func (m *Map) Int64(name string) (v int64, ok bool, err error) {
	d, ok, err := m.typed(name, Int64)
	if !ok || err != nil {
		return 0, ok, err
	}
	return d.(int64), true, nil
}

// String returns the string stored under name.
func (m *Map) String(name string) (v string, ok bool, err error) {
	d, ok, err := m.typed(name, String)
	if !ok || err != nil {
		return "", ok, err
	}
	return d.(string), true, nil
}

// Bytes returns a copy of the byte string stored under name.
func (m *Map) Bytes(name string) (v []byte, ok bool, err error) {
	d, ok, err := m.typed(name, Bytes)
	if !ok || err != nil {
		return nil, ok, err
	}
	return append([]byte(nil), d.([]byte)...), true, nil
}

// RequireUint32 is like Uint32 but returns a *MissingError if name is absent.
func (m *Map) RequireUint32(name string) (uint32, error) {
	d, err := m.required(name, Uint32)
	if err != nil {
		return 0, err
	}
	return d.(uint32), nil
}

// RequireUint64 is like Uint64 but returns a *MissingError if name is absent.
func (m *Map) RequireUint64(name string) (uint64, error) {
	d, err := m.required(name, Uint64)
	if err != nil {
		return 0, err
	}
	return d.(uint64), nil
}

// RequireBytes is like Bytes but returns a *MissingError if name is absent.
func (m *Map) RequireBytes(name string) ([]byte, error) {
	d, err := m.required(name, Bytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), d.([]byte)...), nil
}

// RequireString is like String but returns a *MissingError if name is absent.
func (m *Map) RequireString(name string) (string, error) {
	d, err := m.required(name, String)
	if err != nil {
		return "", err
	}
	return d.(string), nil
}

// A Builder accumulates entries for a new Map.
type Builder struct {
	m Map
}

// Set stores a value.  data must be one of the Go types listed on Value
// and is converted to the corresponding Type.  Set panics otherwise.
func (b *Builder) Set(name string, data interface{}) *Builder {
	var t Type
	switch d := data.(type) {
	case bool:
		t = Bool
	case uint32:
		t = Uint32
	case uint64:
		t = Uint64
	case int32:
		t = Int32
	case int64:
		t = Int64
	case string:
		t = String
	case []byte:
		t = Bytes
		data = append([]byte(nil), d...)
	default:
		panic(fmt.Sprintf("variant: unsupported value type %T", data))
	}
	b.m.set(name, Value{Type: t, Data: data})
	return b
}

// Map returns the built map.  The builder may continue to be used.
func (b *Builder) Map() *Map {
	m := &Map{
		entries: make([]Entry, len(b.m.entries)),
		index:   make(map[string]int, len(b.m.index)),
	}
	copy(m.entries, b.m.entries)
	for k, v := range b.m.index {
		m.index[k] = v
	}
	return m
}

// Decode parses an encoded dictionary.
func Decode(b []byte) (*Map, error) {
	r := binio.NewReader(bytes.NewReader(b))
	version := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, truncated(err)
	}
	if version&versionCriticalMask > Version&versionCriticalMask {
		return nil, &VersionError{Version: version}
	}
	m := new(Map)
	for {
		t := Type(r.Byte())
		if err := r.Err(); err != nil {
			return nil, truncated(err)
		}
		if t == End {
			return m, nil
		}
		want := t.size()
		if want == -2 {
			return nil, &UnknownTypeError{Type: t}
		}
		name := r.Bytes(int(r.Int32()))
		val := r.Bytes(int(r.Int32()))
		if err := r.Err(); err != nil {
			return nil, truncated(err)
		}
		if want >= 0 && len(val) != want {
			return nil, &SizeError{Name: string(name), Type: t, Size: len(val)}
		}
		if !utf8.Valid(name) {
			return nil, errors.Errorf("variant: entry name %q is not UTF-8", name)
		}
		m.set(string(name), Value{Type: t, Data: decodeValue(t, val)})
	}
}

func decodeValue(t Type, val []byte) interface{} {
	switch t {
	case Bool:
		return val[0] != 0
	case Uint32:
		return binary.LittleEndian.Uint32(val)
	case Int32:
		return int32(binary.LittleEndian.Uint32(val))
	case Uint64:
		return binary.LittleEndian.Uint64(val)
	case Int64:
		return int64(binary.LittleEndian.Uint64(val))
	case String:
		return string(val)
	default:
		return val
	}
}

func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Encode serializes m.  A nil map encodes as an empty dictionary.
func Encode(m *Map) []byte {
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	w.Uint16(Version)
	for _, e := range m.Entries() {
		w.Byte(byte(e.Type))
		w.Prefixed([]byte(e.Name))
		w.Prefixed(encodeValue(e.Value))
	}
	w.Byte(byte(End))
	return buf.Bytes()
}

func encodeValue(v Value) []byte {
	switch d := v.Data.(type) {
	case bool:
		if d {
			return []byte{1}
		}
		return []byte{0}
	case uint32:
		return binio.Uint32Bytes(d)
	case int32:
		return binio.Int32Bytes(d)
	case uint64:
		return binio.Int64Bytes(int64(d))
	case int64:
		return binio.Int64Bytes(d)
	case string:
		return []byte(d)
	default:
		return d.([]byte)
	}
}

// ErrVersion is matched by errors.Is for any *VersionError.
var ErrVersion = errors.New("variant: unsupported dictionary version")

// A VersionError is returned for dictionaries with an unsupported major version.
type VersionError struct {
	Version uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("variant: unsupported dictionary version %#04x", e.Version)
}

// Is reports whether target is ErrVersion.
func (e *VersionError) Is(target error) bool {
	return target == ErrVersion
}

// An UnknownTypeError is returned for an unrecognized value type tag.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("variant: unknown value type %#02x", byte(e.Type))
}

// A SizeError is returned when a fixed-width value has the wrong length.
type SizeError struct {
	Name string
	Type Type
	Size int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("variant: %s value %q is %d bytes, should be %d", e.Type, e.Name, e.Size, e.Type.size())
}

// A TypeError is returned when a value is present with an unexpected type.
type TypeError struct {
	Name string
	Type Type
	Want Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("variant: %q is %v, want %v", e.Name, e.Type, e.Want)
}

// A MissingError is returned by the Require methods when a name is absent.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("variant: missing required value %q", e.Name)
}
