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

import "crypto/sha256"

// DefaultMaxHeaderSize is the outer header limit used when
// Options.MaxHeaderSize is zero.
const DefaultMaxHeaderSize = 4 << 20

// Options is the set of parameters for opening a database.
// Nil is treated the same as the zero value, except that Open requires
// at least one credential.
type Options struct {
	// Password is an optional textual password.  Its SHA-256 hash is
	// used unless PasswordHash is set.
	Password string

	// PasswordHash is the SHA-256 hash of the password.
	PasswordHash []byte

	// KeyFileHash is the 32-byte key derived from a key file.
	KeyFileHash []byte

	// If RevealProtected is true, values stored with Protected="True"
	// are replaced by their plaintext in the returned tree.
	RevealProtected bool

	// MaxHeaderSize limits the size of the outer header in bytes.
	// If zero, DefaultMaxHeaderSize is used.
	MaxHeaderSize int

	// MaxKDFMemory limits the memory Argon2 allocates, in KiB.  This is
	// at least 8 KiB per lane, whatever the memory cost says.  Zero
	// means no limit.
	MaxKDFMemory uint32
}

func (opts *Options) getPasswordHash() []byte {
	if opts == nil {
		return nil
	}
	if len(opts.PasswordHash) > 0 {
		return opts.PasswordHash
	}
	if opts.Password == "" {
		return nil
	}
	h := sha256.Sum256([]byte(opts.Password))
	return h[:]
}

func (opts *Options) getKeyFileHash() []byte {
	if opts == nil {
		return nil
	}
	return opts.KeyFileHash
}

func (opts *Options) revealProtected() bool {
	return opts != nil && opts.RevealProtected
}

func (opts *Options) getMaxHeaderSize() int {
	if opts == nil || opts.MaxHeaderSize <= 0 {
		return DefaultMaxHeaderSize
	}
	return opts.MaxHeaderSize
}

func (opts *Options) getMaxKDFMemory() uint32 {
	if opts == nil {
		return 0
	}
	return opts.MaxKDFMemory
}
