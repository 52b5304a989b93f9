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

// Package kdf implements the key derivation functions that turn a
// KeePass composite key into a transformed key.
package kdf // import "zombiezen.com/go/kdbxread/pkg/kdf"

import (
	"crypto/aes"
	"crypto/sha256"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/argon2"
	"zombiezen.com/go/kdbxread/pkg/variant"
)

// Identifiers stored under the "$UUID" parameter.
var (
	AESKDBX4  = uuid.MustParse("c9d9f39a-628a-4460-bf74-0d08c18a4fea")
	AESLegacy = uuid.MustParse("7c02bb82-79a7-4ac0-927d-114a00648238")
	Argon2d   = uuid.MustParse("ef636ddf-8c29-444b-91f7-a9a403e30a0c")
	Argon2id  = uuid.MustParse("9e298b19-56db-4773-b23d-fc3ec6f0a1e6")
)

// Parameter names.
const (
	ParamUUID        = "$UUID"
	ParamSeed        = "S"
	ParamRounds      = "R"
	ParamSalt        = "S"
	ParamMemory      = "M"
	ParamIterations  = "I"
	ParamParallelism = "P"
	ParamVersion     = "V"
)

// KeySize is the length of every transformed key.
const KeySize = 32

// ErrUnsupported is returned by Derive for parameters that pass
// validation but can not be computed.
var ErrUnsupported = errors.New("kdf: unsupported parameters")

// A KDF derives a transformed key from a composite key.  The set of
// implementations is closed: *AES and *Argon2.
type KDF interface {
	Derive(key []byte) ([]byte, error)
	UUID() uuid.UUID
	Params() *variant.Map

	kdf()
}

// FromParams builds a KDF from a decoded parameter dictionary.  All
// parameters are validated before it returns.
func FromParams(m *variant.Map) (KDF, error) {
	raw, err := m.RequireBytes(ParamUUID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, &ParamError{Name: ParamUUID, Value: fmt.Sprintf("%d bytes", len(raw))}
	}
	switch id {
	case AESKDBX4, AESLegacy:
		k, err := aesFromParams(m)
		if err != nil {
			return nil, errors.Wrap(err, "AES-KDF")
		}
		k.id = id
		return k, nil
	case Argon2d, Argon2id:
		k, err := argon2FromParams(id, m)
		if err != nil {
			return nil, errors.Wrap(err, "Argon2")
		}
		return k, nil
	default:
		return nil, &UnknownError{UUID: id}
	}
}

// AES is the iterated AES-ECB key transform.
type AES struct {
	id     uuid.UUID
	seed   []byte
	rounds uint64
}

// NewAES returns an AES-KDF with the given seed and round count.  The
// seed must be 8 to 32 bytes and rounds must be in [1, 2^31-1].
func NewAES(seed []byte, rounds uint64) (*AES, error) {
	if len(seed) < 8 || len(seed) > 32 {
		return nil, &ParamError{Name: ParamSeed, Value: fmt.Sprintf("%d bytes", len(seed))}
	}
	if rounds < 1 || rounds > math.MaxInt32 {
		return nil, &ParamError{Name: ParamRounds, Value: fmt.Sprint(rounds)}
	}
	return &AES{
		id:     AESKDBX4,
		seed:   append([]byte(nil), seed...),
		rounds: rounds,
	}, nil
}

func aesFromParams(m *variant.Map) (*AES, error) {
	seed, err := m.RequireBytes(ParamSeed)
	if err != nil {
		return nil, err
	}
	rounds, err := m.RequireUint64(ParamRounds)
	if err != nil {
		return nil, err
	}
	return NewAES(seed, rounds)
}

func (*AES) kdf() {}

// UUID returns the identifier the parameters were read with.
func (k *AES) UUID() uuid.UUID { return k.id }

// Rounds returns the number of encryption rounds.
func (k *AES) Rounds() uint64 { return k.rounds }

// Params encodes the KDF as a parameter dictionary.
func (k *AES) Params() *variant.Map {
	return new(variant.Builder).
		Set(ParamUUID, k.id[:]).
		Set(ParamSeed, k.seed).
		Set(ParamRounds, k.rounds).
		Map()
}

// Derive encrypts each half of the 32-byte key with AES-ECB keyed by the
// seed, rounds times, then hashes the result with SHA-256.
func (k *AES) Derive(key []byte) ([]byte, error) {
	if len(key) != sha256.Size {
		return nil, errors.Errorf("kdf: AES-KDF input is %d bytes, want %d", len(key), sha256.Size)
	}
	switch len(k.seed) {
	case 16, 24, 32:
	default:
		return nil, errors.Wrapf(ErrUnsupported, "AES-KDF seed of %d bytes", len(k.seed))
	}
	c, err := aes.NewCipher(k.seed)
	if err != nil {
		return nil, err
	}
	var tk [sha256.Size]byte
	var wg sync.WaitGroup
	wg.Add(2)
	go transformKeyBlock(&wg, c, tk[:aes.BlockSize], key[:aes.BlockSize], k.rounds)
	go transformKeyBlock(&wg, c, tk[aes.BlockSize:], key[aes.BlockSize:], k.rounds)
	wg.Wait()
	out := sha256.Sum256(tk[:])
	return out[:], nil
}

type blockEncrypter interface {
	Encrypt(dst, src []byte)
}

// transformKeyBlock applies rounds of encryption to src and stores the result in dst.
func transformKeyBlock(wg *sync.WaitGroup, c blockEncrypter, dst, src []byte, rounds uint64) {
	dst = dst[:aes.BlockSize]
	copy(dst, src)
	for i := uint64(0); i < rounds; i++ {
		c.Encrypt(dst, dst)
	}
	wg.Done()
}

// Argon2 is the Argon2d (or Argon2id) memory-hard KDF.
type Argon2 struct {
	mode        argon2.Mode
	version     argon2.Version
	salt        []byte
	memoryKiB   uint32
	iterations  uint32
	parallelism uint32
	secret      []byte
	data        []byte
}

// Argon2Params are the tunable inputs to NewArgon2.
type Argon2Params struct {
	Mode        argon2.Mode // Argon2d or Argon2id
	Version     argon2.Version
	Salt        []byte
	MemoryKiB   uint64
	Iterations  uint64
	Parallelism uint32

	// Optional inputs, stored under "K" and "A".
	Secret         []byte
	AssociatedData []byte
}

// NewArgon2 validates p and returns the corresponding KDF.
func NewArgon2(p Argon2Params) (*Argon2, error) {
	switch p.Mode {
	case argon2.Argon2d, argon2.Argon2id:
	default:
		return nil, errors.Errorf("kdf: unsupported Argon2 mode %v", p.Mode)
	}
	if p.Version != argon2.Version10 && p.Version != argon2.Version13 {
		return nil, &ParamError{Name: ParamVersion, Value: fmt.Sprintf("%#x", uint32(p.Version))}
	}
	if len(p.Salt) < 8 || len(p.Salt) > 32 {
		return nil, &ParamError{Name: ParamSalt, Value: fmt.Sprintf("%d bytes", len(p.Salt))}
	}
	if p.MemoryKiB < 8 || p.MemoryKiB > math.MaxUint32 {
		return nil, &ParamError{Name: ParamMemory, Value: fmt.Sprintf("%d KiB", p.MemoryKiB)}
	}
	if p.Iterations < 1 || p.Iterations > math.MaxInt32 {
		return nil, &ParamError{Name: ParamIterations, Value: fmt.Sprint(p.Iterations)}
	}
	if p.Parallelism < 1 || p.Parallelism > 1<<24 {
		return nil, &ParamError{Name: ParamParallelism, Value: fmt.Sprint(p.Parallelism)}
	}
	return &Argon2{
		mode:        p.Mode,
		version:     p.Version,
		salt:        append([]byte(nil), p.Salt...),
		memoryKiB:   uint32(p.MemoryKiB),
		iterations:  uint32(p.Iterations),
		parallelism: p.Parallelism,
		secret:      append([]byte(nil), p.Secret...),
		data:        append([]byte(nil), p.AssociatedData...),
	}, nil
}

func argon2FromParams(id uuid.UUID, m *variant.Map) (*Argon2, error) {
	p := Argon2Params{Mode: argon2.Argon2d}
	if id == Argon2id {
		p.Mode = argon2.Argon2id
	}
	var err error
	if p.Salt, err = m.RequireBytes(ParamSalt); err != nil {
		return nil, err
	}
	mem, err := m.RequireUint64(ParamMemory)
	if err != nil {
		return nil, err
	}
	p.MemoryKiB = mem / 1024
	if p.Iterations, err = m.RequireUint64(ParamIterations); err != nil {
		return nil, err
	}
	if p.Parallelism, err = m.RequireUint32(ParamParallelism); err != nil {
		return nil, err
	}
	v, err := m.RequireUint32(ParamVersion)
	if err != nil {
		return nil, err
	}
	p.Version = argon2.Version(v)
	if p.Secret, _, err = m.Bytes("K"); err != nil {
		return nil, err
	}
	if p.AssociatedData, _, err = m.Bytes("A"); err != nil {
		return nil, err
	}
	return NewArgon2(p)
}

func (*Argon2) kdf() {}

// UUID returns the identifier for the KDF's mode.
func (k *Argon2) UUID() uuid.UUID {
	if k.mode == argon2.Argon2id {
		return Argon2id
	}
	return Argon2d
}

// MemoryKiB returns the memory cost in kibibytes.
func (k *Argon2) MemoryKiB() uint32 { return k.memoryKiB }

// Parallelism returns the number of lanes.
func (k *Argon2) Parallelism() uint32 { return k.parallelism }

// AllocatedKiB returns the memory Derive allocates, which grows with
// parallelism even when the memory cost is small.
func (k *Argon2) AllocatedKiB() uint64 {
	return argon2.AllocatedKiB(k.memoryKiB, k.parallelism)
}

// Params encodes the KDF as a parameter dictionary.
func (k *Argon2) Params() *variant.Map {
	id := k.UUID()
	b := new(variant.Builder).
		Set(ParamUUID, id[:]).
		Set(ParamSalt, k.salt).
		Set(ParamParallelism, k.parallelism).
		Set(ParamMemory, uint64(k.memoryKiB)*1024).
		Set(ParamIterations, uint64(k.iterations)).
		Set(ParamVersion, uint32(k.version))
	if len(k.secret) > 0 {
		b.Set("K", k.secret)
	}
	if len(k.data) > 0 {
		b.Set("A", k.data)
	}
	return b.Map()
}

// Derive runs Argon2 over key with the KDF's salt and cost parameters.
func (k *Argon2) Derive(key []byte) ([]byte, error) {
	c := &argon2.Config{
		Mode:           k.mode,
		Version:        k.version,
		Time:           k.iterations,
		Memory:         k.memoryKiB,
		Threads:        k.parallelism,
		Secret:         k.secret,
		AssociatedData: k.data,
	}
	return c.Key(key, k.salt, KeySize), nil
}

// A ParamError reports a parameter outside its permitted range.
type ParamError struct {
	Name  string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("kdf: parameter %s out of range (%s)", e.Name, e.Value)
}

// An UnknownError reports an unrecognized KDF identifier.
type UnknownError struct {
	UUID uuid.UUID
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("kdf: unknown KDF %v", e.UUID)
}
