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

// Package argon2 implements the Argon2 memory-hard hash in all three
// modes and both published versions.  KeePass databases are commonly
// protected with Argon2d, which golang.org/x/crypto/argon2 does not
// expose, and older databases use version 0x10.
package argon2 // import "zombiezen.com/go/kdbxread/pkg/argon2"

import (
	"encoding/binary"
	"math"
	"runtime"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Mode selects how reference blocks are chosen.
type Mode uint32

// Modes.
const (
	Argon2d  Mode = 0
	Argon2i  Mode = 1
	Argon2id Mode = 2
)

func (m Mode) String() string {
	switch m {
	case Argon2d:
		return "Argon2d"
	case Argon2i:
		return "Argon2i"
	case Argon2id:
		return "Argon2id"
	default:
		return "Argon2(unknown)"
	}
}

// Version is the algorithm revision.
type Version uint32

// Versions.  Version10 overwrites blocks on every pass; Version13 XORs
// the new block into the old one after the first pass.
const (
	Version10 Version = 0x10
	Version13 Version = 0x13
)

const (
	syncPoints = 4
	blockWords = 128
	blockSize  = blockWords * 8
)

type block [blockWords]uint64

// Config holds the full set of Argon2 inputs besides the password and salt.
type Config struct {
	Mode    Mode
	Version Version
	Time    uint32 // passes over memory
	Memory  uint32 // KiB
	Threads uint32 // lanes

	Secret         []byte
	AssociatedData []byte
}

// Key derives a keyLen-byte key.  time and threads must be at least 1.
func Key(mode Mode, version Version, password, salt []byte, time, memory, threads, keyLen uint32) []byte {
	c := &Config{
		Mode:    mode,
		Version: version,
		Time:    time,
		Memory:  memory,
		Threads: threads,
	}
	return c.Key(password, salt, keyLen)
}

// Key derives a keyLen-byte key using the parameters in c.  Key panics if
// c.Time or c.Threads is zero.
func (c *Config) Key(password, salt []byte, keyLen uint32) []byte {
	if c.Time == 0 {
		panic("argon2: time must be at least 1")
	}
	if c.Threads == 0 {
		panic("argon2: threads must be at least 1")
	}
	h0 := c.prehash(password, salt, keyLen)

	blocks := AllocatedKiB(c.Memory, c.Threads)
	if blocks > math.MaxUint32 {
		panic("argon2: too many threads")
	}
	lanes := c.Threads
	memory := uint32(blocks)
	s := &state{
		mode:    c.Mode,
		version: c.Version,
		time:    c.Time,
		memory:  memory,
		lanes:   lanes,
		laneLen: memory / lanes,
		segLen:  memory / lanes / syncPoints,
		b:       make([]block, memory),
	}
	s.init(&h0)
	s.fill()
	return s.final(keyLen)
}

// AllocatedKiB returns the memory in KiB that Key allocates for the given
// memory cost and thread count.  The cost is rounded down to a multiple
// of 4*threads with a floor of 8*threads, so it can exceed memory.
func AllocatedKiB(memory, threads uint32) uint64 {
	lanes := uint64(threads)
	if lanes == 0 {
		return uint64(memory)
	}
	m := uint64(memory) / (syncPoints * lanes) * (syncPoints * lanes)
	if m < 2*syncPoints*lanes {
		m = 2 * syncPoints * lanes
	}
	return m
}

func (c *Config) prehash(password, salt []byte, keyLen uint32) [blake2b.Size + 8]byte {
	h, _ := blake2b.New512(nil)
	var buf [4]byte
	putUint32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	putBytes := func(b []byte) {
		putUint32(uint32(len(b)))
		h.Write(b)
	}
	putUint32(c.Threads)
	putUint32(keyLen)
	putUint32(c.Memory)
	putUint32(c.Time)
	putUint32(uint32(c.Version))
	putUint32(uint32(c.Mode))
	putBytes(password)
	putBytes(salt)
	putBytes(c.Secret)
	putBytes(c.AssociatedData)

	var h0 [blake2b.Size + 8]byte
	h.Sum(h0[:0])
	return h0
}

type state struct {
	mode    Mode
	version Version
	time    uint32
	memory  uint32
	lanes   uint32
	laneLen uint32
	segLen  uint32
	b       []block
}

func (s *state) init(h0 *[blake2b.Size + 8]byte) {
	var buf [blockSize]byte
	for lane := uint32(0); lane < s.lanes; lane++ {
		binary.LittleEndian.PutUint32(h0[blake2b.Size+4:], lane)
		for i := uint32(0); i < 2; i++ {
			binary.LittleEndian.PutUint32(h0[blake2b.Size:], i)
			hashLong(buf[:], h0[:])
			dst := &s.b[lane*s.laneLen+i]
			for j := range dst {
				dst[j] = binary.LittleEndian.Uint64(buf[j*8:])
			}
		}
	}
}

// fill runs every pass.  Segments in the same slice are independent and
// are computed concurrently, bounded by GOMAXPROCS.
func (s *state) fill() {
	workers := runtime.GOMAXPROCS(0)
	if uint32(workers) > s.lanes {
		workers = int(s.lanes)
	}
	sem := make(chan struct{}, workers)
	for pass := uint32(0); pass < s.time; pass++ {
		for slice := uint32(0); slice < syncPoints; slice++ {
			var wg sync.WaitGroup
			for lane := uint32(0); lane < s.lanes; lane++ {
				wg.Add(1)
				sem <- struct{}{}
				go func(lane uint32) {
					defer wg.Done()
					s.segment(pass, slice, lane)
					<-sem
				}(lane)
			}
			wg.Wait()
		}
	}
}

func (s *state) independent(pass, slice uint32) bool {
	return s.mode == Argon2i || (s.mode == Argon2id && pass == 0 && slice < syncPoints/2)
}

func (s *state) segment(pass, slice, lane uint32) {
	var addr, input, zero block
	indep := s.independent(pass, slice)
	if indep {
		input[0] = uint64(pass)
		input[1] = uint64(lane)
		input[2] = uint64(slice)
		input[3] = uint64(s.memory)
		input[4] = uint64(s.time)
		input[5] = uint64(s.mode)
	}
	nextAddresses := func() {
		input[6]++
		compress(&addr, &input, &zero, false)
		compress(&addr, &addr, &zero, false)
	}

	start := uint32(0)
	if pass == 0 && slice == 0 {
		// The first two blocks of each lane come from init.
		start = 2
		if indep {
			nextAddresses()
		}
	}
	xor := s.version == Version13 && pass > 0
	offset := lane*s.laneLen + slice*s.segLen + start
	for i := start; i < s.segLen; i, offset = i+1, offset+1 {
		prev := offset - 1
		if i == 0 && slice == 0 {
			prev += s.laneLen
		}
		var rand uint64
		if indep {
			if i%blockWords == 0 {
				nextAddresses()
			}
			rand = addr[i%blockWords]
		} else {
			rand = s.b[prev][0]
		}
		ref := s.refIndex(rand, pass, slice, lane, i)
		compress(&s.b[offset], &s.b[prev], &s.b[ref], xor)
	}
}

// refIndex maps a pseudo-random value to the absolute index of the
// reference block for position i of the given segment.
func (s *state) refIndex(rand uint64, pass, slice, lane, i uint32) uint32 {
	refLane := uint32(rand>>32) % s.lanes
	if pass == 0 && slice == 0 {
		refLane = lane
	}
	sameLane := refLane == lane

	// area is the number of blocks that may be referenced; start is
	// where that window begins within the reference lane.
	var area, start uint32
	if pass == 0 {
		area = slice * s.segLen
	} else {
		area = s.laneLen - s.segLen
		start = ((slice + 1) % syncPoints) * s.segLen
	}
	if sameLane {
		area += i
	}
	if sameLane || i == 0 {
		area--
	}

	x := rand & 0xffffffff
	x = x * x >> 32
	rel := uint64(area) - 1 - (uint64(area) * x >> 32)
	return refLane*s.laneLen + uint32((uint64(start)+rel)%uint64(s.laneLen))
}

func (s *state) final(keyLen uint32) []byte {
	last := &s.b[s.memory-1]
	for lane := uint32(0); lane+1 < s.lanes; lane++ {
		for i, v := range s.b[lane*s.laneLen+s.laneLen-1] {
			last[i] ^= v
		}
	}
	var buf [blockSize]byte
	for i, v := range last {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	out := make([]byte, keyLen)
	hashLong(out, buf[:])
	return out
}

// hashLong is the variable-length hash H' built from BLAKE2b.
func hashLong(out, in []byte) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(out)))
	if len(out) <= blake2b.Size {
		h, _ := blake2b.New(len(out), nil)
		h.Write(prefix[:])
		h.Write(in)
		h.Sum(out[:0])
		return
	}

	h, _ := blake2b.New512(nil)
	h.Write(prefix[:])
	h.Write(in)
	var v [blake2b.Size]byte
	h.Sum(v[:0])
	n := copy(out, v[:32])
	for len(out)-n > blake2b.Size {
		v = blake2b.Sum512(v[:])
		n += copy(out[n:], v[:32])
	}
	h, _ = blake2b.New(len(out)-n, nil)
	h.Write(v[:])
	h.Sum(out[n:n])
}

// compress computes G(x, y) and stores it in dst, XORing it into the
// existing contents when xor is set.  dst may alias x or y.
func compress(dst, x, y *block, xor bool) {
	var r, q block
	for i := range r {
		r[i] = x[i] ^ y[i]
	}
	q = r
	for i := 0; i < blockWords; i += 16 {
		permute(&q, i, i+1, i+2, i+3, i+4, i+5, i+6, i+7, i+8, i+9, i+10, i+11, i+12, i+13, i+14, i+15)
	}
	for i := 0; i < 16; i += 2 {
		permute(&q, i, i+1, 16+i, 17+i, 32+i, 33+i, 48+i, 49+i, 64+i, 65+i, 80+i, 81+i, 96+i, 97+i, 112+i, 113+i)
	}
	if xor {
		for i := range dst {
			dst[i] ^= q[i] ^ r[i]
		}
		return
	}
	for i := range dst {
		dst[i] = q[i] ^ r[i]
	}
}

// permute applies the BLAKE2b round function, with the multiplication
// hardening of Argon2, to the 16 words at the given indices.
func permute(b *block, i0, i1, i2, i3, i4, i5, i6, i7, i8, i9, i10, i11, i12, i13, i14, i15 int) {
	v := [16]uint64{
		b[i0], b[i1], b[i2], b[i3], b[i4], b[i5], b[i6], b[i7],
		b[i8], b[i9], b[i10], b[i11], b[i12], b[i13], b[i14], b[i15],
	}
	mix(&v, 0, 4, 8, 12)
	mix(&v, 1, 5, 9, 13)
	mix(&v, 2, 6, 10, 14)
	mix(&v, 3, 7, 11, 15)
	mix(&v, 0, 5, 10, 15)
	mix(&v, 1, 6, 11, 12)
	mix(&v, 2, 7, 8, 13)
	mix(&v, 3, 4, 9, 14)
	b[i0], b[i1], b[i2], b[i3], b[i4], b[i5], b[i6], b[i7] = v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]
	b[i8], b[i9], b[i10], b[i11], b[i12], b[i13], b[i14], b[i15] = v[8], v[9], v[10], v[11], v[12], v[13], v[14], v[15]
}

func mix(v *[16]uint64, a, b, c, d int) {
	v[a] = fBlaMka(v[a], v[b])
	v[d] = rotr(v[d]^v[a], 32)
	v[c] = fBlaMka(v[c], v[d])
	v[b] = rotr(v[b]^v[c], 24)
	v[a] = fBlaMka(v[a], v[b])
	v[d] = rotr(v[d]^v[a], 16)
	v[c] = fBlaMka(v[c], v[d])
	v[b] = rotr(v[b]^v[c], 63)
}

func fBlaMka(x, y uint64) uint64 {
	return x + y + 2*uint64(uint32(x))*uint64(uint32(y))
}

func rotr(x uint64, n uint) uint64 {
	return x>>n | x<<(64-n)
}
