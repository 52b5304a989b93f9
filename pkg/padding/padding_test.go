// Copyright 2016 The Sandpass Authors
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

package padding

import (
	"bytes"
	"crypto/aes"
	"testing"
)

var pkcs7Tests = []struct {
	name      string
	blockSize int
	unpadded  []byte
	padded    []byte
}{
	{"Empty", 3, []byte{}, []byte{3, 3, 3}},
	{"OneShort", 3, []byte{'A', 'd'}, []byte{'A', 'd', 1}},
	{"TwoShort", 3, []byte{'A'}, []byte{'A', 2, 2}},
	{"Aligned", 3, []byte{'A', 'd', '*'}, []byte{'A', 'd', '*', 3, 3, 3}},
	{"SecondBlock", 3, []byte{'A', 'd', '*', 'w', 0xee}, []byte{'A', 'd', '*', 'w', 0xee, 1}},
	{"PadLikeData", 4, []byte{'A', 5, 2, 3, 3}, []byte{'A', 5, 2, 3, 3, 3, 3, 3}},
	{"MaxBlock", 255, []byte{}, bytes.Repeat([]byte{255}, 255)},
	{"AES", aes.BlockSize, []byte("kdbx payload"), append([]byte("kdbx payload"), 4, 4, 4, 4)},
	{"AESAligned", aes.BlockSize, bytes.Repeat([]byte{'x'}, 16), append(bytes.Repeat([]byte{'x'}, 16), bytes.Repeat([]byte{16}, 16)...)},
}

func TestPKCS7_Pad(t *testing.T) {
	for _, test := range pkcs7Tests {
		fitted := append([]byte(nil), test.unpadded...)
		if out := PKCS7.Pad(fitted, test.blockSize); !bytes.Equal(out, test.padded) {
			t.Errorf("%s: PKCS7.Pad(%v, %d) = %v; want %v", test.name, test.unpadded, test.blockSize, out, test.padded)
		}
		roomy := make([]byte, len(test.unpadded), len(test.padded))
		copy(roomy, test.unpadded)
		out := PKCS7.Pad(roomy, test.blockSize)
		if !bytes.Equal(out, test.padded) {
			t.Errorf("%s: PKCS7.Pad with spare capacity = %v; want %v", test.name, out, test.padded)
		}
		if len(out) > 0 && &out[0] != &roomy[:1][0] {
			t.Errorf("%s: PKCS7.Pad reallocated a buffer with enough capacity", test.name)
		}
	}
}

func TestPKCS7_PadPanics(t *testing.T) {
	for _, bs := range []int{0, 1, 256} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("PKCS7.Pad(nil, %d) did not panic", bs)
				}
			}()
			PKCS7.Pad(nil, bs)
		}()
	}
}

func TestPKCS7_Strip(t *testing.T) {
	for _, test := range pkcs7Tests {
		b := append([]byte(nil), test.padded...)
		out, err := PKCS7.Strip(b, test.blockSize)
		if err != nil {
			t.Errorf("%s: PKCS7.Strip(%v, %d) error: %v", test.name, test.padded, test.blockSize, err)
			continue
		}
		if !bytes.Equal(out, test.unpadded) {
			t.Errorf("%s: PKCS7.Strip(%v, %d) = %v; want %v", test.name, test.padded, test.blockSize, out, test.unpadded)
		}
		if len(out) > 0 && &out[0] != &b[0] {
			t.Errorf("%s: PKCS7.Strip result is not a prefix of its input", test.name)
		}
	}
}

func TestPKCS7_StripErrors(t *testing.T) {
	tests := []struct {
		name      string
		blockSize int
		padded    []byte
		err       error
	}{
		{"ZeroBlockSize", 0, []byte{}, ErrBadBlockSize},
		{"OneByteBlock", 1, []byte{1}, ErrBadBlockSize},
		{"HugeBlock", 256, make([]byte, 256), ErrBadBlockSize},
		{"Empty", 16, []byte{}, ErrDataSize},
		{"PartialBlock", 3, []byte{2, 2}, ErrDataSize},
		{"ShortRun", 3, []byte{'A', 3, 3}, ErrWrongPadding},
		{"ZeroPad", 3, []byte{'A', 2, 0}, ErrWrongPadding},
		{"PadLongerThanBlock", 3, []byte{4, 4, 4}, ErrWrongPadding},
		{"PadSpansBlocks", 3, []byte{0, 0, 4, 4, 4, 4}, ErrWrongPadding},
		{"GapInRun", 4, []byte{'A', 3, 2, 3}, ErrWrongPadding},
	}
	for _, test := range tests {
		b := append([]byte(nil), test.padded...)
		out, err := PKCS7.Strip(b, test.blockSize)
		if err != test.err {
			t.Errorf("%s: PKCS7.Strip(%v, %d) error = %v; want %v", test.name, test.padded, test.blockSize, err, test.err)
		}
		if !bytes.Equal(out, test.padded) {
			t.Errorf("%s: PKCS7.Strip(%v, %d) = %v; want input unchanged", test.name, test.padded, test.blockSize, out)
		}
	}
}

// Every final byte value and every corrupted position in an AES block.
func TestPKCS7_StripExhaustive(t *testing.T) {
	const bs = aes.BlockSize
	for n := 1; n <= bs; n++ {
		good := PKCS7.Pad(bytes.Repeat([]byte{0xaa}, 2*bs-n), bs)
		if out, err := PKCS7.Strip(good, bs); err != nil || len(out) != 2*bs-n {
			t.Errorf("Strip(%d bytes of padding) = %d bytes, %v; want %d bytes", n, len(out), err, 2*bs-n)
		}
		for i := len(good) - n; i < len(good)-1; i++ {
			b := append([]byte(nil), good...)
			b[i] ^= 0x80
			if _, err := PKCS7.Strip(b, bs); err != ErrWrongPadding {
				t.Errorf("Strip(%d bytes of padding, byte %d flipped) error = %v; want ErrWrongPadding", n, i, err)
			}
		}
	}
	for last := bs + 1; last < 256; last++ {
		b := bytes.Repeat([]byte{byte(last)}, bs)
		if _, err := PKCS7.Strip(b, bs); err != ErrWrongPadding {
			t.Errorf("Strip(final byte %d) error = %v; want ErrWrongPadding", last, err)
		}
	}
}
