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

// kdbxdump prints the XML document inside a KeePass KDBX 4 database.
//
//	kdbxdump [-keyfile-hash HEX] [-reveal] [-header] FILE
//
// The password is read from the terminal unless KDBXDUMP_PASSWORD is set.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/term"
	"zombiezen.com/go/kdbxread/pkg/kdbx"
	"zombiezen.com/go/kdbxread/pkg/kdf"
	"zombiezen.com/go/kdbxread/pkg/xmltree"
)

// passwordEnvVar overrides the password prompt.
const passwordEnvVar = "KDBXDUMP_PASSWORD"

var (
	keyFileHash  = flag.String("keyfile-hash", "", "hex-encoded 32-byte key file hash")
	reveal       = flag.Bool("reveal", false, "replace protected values with their plaintext")
	headerOnly   = flag.Bool("header", false, "print the outer header instead of the document")
	maxKDFMemory = flag.Uint("max_kdf_memory", 1<<20, "largest Argon2 memory cost to accept, in KiB (0 for no limit)")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("kdbxdump: ")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: kdbxdump [flags] FILE\n\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts := &kdbx.Options{
		RevealProtected: *reveal,
		MaxKDFMemory:    uint32(*maxKDFMemory),
	}
	if *keyFileHash != "" {
		h, err := hex.DecodeString(*keyFileHash)
		if err != nil || len(h) != 32 {
			log.Println("-keyfile-hash must be 64 hex digits")
			os.Exit(2)
		}
		opts.KeyFileHash = h
	}
	pw, err := getPassword("Password: ")
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	opts.Password = string(pw)
	zeroBytes(pw)

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	err = dump(os.Stdout, f, opts, *headerOnly)
	f.Close()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

// dump opens the database in r and writes either its document or a
// summary of its header to w.
func dump(w io.Writer, r io.Reader, opts *kdbx.Options, headerOnly bool) error {
	db, err := kdbx.Open(r, opts)
	if errors.Is(err, kdbx.CredentialsError) {
		return errors.New("wrong password or key file")
	}
	if err != nil {
		return err
	}
	if headerOnly {
		return printHeader(w, db)
	}
	if err := xmltree.Encode(w, db.Root); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func printHeader(w io.Writer, db *kdbx.Database) error {
	h := db.Header
	fmt.Fprintf(w, "version:      %d.%d\n", db.Version>>16, db.Version&0xffff)
	fmt.Fprintf(w, "cipher:       %v\n", h.Cipher)
	fmt.Fprintf(w, "compression:  %v\n", h.Compression)
	switch k := h.KDF.(type) {
	case *kdf.AES:
		fmt.Fprintf(w, "kdf:          AES-KDF, %d rounds\n", k.Rounds())
	case *kdf.Argon2:
		name := "Argon2d"
		if k.UUID() == kdf.Argon2id {
			name = "Argon2id"
		}
		fmt.Fprintf(w, "kdf:          %s, %d KiB\n", name, k.MemoryKiB())
	}
	for _, e := range h.PublicCustomData.Entries() {
		fmt.Fprintf(w, "custom data:  %s (%v)\n", e.Name, e.Type)
	}
	for _, b := range db.InnerHeader.Binaries {
		fmt.Fprintf(w, "attachment:   %v\n", b)
	}
	return nil
}

func getPassword(prompt string) ([]byte, error) {
	if pw := os.Getenv(passwordEnvVar); pw != "" {
		return []byte(pw), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	if term.IsTerminal(int(syscall.Stdin)) {
		return term.ReadPassword(int(syscall.Stdin))
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return nil, fmt.Errorf("cannot read password: stdin is not a terminal; set %s", passwordEnvVar)
	}
	defer tty.Close()
	return term.ReadPassword(int(tty.Fd()))
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
