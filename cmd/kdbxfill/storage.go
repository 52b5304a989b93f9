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

package main

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"zombiezen.com/go/kdbxread/pkg/kdbx"
)

var maxKDFMemory = flag.Uint("max_kdf_memory", 1<<20, "largest Argon2 memory cost to accept (in KiB, 0 for no limit)")

// storage reads a single database file.  The file is opened anew for
// every read so that edits made by other programs are picked up.
type storage struct {
	path         string
	maxKDFMemory uint32
}

// newStorage creates a storage that points to path.  The file must exist.
func newStorage(path string) (*storage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}
	return &storage{path: path, maxKDFMemory: uint32(*maxKDFMemory)}, nil
}

// open decrypts the database with the session's credentials.
func (st *storage) open(data *sessionData, reveal bool) (*kdbx.Database, error) {
	f, err := os.Open(st.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	db, err := kdbx.Open(f, &kdbx.Options{
		PasswordHash:    data.PasswordHash,
		KeyFileHash:     data.KeyFileHash,
		RevealProtected: reveal,
		MaxKDFMemory:    st.maxKDFMemory,
	})
	if errors.Is(err, kdbx.CredentialsError) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return db, nil
}
