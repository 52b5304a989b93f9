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
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
)

// unlock checks the posted credentials against the database and starts a
// session holding their hashes.
func (srv *server) unlock(w http.ResponseWriter, r *http.Request) error {
	data := new(sessionData)
	if pw := r.PostFormValue("password"); pw != "" {
		sum := sha256.Sum256([]byte(pw))
		data.PasswordHash = sum[:]
	}
	if kf := r.PostFormValue("keyfile_hash"); kf != "" {
		k, err := hex.DecodeString(kf)
		if err != nil || len(k) != sha256.Size {
			return userError{msg: "keyfile_hash must be 64 hex digits", err: err}
		}
		data.KeyFileHash = k
	}
	if len(data.PasswordHash) == 0 && len(data.KeyFileHash) == 0 {
		return userError{msg: "password or keyfile_hash required", err: errNoCredentials}
	}
	if _, err := srv.storage.open(data, false); err != nil {
		data.zero()
		return err
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, err := srv.sessions.new(w, *data); err != nil {
		return err
	}
	log.Printf("unlocked %s", srv.storage.path)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (srv *server) lock(w http.ResponseWriter, r *http.Request) error {
	srv.mu.Lock()
	srv.sessions.remove(r)
	srv.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
	return nil
}
