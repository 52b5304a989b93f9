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
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"time"
)

// Session flags.
var (
	sessionExpiry = flag.Duration("session_expiry", 30*time.Minute, "length of time that a session token is valid")
	tokenSize     = flag.Int("token_size", 33, "size of the session tokens sent to the client (in bytes)")
)

// sessionCookie is the name of browser cookie containing the session token.
const sessionCookie = "kdbxfill_session"

// sessionStorage is an in-memory set of sessions.  Callers must
// serialize access.
type sessionStorage struct {
	expiry    time.Duration
	tokenSize int
	now       func() time.Time
	s         map[string]*session
}

func newSessionStorage(expiry time.Duration, tokenSize int) *sessionStorage {
	return &sessionStorage{
		expiry:    expiry,
		tokenSize: tokenSize,
		now:       time.Now,
	}
}

// new creates a new session and sets its cookie on w.
func (ss *sessionStorage) new(w http.ResponseWriter, data sessionData) (*session, error) {
	buf := make([]byte, ss.tokenSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session token: %v", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)
	s := &session{
		token:   tok,
		expires: ss.now().Add(ss.expiry),
		Data:    data,
	}
	if ss.s == nil {
		ss.s = make(map[string]*session)
	}
	ss.s[tok] = s
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(ss.expiry / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return s, nil
}

// fromRequest returns the request's session or nil if it has none or the
// session has expired.
func (ss *sessionStorage) fromRequest(r *http.Request) *session {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s := ss.s[c.Value]
	if !s.isValid(ss.now()) {
		return nil
	}
	return s
}

// remove ends the request's session, if any.
func (ss *sessionStorage) remove(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s := ss.s[c.Value]
	if s == nil {
		return false
	}
	s.Data.zero()
	delete(ss.s, c.Value)
	return true
}

// clearInvalid removes expired sessions and returns how many were removed.
func (ss *sessionStorage) clearInvalid() int {
	now := ss.now()
	n := 0
	for tok, s := range ss.s {
		if !s.isValid(now) {
			s.Data.zero()
			delete(ss.s, tok)
			n++
		}
	}
	return n
}

// sessionData returns a copy of the request's session credentials.
// The caller should zero it when done.
func (srv *server) sessionData(r *http.Request) (*sessionData, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	s := srv.sessions.fromRequest(r)
	if s == nil {
		return nil, errInvalidSession
	}
	return &sessionData{
		PasswordHash: append([]byte(nil), s.Data.PasswordHash...),
		KeyFileHash:  append([]byte(nil), s.Data.KeyFileHash...),
	}, nil
}

type sessionData struct {
	PasswordHash []byte
	KeyFileHash  []byte
}

func (d *sessionData) zero() {
	for _, b := range [][]byte{d.PasswordHash, d.KeyFileHash} {
		for i := range b {
			b[i] = 0
		}
	}
}

type session struct {
	Data    sessionData
	token   string
	expires time.Time
}

func (s *session) isValid(now time.Time) bool {
	return s != nil && now.Before(s.expires)
}
