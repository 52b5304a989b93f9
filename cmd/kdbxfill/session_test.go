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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionStorage(t *testing.T) {
	start := time.Date(2019, time.July, 1, 22, 0, 0, 0, time.UTC)
	const expiry = 30 * time.Minute
	tests := []struct {
		name     string
		createAt time.Time
		readAt   time.Time
		remove   bool
		gc       bool
		valid    bool
	}{
		{
			name:     "Fresh",
			createAt: start,
			readAt:   start.Add(1 * time.Minute),
			valid:    true,
		},
		{
			name:     "JustBeforeExpiry",
			createAt: start,
			readAt:   start.Add(expiry - time.Second),
			valid:    true,
		},
		{
			name:     "PastExpiry",
			createAt: start,
			readAt:   start.Add(expiry),
			valid:    false,
		},
		{
			name:     "Removed",
			createAt: start,
			readAt:   start.Add(1 * time.Minute),
			remove:   true,
			valid:    false,
		},
		{
			name:     "CollectedAfterExpiry",
			createAt: start,
			readAt:   start.Add(2 * expiry),
			gc:       true,
			valid:    false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			now := test.createAt
			ss := newSessionStorage(expiry, 16)
			ss.now = func() time.Time { return now }

			rec := httptest.NewRecorder()
			_, err := ss.new(rec, sessionData{PasswordHash: []byte("Hello, World!")})
			if err != nil {
				t.Fatal(err)
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("new set %d cookies; want 1", len(cookies))
			}
			c := cookies[0]
			if got, want := c.MaxAge, int(expiry/time.Second); got != want {
				t.Errorf("Cookie %q has expiry of %d seconds; want %d seconds", c.Name, got, want)
			}
			if !c.HttpOnly {
				t.Errorf("Cookie %q is not HttpOnly", c.Name)
			}

			req := &http.Request{
				Header: make(http.Header),
			}
			req.AddCookie(c)
			now = test.readAt
			if test.remove && !ss.remove(req) {
				t.Error("remove(req) = false; want true")
			}
			if test.gc {
				if n := ss.clearInvalid(); n != 1 {
					t.Errorf("clearInvalid() = %d; want 1", n)
				}
				if len(ss.s) != 0 {
					t.Errorf("%d sessions left after clearInvalid", len(ss.s))
				}
			}
			got := ss.fromRequest(req)
			if got == nil && test.valid {
				t.Error("fromRequest(req) = <nil>; want valid session")
			} else if got != nil {
				if test.valid {
					if got, want := string(got.Data.PasswordHash), "Hello, World!"; got != want {
						t.Errorf("fromRequest(req).Data.PasswordHash = %q; want %q", got, want)
					}
				} else {
					t.Errorf("fromRequest(req) = %#v; want invalid session", got)
				}
			}
		})
	}
}

func TestSessionNoCookie(t *testing.T) {
	ss := newSessionStorage(time.Minute, 16)
	req := httptest.NewRequest("GET", "/search", nil)
	if s := ss.fromRequest(req); s != nil {
		t.Errorf("fromRequest(no cookie) = %#v; want <nil>", s)
	}
	if ss.remove(req) {
		t.Error("remove(no cookie) = true; want false")
	}
}
