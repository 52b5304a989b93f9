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
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zombiezen.com/go/kdbxread/internal/kdbxtest"
	"zombiezen.com/go/kdbxread/pkg/xmltree"
)

const (
	bankUUID  = "AAECAwQFBgcICQoLDA0ODw=="
	mailUUID  = "EBESExQVFhcYGRobHB0eHw=="
	bankID    = "00010203-0405-0607-0809-0a0b0c0d0e0f"
	mailID    = "10111213-1415-1617-1819-1a1b1c1d1e1f"
	missingID = "20212223-2425-2627-2829-2a2b2c2d2e2f"
)

// newTestServer writes a database with two entries and serves it.
func newTestServer(t *testing.T) *server {
	t.Helper()
	f := kdbxtest.New()
	pw := f.Mask("hunter2", "correct horse")
	f.XML = kdbxtest.Document(
		kdbxtest.Entry{UUID: bankUUID, Title: "Bank", UserName: "gopher", URL: "https://bank.example.com/", Password: pw[0]},
		kdbxtest.Entry{UUID: mailUUID, Title: "Mail", UserName: "gopher@example.com", URL: "https://mail.example.com/", Password: pw[1]},
	)
	data, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "test.kdbx")
	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	st, err := newStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	return newServer(st, newSessionStorage(time.Minute, 16), 64<<10)
}

func do(srv *server, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func unlockRequest(form url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/_/unlock", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func unlock(t *testing.T, srv *server) []*http.Cookie {
	t.Helper()
	rec := do(srv, unlockRequest(url.Values{"password": {"swordfish"}}), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /_/unlock = %d %s; want 204", rec.Code, rec.Body)
	}
	return rec.Result().Cookies()
}

func TestUnlock(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		form url.Values
		code int
	}{
		{"Correct", url.Values{"password": {"swordfish"}}, http.StatusNoContent},
		{"WrongPassword", url.Values{"password": {"tuna"}}, http.StatusUnauthorized},
		{"WrongKeyFile", url.Values{"password": {"swordfish"}, "keyfile_hash": {strings.Repeat("ab", 32)}}, http.StatusUnauthorized},
		{"BadKeyFileHash", url.Values{"keyfile_hash": {"xyz"}}, http.StatusBadRequest},
		{"Empty", url.Values{}, http.StatusBadRequest},
	}
	for _, test := range tests {
		rec := do(srv, unlockRequest(test.form), nil)
		if rec.Code != test.code {
			t.Errorf("%s: POST /_/unlock = %d %s; want %d", test.name, rec.Code, rec.Body, test.code)
		}
		if test.code != http.StatusNoContent && len(rec.Result().Cookies()) > 0 {
			t.Errorf("%s: failed unlock set cookies", test.name)
		}
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	cookies := unlock(t, srv)
	tests := []struct {
		q    string
		want []searchResult
	}{
		{"", []searchResult{}},
		{"  ", []searchResult{}},
		{"nothing", []searchResult{}},
		{"bank", []searchResult{
			{UUID: bankID, Title: "Bank", UserName: "gopher", URL: "https://bank.example.com/", Href: "/entries/" + bankID},
		}},
		{"example.com", []searchResult{
			{UUID: bankID, Title: "Bank", UserName: "gopher", URL: "https://bank.example.com/", Href: "/entries/" + bankID},
			{UUID: mailID, Title: "Mail", UserName: "gopher@example.com", URL: "https://mail.example.com/", Href: "/entries/" + mailID},
		}},
		{"MAIL example", []searchResult{
			{UUID: mailID, Title: "Mail", UserName: "gopher@example.com", URL: "https://mail.example.com/", Href: "/entries/" + mailID},
		}},
	}
	for _, test := range tests {
		rec := do(srv, httptest.NewRequest("GET", "/search?q="+url.QueryEscape(test.q), nil), cookies)
		if rec.Code != http.StatusOK {
			t.Errorf("GET /search?q=%q = %d %s; want 200", test.q, rec.Code, rec.Body)
			continue
		}
		var got []searchResult
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Errorf("GET /search?q=%q: %v", test.q, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("GET /search?q=%q (-want +got):\n%s", test.q, diff)
		}
		if strings.Contains(rec.Body.String(), "hunter2") {
			t.Errorf("GET /search?q=%q leaked a password", test.q)
		}
	}
}

func TestViewEntry(t *testing.T) {
	srv := newTestServer(t)
	cookies := unlock(t, srv)
	rec := do(srv, httptest.NewRequest("GET", "/entries/"+mailID, nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /entries/%s = %d %s; want 200", mailID, rec.Code, rec.Body)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"uuid":     mailID,
		"title":    "Mail",
		"username": "gopher@example.com",
		"url":      "https://mail.example.com/",
		"password": "correct horse",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GET /entries/%s (-want +got):\n%s", mailID, diff)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q; want no-store", cc)
	}

	for _, path := range []string{"/entries/" + missingID, "/entries/not-a-uuid", "/nope"} {
		rec := do(srv, httptest.NewRequest("GET", path, nil), cookies)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d; want 404", path, rec.Code)
		}
	}
}

func TestLock(t *testing.T) {
	srv := newTestServer(t)
	cookies := unlock(t, srv)
	rec := do(srv, httptest.NewRequest("POST", "/_/lock", nil), cookies)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /_/lock = %d; want 204", rec.Code)
	}
	for _, path := range []string{"/search?q=bank", "/entries/" + bankID} {
		rec := do(srv, httptest.NewRequest("GET", path, nil), cookies)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s after lock = %d; want 401", path, rec.Code)
		}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
			t.Errorf("GET %s after lock body = %q; want JSON error", path, rec.Body)
		}
	}
}

func TestEntriesSkipsHistory(t *testing.T) {
	root := &xmltree.Node{Name: "KeePassFile", Value: xmltree.Children{
		{Name: "Root", Value: xmltree.Children{
			{Name: "Group", Value: xmltree.Children{
				{Name: "Entry", Value: xmltree.Children{
					{Name: "UUID", Value: xmltree.Text(bankUUID)},
					{Name: "String", Value: xmltree.Children{
						{Name: "Key", Value: xmltree.Text("Title")},
						{Name: "Value", Value: xmltree.Text("Current")},
					}},
					{Name: "History", Value: xmltree.Children{
						{Name: "Entry", Value: xmltree.Children{
							{Name: "UUID", Value: xmltree.Text(bankUUID)},
						}},
					}},
				}},
				{Name: "Group", Value: xmltree.Children{
					{Name: "Entry", Value: xmltree.Children{
						{Name: "UUID", Value: xmltree.Text(mailUUID)},
					}},
					{Name: "Entry", Value: xmltree.Children{
						{Name: "UUID", Value: xmltree.Text("bad uuid")},
					}},
				}},
			}},
		}},
	}}
	list := entries(root)
	var got []string
	for _, e := range list {
		got = append(got, e.UUID.String()+" "+e.Title)
	}
	want := []string{bankID + " Current", mailID + " "}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
}
