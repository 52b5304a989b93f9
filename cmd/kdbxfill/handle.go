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
	"flag"
	"log"
	"net/http"

	"zombiezen.com/go/kdbxread/third_party/responsestats"
)

var maxRequestSize = flag.Int64("max_request_size", 64<<10, "number of bytes to limit requests to")

type appHandler func(http.ResponseWriter, *http.Request) error

// handle wraps f with request limits, error reporting, and logging.
// Errors are reported to the client as JSON.
func (srv *server) handle(f appHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := responsestats.New(w)
		defer func() {
			log.Printf("%s %s %d %dB %v", r.Method, r.URL.Path, stats.StatusCode(), stats.Size(), stats.Elapsed())
		}()
		r.Body = http.MaxBytesReader(stats, r.Body, srv.maxRequestSize)
		if err := r.ParseForm(); err != nil {
			log.Printf("%s %s fail form parse: %v", r.Method, r.URL.Path, err)
			writeJSONError(stats, "could not parse form", http.StatusBadRequest)
			return
		}
		stats.Header().Set("Cache-Control", "private, no-store")
		err := f(stats, r)
		if err == nil {
			return
		}
		msg := "internal server error; check logs"
		if isUserError(err) {
			log.Printf("%s %s client error: %v", r.Method, r.URL.Path, err)
			msg = userErrorMessage(err)
		} else {
			log.Printf("%s %s server error: %v", r.Method, r.URL.Path, err)
		}
		if stats.StatusCode() == 0 {
			writeJSONError(stats, msg, errorStatusCode(err))
		}
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{msg})
}
