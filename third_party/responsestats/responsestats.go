// Copyright (c) 2013, Ross Light
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted
// provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions
// and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions
// and the following disclaimer in the documentation and/or other materials provided with the
// distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR
// IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND
// FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER
// IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF
// THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package responsestats wraps an http.ResponseWriter to record the status
// code and body size of a response for request logging.
package responsestats // import "zombiezen.com/go/kdbxread/third_party/responsestats"

import (
	"net/http"
	"time"
)

// ResponseStats is a ResponseWriter that records statistics about a response.
type ResponseStats struct {
	w     http.ResponseWriter
	code  int
	size  int64
	start time.Time
}

// New returns a new ResponseStats that writes to w.
func New(w http.ResponseWriter) *ResponseStats {
	return &ResponseStats{w: w, start: time.Now()}
}

// StatusCode returns the status code sent to the client or 0 if nothing
// has been sent yet.
func (r *ResponseStats) StatusCode() int {
	return r.code
}

// Size returns the number of body bytes written to the underlying ResponseWriter.
func (r *ResponseStats) Size() int64 {
	return r.size
}

// Elapsed returns the time since New was called.
func (r *ResponseStats) Elapsed() time.Duration {
	return time.Since(r.start)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (r *ResponseStats) Unwrap() http.ResponseWriter {
	return r.w
}

func (r *ResponseStats) Header() http.Header {
	return r.w.Header()
}

// WriteHeader sends the status code.  Only the first call has any effect,
// matching net/http.
func (r *ResponseStats) WriteHeader(statusCode int) {
	if r.code != 0 {
		return
	}
	r.w.WriteHeader(statusCode)
	r.code = statusCode
}

func (r *ResponseStats) Write(p []byte) (n int, err error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	n, err = r.w.Write(p)
	r.size += int64(n)
	return
}
