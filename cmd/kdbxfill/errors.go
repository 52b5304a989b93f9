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
	"errors"
	"net/http"
)

func isUserError(e error) bool {
	return userErrorMessage(e) != ""
}

func userErrorMessage(e error) string {
	var ue interface {
		UserError() string
	}
	if !errors.As(e, &ue) {
		return ""
	}
	return ue.UserError()
}

func errorStatusCode(e error) int {
	var sc interface {
		StatusCode() int
	}
	if !errors.As(e, &sc) {
		return http.StatusInternalServerError
	}
	return sc.StatusCode()
}

type userError struct {
	msg  string
	code int
	err  error
}

func (ue userError) Error() string {
	if ue.err == nil {
		return ue.msg
	}
	return ue.err.Error()
}

func (ue userError) Unwrap() error {
	return ue.err
}

func (ue userError) UserError() string {
	return ue.msg
}

func (ue userError) StatusCode() int {
	if ue.code == 0 {
		return http.StatusBadRequest
	}
	return ue.code
}

type notFoundError struct{}

func (notFoundError) Error() string {
	return "not found"
}

func (notFoundError) UserError() string {
	return "404 page not found"
}

func (notFoundError) StatusCode() int {
	return http.StatusNotFound
}

var errInvalidSession = userError{
	msg:  "Invalid session. Please unlock the database again.",
	code: http.StatusUnauthorized,
	err:  errors.New("invalid session"),
}

var errBadCredentials = userError{
	msg:  "wrong password or key file",
	code: http.StatusUnauthorized,
	err:  errors.New("unlock: wrong password or key file"),
}

var errNoCredentials = errors.New("unlock: no credentials")
