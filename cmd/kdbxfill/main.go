// Copyright 2016 Ross Light
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

// kdbxfill is a small HTTP service that looks up credentials in a KeePass
// KDBX 4 database for autofill clients.  The database file is re-read on
// every request and no decrypted data is kept between requests; a session
// holds only the hashes of the credentials.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

var (
	listen    = flag.String("listen", "[::]:8080", "address to listen on")
	dbPath    = flag.String("db", "", "path to database")
	sessionGC = flag.Duration("session_gc", 1*time.Minute, "frequency at which sessions are to be cleared from memory after expiring")
)

func main() {
	flag.Parse()
	if *dbPath == "" {
		log.Println("must specify -db")
		os.Exit(1)
	}
	st, err := newStorage(*dbPath)
	if err != nil {
		log.Println("open database:", err)
		os.Exit(1)
	}
	srv := newServer(st, newSessionStorage(*sessionExpiry, *tokenSize), *maxRequestSize)
	go srv.gcSessions(*sessionGC)
	if err := http.ListenAndServe(*listen, srv); err != nil {
		log.Println("listen:", err)
		os.Exit(1)
	}
}

// server holds the state shared by all handlers.
type server struct {
	storage        *storage
	router         *mux.Router
	maxRequestSize int64

	mu       sync.Mutex
	sessions *sessionStorage
}

func newServer(st *storage, ss *sessionStorage, maxRequestSize int64) *server {
	srv := &server{
		storage:        st,
		sessions:       ss,
		maxRequestSize: maxRequestSize,
	}
	r := mux.NewRouter()
	r.Handle("/_/unlock", srv.handle(srv.unlock)).Methods("POST")
	r.Handle("/_/lock", srv.handle(srv.lock)).Methods("POST")
	r.Handle("/search", srv.handle(srv.search)).Methods("GET")
	r.Handle("/entries/{uuid}", srv.handle(srv.viewEntry)).Methods("GET").Name("viewEntry")
	r.NotFoundHandler = srv.handle(func(http.ResponseWriter, *http.Request) error {
		return notFoundError{}
	})
	srv.router = r
	return srv
}

func (srv *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.router.ServeHTTP(w, r)
}

func (srv *server) gcSessions(freq time.Duration) {
	tick := time.NewTicker(freq)
	defer tick.Stop()
	for range tick.C {
		srv.mu.Lock()
		n := srv.sessions.clearInvalid()
		srv.mu.Unlock()
		if n > 0 {
			log.Printf("cleared %d invalid sessions", n)
		}
	}
}
