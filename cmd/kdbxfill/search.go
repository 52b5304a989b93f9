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
	"sort"
	"unicode"

	"golang.org/x/text/language"
	textsearch "golang.org/x/text/search"
)

// searchResult is an entry summary.  The password is only served by
// viewEntry.
type searchResult struct {
	UUID     string `json:"uuid"`
	Title    string `json:"title"`
	UserName string `json:"username"`
	URL      string `json:"url"`
	Href     string `json:"href"`
}

func (srv *server) search(w http.ResponseWriter, r *http.Request) error {
	data, err := srv.sessionData(r)
	if err != nil {
		return err
	}
	defer data.zero()
	db, err := srv.storage.open(data, false)
	if err != nil {
		return err
	}
	results := []searchResult{}
	for _, e := range search(entries(db.Root), parseQuery(r.FormValue("q"))) {
		u, err := srv.router.Get("viewEntry").URL("uuid", e.UUID.String())
		if err != nil {
			return err
		}
		results = append(results, searchResult{
			UUID:     e.UUID.String(),
			Title:    e.Title,
			UserName: e.UserName,
			URL:      e.URL,
			Href:     u.String(),
		})
	}
	return writeJSON(w, results)
}

// search returns the entries whose title or URL matches q, sorted by title.
func search(list []*entry, q *parsedQuery) []*entry {
	var results []*entry
	for _, e := range list {
		if q.matchesText(e.Title) || q.matchesText(e.URL) {
			results = append(results, e)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Title < results[j].Title
	})
	return results
}

type parsedQuery struct {
	pats []*textsearch.Pattern
}

func parseQuery(query string) *parsedQuery {
	var words []string
	start := -1
	for i, r := range query {
		space := unicode.IsSpace(r)
		if space && start != -1 {
			words = append(words, query[start:i])
			start = -1
		} else if !space && start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, query[start:])
	}
	if len(words) == 0 {
		return nil
	}
	m := textsearch.New(language.Und, textsearch.Loose)
	pq := &parsedQuery{pats: make([]*textsearch.Pattern, len(words))}
	for i := range words {
		pq.pats[i] = m.CompileString(words[i])
	}
	return pq
}

func (pq *parsedQuery) matchesText(s string) bool {
	if pq == nil || len(pq.pats) == 0 {
		return false
	}
	for _, pat := range pq.pats {
		if start, _ := pat.IndexString(s); start == -1 {
			return false
		}
	}
	return true
}
