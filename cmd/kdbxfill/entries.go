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
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"zombiezen.com/go/kdbxread/pkg/xmltree"
)

// entry is the subset of a KeePass entry that autofill clients use.
type entry struct {
	UUID     uuid.UUID `json:"uuid"`
	Title    string    `json:"title"`
	UserName string    `json:"username"`
	URL      string    `json:"url"`
	Password string    `json:"password,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// entries returns every current entry in the document, depth first.
// History snapshots and entries with unparseable UUIDs are skipped.
func entries(root *xmltree.Node) []*entry {
	var list []*entry
	var walk func(g *xmltree.Node)
	walk = func(g *xmltree.Node) {
		for _, c := range g.Children() {
			switch c.Name {
			case "Group":
				walk(c)
			case "Entry":
				if e := parseEntry(c); e != nil {
					list = append(list, e)
				}
			}
		}
	}
	if r := root.Path("Root"); r != nil {
		walk(r)
	}
	return list
}

func parseEntry(n *xmltree.Node) *entry {
	raw, err := base64.StdEncoding.DecodeString(text(n.Child("UUID")))
	if err != nil {
		return nil
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil
	}
	e := &entry{UUID: id}
	for _, s := range n.ChildrenNamed("String") {
		v := text(s.Child("Value"))
		switch text(s.Child("Key")) {
		case "Title":
			e.Title = v
		case "UserName":
			e.UserName = v
		case "URL":
			e.URL = v
		case "Password":
			e.Password = v
		case "Notes":
			e.Notes = v
		}
	}
	return e
}

// text returns n's character content, or "" if n is nil.
func text(n *xmltree.Node) string {
	if n == nil {
		return ""
	}
	return n.Text()
}

func findEntry(root *xmltree.Node, id uuid.UUID) *entry {
	for _, e := range entries(root) {
		if e.UUID == id {
			return e
		}
	}
	return nil
}

func (srv *server) viewEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		return notFoundError{}
	}
	data, err := srv.sessionData(r)
	if err != nil {
		return err
	}
	defer data.zero()
	db, err := srv.storage.open(data, true)
	if err != nil {
		return err
	}
	e := findEntry(db.Root, id)
	if e == nil {
		return notFoundError{}
	}
	return writeJSON(w, e)
}
