// Copyright 2026 The Sandpass Authors
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

package xmltree

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<!-- generator comment -->
<KeePassFile>
	<Meta>
		<Generator>KeePassXC</Generator>
		<DatabaseName/>
	</Meta>
	<Root>
		<Group>
			<Name>Root</Name>
			<Entry>
				<String>
					<Key>Title</Key>
					<Value>Mail &amp; Calendar</Value>
				</String>
				<String>
					<Key>Password</Key>
					<Value Protected="True">c2VjcmV0</Value>
				</String>
			</Entry>
		</Group>
	</Root>
</KeePassFile>
`

func TestDecode(t *testing.T) {
	got, err := Decode(iotest.OneByteReader(strings.NewReader(sampleDoc)))
	if err != nil {
		t.Fatal("Decode:", err)
	}
	str := func(key, value string, attrs ...Attr) *Node {
		return &Node{Name: "String", Value: Children{
			{Name: "Key", Value: Text(key)},
			{Name: "Value", Attrs: attrs, Value: Text(value)},
		}}
	}
	want := &Node{Name: "KeePassFile", Value: Children{
		{Name: "Meta", Value: Children{
			{Name: "Generator", Value: Text("KeePassXC")},
			{Name: "DatabaseName"},
		}},
		{Name: "Root", Value: Children{
			{Name: "Group", Value: Children{
				{Name: "Name", Value: Text("Root")},
				{Name: "Entry", Value: Children{
					str("Title", "Mail & Calendar"),
					str("Password", "c2VjcmV0", Attr{Name: "Protected", Value: "True"}),
				}},
			}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode (-want +got):\n%s", diff)
	}
}

func TestDecodeTextRules(t *testing.T) {
	tests := []struct {
		doc  string
		want *Node
	}{
		{`<a>   </a>`, &Node{Name: "a"}},
		{`<a/>`, &Node{Name: "a"}},
		{`<a> x </a>`, &Node{Name: "a", Value: Text(" x ")}},
		{`<a>x<!-- c -->y</a>`, &Node{Name: "a", Value: Text("xy")}},
		{`<a><![CDATA[<b>]]></a>`, &Node{Name: "a", Value: Text("<b>")}},
		{`<a>text<b/>more</a>`, &Node{Name: "a", Value: Children{{Name: "b"}}}},
		{
			`<a z="1" y="2" x="3"/>`,
			&Node{Name: "a", Attrs: []Attr{{"z", "1"}, {"y", "2"}, {"x", "3"}}},
		},
		{
			`<k:a xmlns:k="urn:k" k:id="7"><k:b/></k:a>`,
			&Node{
				Name:  "k:a",
				Attrs: []Attr{{"xmlns:k", "urn:k"}, {"k:id", "7"}},
				Value: Children{{Name: "k:b"}},
			},
		},
	}
	for _, test := range tests {
		got, err := Decode(strings.NewReader(test.doc))
		if err != nil {
			t.Errorf("Decode(%q): %v", test.doc, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Decode(%q) (-want +got):\n%s", test.doc, diff)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	docs := []string{
		``,
		`<!-- only a comment -->`,
		`<a><b></a>`,
		`<a>`,
		`<a>&bogus;</a>`,
		strings.Repeat("<a>", MaxDepth+1) + strings.Repeat("</a>", MaxDepth+1),
	}
	for _, doc := range docs {
		if n, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("Decode(%.40q) = %v; want error", doc, n)
		}
	}
}

func TestEncode(t *testing.T) {
	n := &Node{Name: "root", Attrs: []Attr{{"v", `a"b<`}}, Value: Children{
		{Name: "empty"},
		{Name: "text", Value: Text("1 < 2 & 3\n")},
		{Name: "nested", Value: Children{{Name: "leaf"}}},
	}}
	const want = `<root v="a&#34;b&lt;">
  <empty/>
  <text>1 &lt; 2 &amp; 3&#xA;</text>
  <nested>
    <leaf/>
  </nested>
</root>`
	if got := n.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	first, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decode(strings.NewReader(first.String()))
	if err != nil {
		t.Fatalf("Decode(String()): %v\n%s", err, first.String())
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip (-first +second):\n%s", diff)
	}
}

func TestHelpers(t *testing.T) {
	root, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	if got := root.Path("Meta", "Generator").Text(); got != "KeePassXC" {
		t.Errorf(`Path("Meta", "Generator").Text() = %q; want "KeePassXC"`, got)
	}
	if got := root.Path("Meta", "Missing", "Deeper"); got != nil {
		t.Errorf("Path through missing element = %v; want nil", got)
	}
	entry := root.Path("Root", "Group", "Entry")
	if n := len(entry.ChildrenNamed("String")); n != 2 {
		t.Errorf("ChildrenNamed(\"String\") has %d nodes; want 2", n)
	}
	v := entry.ChildrenNamed("String")[1].Child("Value")
	if p, ok := v.Attr("Protected"); p != "True" || !ok {
		t.Errorf("Attr(\"Protected\") = %q, %t; want \"True\", true", p, ok)
	}
	if _, ok := v.Attr("Missing"); ok {
		t.Error("Attr(\"Missing\") found a value")
	}

	var names []string
	root.Walk(func(n *Node) error {
		if n.Name == "Key" {
			names = append(names, n.Text())
		}
		return nil
	})
	if diff := cmp.Diff([]string{"Title", "Password"}, names); diff != "" {
		t.Errorf("Walk order (-want +got):\n%s", diff)
	}

	stop := errors.New("stop")
	count := 0
	err = root.Walk(func(n *Node) error {
		count++
		if n.Name == "Meta" {
			return stop
		}
		return nil
	})
	if err != stop || count != 2 {
		t.Errorf("Walk stopped with %v after %d nodes; want stop after 2", err, count)
	}
}
