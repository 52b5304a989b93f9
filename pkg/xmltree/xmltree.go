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

// Package xmltree decodes XML documents into a small generic tree and
// encodes them back.  An element holds either text or child elements,
// never both: text is dropped from elements that have children.
package xmltree // import "zombiezen.com/go/kdbxread/pkg/xmltree"

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// MaxDepth is the deepest element nesting Decode accepts.
const MaxDepth = 256

// A Node is an XML element.
type Node struct {
	// Name is the qualified name as written, including any prefix.
	Name  string
	Attrs []Attr
	// Value is Text, Children, or nil for an empty element.
	Value Value
}

// An Attr is a single attribute.
type Attr struct {
	Name  string
	Value string
}

// Value is the content of a Node: either Text or Children.
type Value interface {
	isValue()
}

// Text is character content.
type Text string

// Children is an ordered list of child elements.
type Children []*Node

func (Text) isValue()     {}
func (Children) isValue() {}

// Text returns the node's character content, or the empty string if the
// node is empty or has children.
func (n *Node) Text() string {
	if t, ok := n.Value.(Text); ok {
		return string(t)
	}
	return ""
}

// Children returns the node's child elements.
func (n *Node) Children() []*Node {
	if c, ok := n.Value.(Children); ok {
		return c
	}
	return nil
}

// Child returns the first child element with the given name or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the child elements with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var list []*Node
	for _, c := range n.Children() {
		if c.Name == name {
			list = append(list, c)
		}
	}
	return list
}

// Path follows a chain of child names from n, returning nil if any step
// is missing.
func (n *Node) Path(names ...string) *Node {
	for _, name := range names {
		if n == nil {
			return nil
		}
		n = n.Child(name)
	}
	return n
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Walk calls fn for n and each of its descendants in document order.
// Walk stops at the first error fn returns.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.Children() {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses the first element of r and everything it contains.
// Anything before it, such as the XML declaration or comments, is
// skipped; anything after it is not read.
func Decode(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil, errors.New("xmltree: no root element")
		}
		if err != nil {
			return nil, errors.Wrap(err, "xmltree")
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeElement(d, start, 1)
		}
	}
}

func decodeElement(d *xml.Decoder, start xml.StartElement, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, errors.Errorf("xmltree: elements nested deeper than %d", MaxDepth)
	}
	n := &Node{Name: qualified(start.Name)}
	if len(start.Attr) > 0 {
		n.Attrs = make([]Attr, len(start.Attr))
		for i, a := range start.Attr {
			n.Attrs[i] = Attr{Name: qualified(a.Name), Value: a.Value}
		}
	}
	var text strings.Builder
	var children Children
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil, errors.Errorf("xmltree: unexpected end of document inside <%s>", n.Name)
		}
		if err != nil {
			return nil, errors.Wrap(err, "xmltree")
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			c, err := decodeElement(d, tok, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		case xml.CharData:
			text.Write(tok)
		case xml.EndElement:
			if name := qualified(tok.Name); name != n.Name {
				return nil, errors.Errorf("xmltree: </%s> closes <%s>", name, n.Name)
			}
			switch {
			case len(children) > 0:
				n.Value = children
			case strings.TrimSpace(text.String()) != "":
				n.Value = Text(text.String())
			}
			return n, nil
		}
	}
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// Encode writes n as indented XML.  Empty elements are self-closing.
func Encode(w io.Writer, n *Node) error {
	bw := bufio.NewWriter(w)
	if err := encodeNode(bw, n, 0); err != nil {
		return err
	}
	return bw.Flush()
}

// String returns the encoded form of n.
func (n *Node) String() string {
	sb := new(strings.Builder)
	if err := Encode(sb, n); err != nil {
		return fmt.Sprintf("<!-- %v -->", err)
	}
	return sb.String()
}

func encodeNode(w *bufio.Writer, n *Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	w.WriteString(indent)
	w.WriteByte('<')
	w.WriteString(n.Name)
	for _, a := range n.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(a.Value)); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	switch v := n.Value.(type) {
	case nil:
		w.WriteString("/>")
		return nil
	case Text:
		w.WriteByte('>')
		if err := xml.EscapeText(w, []byte(v)); err != nil {
			return err
		}
	case Children:
		w.WriteByte('>')
		for _, c := range v {
			w.WriteByte('\n')
			if err := encodeNode(w, c, depth+1); err != nil {
				return err
			}
		}
		w.WriteByte('\n')
		w.WriteString(indent)
	default:
		return errors.Errorf("xmltree: unknown value type %T in <%s>", v, n.Name)
	}
	w.WriteString("</")
	w.WriteString(n.Name)
	_, err := w.WriteString(">")
	return err
}
