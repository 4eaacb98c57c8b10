package xliff

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// element is a parsed XML element. text holds the character data of the
// element and all of its descendants, in document order, untrimmed.
type element struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*element
	text     string
}

// decodeTree reads a whole document into memory. Any syntax error aborts the
// parse; a partial tree is never returned.
func decodeTree(data []byte) (*element, error) {
	// BOMOverride turns UTF-16 (with BOM) into UTF-8 and strips a UTF-8 BOM.
	src := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(transform.Nop))
	dec := xml.NewDecoder(src)
	dec.CharsetReader = charsetReader

	var (
		root   *element
		stack  []*element
		starts []int
		text   strings.Builder
		done   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if done {
				return nil, fmt.Errorf("junk after document element: <%s>", t.Name.Local)
			}
			t = t.Copy()
			el := &element{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
			starts = append(starts, text.Len())
		case xml.EndElement:
			last := len(stack) - 1
			stack[last].text = text.String()[starts[last]:]
			stack, starts = stack[:last], starts[:last]
			if len(stack) == 0 {
				done = true
			}
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, errors.New("character data outside document element")
				}
				continue
			}
			text.Write(t)
		}
	}
	if root == nil {
		return nil, errors.New("no document element found")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name.Local)
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-16", "utf-16le", "utf-16be", "utf16":
		// Already transcoded by the BOM override.
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}

// matcher selects elements by local name, optionally restricted to a set of
// namespaces. An empty set matches any namespace.
type matcher struct {
	local  string
	spaces []string
}

func named(local string, spaces ...string) matcher {
	return matcher{local: local, spaces: spaces}
}

func (m matcher) match(n xml.Name) bool {
	if n.Local != m.local {
		return false
	}
	if len(m.spaces) == 0 {
		return true
	}
	for _, s := range m.spaces {
		if n.Space == s {
			return true
		}
	}
	return false
}

// findAll returns every descendant of el (el included) selected by m, in
// document order.
func findAll(el *element, m matcher) []*element {
	var out []*element
	var walk func(*element)
	walk = func(e *element) {
		if m.match(e.name) {
			out = append(out, e)
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(el)
	return out
}

// findFirst returns the first descendant of el (el included) selected by m.
func findFirst(el *element, m matcher) *element {
	if m.match(el.name) {
		return el
	}
	for _, c := range el.children {
		if found := findFirst(c, m); found != nil {
			return found
		}
	}
	return nil
}

// child returns the first direct child of el selected by m.
func child(el *element, m matcher) *element {
	for _, c := range el.children {
		if m.match(c.name) {
			return c
		}
	}
	return nil
}

// attr returns the value of the first attribute selected by m.
func attr(el *element, m matcher) (string, bool) {
	for _, a := range el.attrs {
		if m.match(a.Name) {
			return a.Value, true
		}
	}
	return "", false
}

// flatText returns the trimmed text content of el, inline markup dropped.
func flatText(el *element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.text)
}
