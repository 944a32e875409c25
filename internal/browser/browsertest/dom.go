// Package browsertest provides an in-memory browser.Driver over a tiny DOM
// tree, with hooks for simulating asynchronous page updates and stale nodes.
package browsertest

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/v0xg/surveydriver/internal/browser"
)

// Node is one element of the fake document
type Node struct {
	Tag      string
	ID       string
	Classes  []string
	Attrs    map[string]string
	Style    map[string]string
	Box      image.Rectangle
	Hidden   bool
	Disabled bool
	Covered  bool
	Value    string

	// OnClick runs after a successful click on this node
	OnClick func(n *Node)

	Clicks int

	parent   *Node
	children []*Node
	detached bool
}

// El creates a detached node
func El(tag string) *Node {
	return &Node{Tag: tag, Attrs: map[string]string{}, Style: map[string]string{}, Box: image.Rect(10, 10, 110, 40)}
}

func (n *Node) WithID(id string) *Node {
	n.ID = id
	return n
}

func (n *Node) WithClass(classes ...string) *Node {
	n.Classes = append(n.Classes, classes...)
	return n
}

func (n *Node) WithStyle(property, value string) *Node {
	n.Style[property] = value
	return n
}

func (n *Node) WithAttr(name, value string) *Node {
	n.Attrs[name] = value
	return n
}

// Append attaches children and returns n
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		c.detached = false
		n.children = append(n.children, c)
	}
	return n
}

// Remove detaches n from its parent; handles to n and its subtree go stale
func (n *Node) Remove() {
	if n.parent != nil {
		p := n.parent
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	n.parent = nil
	n.markDetached()
}

func (n *Node) markDetached() {
	n.detached = true
	for _, c := range n.children {
		c.markDetached()
	}
}

// Replace swaps n for r in the tree, as a full re-render of n would
func (n *Node) Replace(r *Node) {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			r.parent = p
			p.children[i] = r
			break
		}
	}
	n.parent = nil
	n.markDetached()
}

func (n *Node) Children() []*Node { return n.children }

func (n *Node) HasClass(c string) bool {
	for _, x := range n.Classes {
		if x == c {
			return true
		}
	}
	return false
}

func (n *Node) AddClass(c string) {
	if !n.HasClass(c) {
		n.Classes = append(n.Classes, c)
	}
}

func (n *Node) RemoveClass(c string) {
	out := n.Classes[:0]
	for _, x := range n.Classes {
		if x != c {
			out = append(out, x)
		}
	}
	n.Classes = out
}

func (n *Node) attr(name string) string {
	switch name {
	case "id":
		return n.ID
	case "class":
		return strings.Join(n.Classes, " ")
	case "value":
		if v, ok := n.Attrs["value"]; ok {
			return v
		}
		return n.Value
	}
	return n.Attrs[name]
}

func (n *Node) matches(by browser.By, value string) bool {
	switch by {
	case browser.ByID:
		return n.ID == value
	case browser.ByClass:
		return n.HasClass(value)
	case browser.ByTag:
		return strings.EqualFold(n.Tag, value)
	case browser.ByCSS:
		return matchCSS(n, value)
	}
	return false
}

// matchCSS understands the forms this module uses: tag, #id, .class,
// tag[attr='v'] and [attr="v"].
func matchCSS(n *Node, sel string) bool {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "#"):
		return n.ID == sel[1:]
	case strings.HasPrefix(sel, "."):
		return n.HasClass(sel[1:])
	}
	tag, rest, hasAttr := strings.Cut(sel, "[")
	if tag != "" && !strings.EqualFold(n.Tag, tag) {
		return false
	}
	if !hasAttr {
		return true
	}
	rest = strings.TrimSuffix(rest, "]")
	name, val, ok := strings.Cut(rest, "=")
	if !ok {
		_, present := n.Attrs[name]
		return present || n.attr(name) != ""
	}
	val = strings.Trim(val, `'"`)
	if strings.HasSuffix(name, "~") {
		return n.HasClass(val)
	}
	return n.attr(name) == val
}

// walk visits descendants of n in document order
func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		fn(c)
		c.walk(fn)
	}
}

func (n *Node) find(by browser.By, value string) []*Node {
	var out []*Node
	n.walk(func(c *Node) {
		if c.matches(by, value) {
			out = append(out, c)
		}
	})
	return out
}

// HTML renders n the way outerHTML would, attributes sorted
func (n *Node) HTML() string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}

func (n *Node) render(b *strings.Builder) {
	fmt.Fprintf(b, "<%s", n.Tag)
	if n.ID != "" {
		fmt.Fprintf(b, ` id="%s"`, n.ID)
	}
	if len(n.Classes) > 0 {
		fmt.Fprintf(b, ` class="%s"`, strings.Join(n.Classes, " "))
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, ` %s="%s"`, k, n.Attrs[k])
	}
	b.WriteString(">")
	for _, c := range n.children {
		c.render(b)
	}
	if n.Value != "" && n.Tag != "input" {
		b.WriteString(n.Value)
	}
	fmt.Fprintf(b, "</%s>", n.Tag)
}
