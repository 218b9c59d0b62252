// Package render builds the widget DOM as golang.org/x/net/html node trees.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: tag,
		Data:     tag.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// withChildren appends children to n and returns n.
func withChildren(n *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

// textElement is a single element holding one text node.
func textElement(tag atom.Atom, s string, attrs ...html.Attribute) *html.Node {
	return withChildren(element(tag, attrs...), text(s))
}

// Clone returns a deep copy of n that is detached from any tree. A node can
// only have one parent, so stored fragments are cloned before reuse.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(Clone(c))
	}
	return out
}

// HTML serializes nodes in order.
func HTML(nodes ...*html.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
	}
	return b.String(), nil
}
