package browsertest

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// query is a compiled selector bound to the element tree it is matched against.
type query struct {
	sel   cascadia.SelectorGroup
	nodes map[*Element]*html.Node
}

// compile parses selector the way querySelectorAll does.
func compile(selector string) (cascadia.SelectorGroup, error) {
	return cascadia.ParseGroup(selector)
}

// mirror builds an html tree for the light tree below root so combinators,
// sibling and structural pseudo-classes see real parent and sibling links.
// Shadow trees and frame documents are separate roots and are not mirrored.
func mirror(sel cascadia.SelectorGroup, root *Element) *query {
	q := &query{sel: sel, nodes: map[*Element]*html.Node{}}
	top := &html.Node{Type: html.DocumentNode}
	var build func(parent *html.Node, e *Element)
	build = func(parent *html.Node, e *Element) {
		for _, c := range e.Children {
			n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(c.Tag)}
			for k, v := range c.Attrs {
				n.Attr = append(n.Attr, html.Attribute{Key: k, Val: v})
			}
			parent.AppendChild(n)
			q.nodes[c] = n
			build(n, c)
		}
	}
	build(top, root)
	return q
}

func (q *query) matches(e *Element) bool {
	n, ok := q.nodes[e]
	return ok && q.sel.Match(n)
}
