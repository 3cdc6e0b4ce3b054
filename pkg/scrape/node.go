package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// walkElements calls fn for every element node below root, in document order.
// root itself is not visited.
func walkElements(root *html.Node, fn func(*html.Node)) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walkElements(c, fn)
	}
}

func findFirst(root *html.Node, tag string) *html.Node {
	if root.Type == html.ElementNode && root.Data == tag {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func countDescendants(root *html.Node, tag string) int {
	count := 0
	walkElements(root, func(n *html.Node) {
		if n.Data == tag {
			count++
		}
	})
	return count
}

// nodeText concatenates every descendant text node, each trimmed, skipping
// the empty ones.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(strings.TrimSpace(c.Data))
			case html.ElementNode:
				visit(c)
			}
		}
	}
	visit(n)
	return b.String()
}

// singleString resolves n to a single string when its only child is a text
// or comment node, or an element that itself resolves to a single string.
func singleString(n *html.Node) (string, bool) {
	child := n.FirstChild
	if child == nil || child.NextSibling != nil {
		return "", false
	}
	switch child.Type {
	case html.TextNode, html.CommentNode:
		return child.Data, true
	case html.ElementNode:
		return singleString(child)
	default:
		return "", false
	}
}

func hasSingleString(n *html.Node) bool {
	_, ok := singleString(n)
	return ok
}
