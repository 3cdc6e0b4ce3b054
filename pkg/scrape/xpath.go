package scrape

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const unknownXPath = "/unknown[1]"

// BuildXPath returns the positional path of n, anchored at body.
//
// Each step is tag[k] where k counts n and its preceding siblings with the
// same tag. The walk stops at body (which contributes body[1]), at html, or
// at the document node.
func BuildXPath(n *html.Node) string {
	var components []string

	for cur := n; cur != nil && cur.Type == html.ElementNode; {
		components = append(components, cur.Data+"["+strconv.Itoa(siblingPosition(cur))+"]")

		cur = cur.Parent
		if cur != nil && cur.Type == html.ElementNode && (cur.Data == "body" || cur.Data == "html") {
			if cur.Data == "body" {
				components = append(components, "body[1]")
			}
			break
		}
	}

	if len(components) == 0 {
		return unknownXPath
	}

	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return "/" + strings.Join(components, "/")
}

func siblingPosition(n *html.Node) int {
	position := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			position++
		}
	}
	return position
}
