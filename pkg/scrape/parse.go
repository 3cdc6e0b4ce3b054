// Package scrape turns an HTML page into an indexed Document.
package scrape

import (
	"io"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

const (
	maxElementText = 200
	maxLinkText    = 100
	maxAltText     = 100
	maxHeadingText = 200
	maxBlockText   = 300
	minBlockText   = 10
	maxTextBlocks  = 100
	noTitle        = "No title"
)

// strippedTags never carry page content and are removed before indexing.
var strippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"head":     true,
}

// multiValuedAttrs are split on whitespace and exposed as string lists.
var multiValuedAttrs = map[string]bool{
	"class":          true,
	"rel":            true,
	"rev":            true,
	"headers":        true,
	"accesskey":      true,
	"accept-charset": true,
	"dropzone":       true,
}

// Parse reads an HTML page and builds its Document. pageURL is used to
// resolve relative link and image references. ScrapedAt and ScrapeID are
// left for the caller to stamp.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.New(errors.CodeParseFailed, "scrape", "failed to parse HTML", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	meta := Meta{
		URL:             pageURL,
		Title:           extractTitle(root),
		MetaDescription: extractMetaDescription(root),
	}

	strip(root)

	content := findFirst(root, "body")
	if content == nil {
		content = findFirst(root, "html")
	}
	if content == nil {
		content = root
	}

	index := BuildIndex(content, base)
	index.TextContent = collectTextBlocks(content)

	return &Document{
		Meta:  meta,
		Index: index,
		Stats: computeStats(index),
	}, nil
}

// ParseEncoded is Parse for raw response bytes. The character encoding is
// taken from contentType, then a BOM or <meta charset>, and the page is
// transcoded to UTF-8 before parsing. Unknown encodings are read as UTF-8.
func ParseEncoded(r io.Reader, contentType, pageURL string) (*Document, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, errors.New(errors.CodeParseFailed, "scrape", "failed to decode page", err)
	}
	return Parse(decoded, pageURL)
}

// BuildIndex visits every element below root in document order and indexes it.
func BuildIndex(root *html.Node, base *url.URL) *Index {
	index := newIndex()

	walkElements(root, func(n *html.Node) {
		tag := n.Data
		xpath := BuildXPath(n)
		text := nodeText(n)

		el := &Element{
			Type:       "element",
			Tag:        tag,
			XPath:      xpath,
			Attributes: attributes(n),
			Text:       truncate(text, maxElementText),
		}

		index.ByTag[tag] = append(index.ByTag[tag], el)
		if _, seen := index.ByXPath[xpath]; !seen {
			index.XPathOrder = append(index.XPathOrder, xpath)
		}
		index.ByXPath[xpath] = el

		if classes := strings.Fields(attr(n, "class")); len(classes) > 0 {
			key := strings.Join(classes, " ")
			index.ByClass[key] = append(index.ByClass[key], el)
		}
		if id := attr(n, "id"); id != "" {
			index.ByID[id] = el
		}

		switch {
		case tag == "a" && attr(n, "href") != "":
			index.Links = append(index.Links, Link{
				Text:  truncate(text, maxLinkText),
				URL:   resolve(base, attr(n, "href")),
				XPath: xpath,
			})
		case tag == "img" && attr(n, "src") != "":
			index.Images = append(index.Images, Image{
				Src:   resolve(base, attr(n, "src")),
				Alt:   truncate(attr(n, "alt"), maxAltText),
				XPath: xpath,
			})
		case headingLevel(tag) > 0:
			if text != "" {
				index.Headings = append(index.Headings, Heading{
					Text:  truncate(text, maxHeadingText),
					Level: headingLevel(tag),
					XPath: xpath,
				})
			}
		case tag == "table":
			index.Tables = append(index.Tables, Table{
				XPath: xpath,
				Rows:  countDescendants(n, "tr"),
			})
		case tag == "form":
			method := attr(n, "method")
			if method == "" {
				method = "GET"
			}
			index.Forms = append(index.Forms, Form{
				XPath:  xpath,
				Action: attr(n, "action"),
				Method: strings.ToUpper(method),
			})
		}
	})

	return index
}

// collectTextBlocks picks the first p/div/span elements whose content is a
// single string and keeps the ones long enough to be meaningful.
func collectTextBlocks(root *html.Node) []TextBlock {
	blocks := []TextBlock{}
	candidates := 0

	walkElements(root, func(n *html.Node) {
		if candidates >= maxTextBlocks {
			return
		}
		switch n.Data {
		case "p", "div", "span":
		default:
			return
		}
		if !hasSingleString(n) {
			return
		}
		candidates++

		text := nodeText(n)
		if utf8.RuneCountInString(text) > minBlockText {
			blocks = append(blocks, TextBlock{
				Text:  truncate(text, maxBlockText),
				XPath: BuildXPath(n),
			})
		}
	})

	return blocks
}

func computeStats(index *Index) Stats {
	tags := make([]string, 0, len(index.ByTag))
	for tag := range index.ByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return Stats{
		TotalElements: len(index.ByXPath),
		LinksCount:    len(index.Links),
		ImagesCount:   len(index.Images),
		HeadingsCount: len(index.Headings),
		UniqueTags:    tags,
	}
}

func extractTitle(root *html.Node) string {
	title := findFirst(root, "title")
	if title == nil {
		return noTitle
	}
	text, ok := singleString(title)
	if !ok || strings.TrimSpace(text) == "" {
		return noTitle
	}
	return strings.TrimSpace(text)
}

func extractMetaDescription(root *html.Node) *string {
	var found *string
	walkElements(root, func(n *html.Node) {
		if found != nil || n.Data != "meta" {
			return
		}
		if name, ok := lookupAttr(n, "name"); ok && name == "description" {
			content := attr(n, "content")
			found = &content
		}
	})
	return found
}

func strip(root *html.Node) {
	var doomed []*html.Node
	walkElements(root, func(n *html.Node) {
		if strippedTags[n.Data] {
			doomed = append(doomed, n)
		}
	})
	for _, n := range doomed {
		// a stripped ancestor may already have detached n
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func attributes(n *html.Node) map[string]interface{} {
	attrs := make(map[string]interface{}, len(n.Attr))
	for _, a := range n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		if _, dup := attrs[key]; dup {
			continue
		}
		if multiValuedAttrs[key] {
			attrs[key] = strings.Fields(a.Val)
			continue
		}
		attrs[key] = a.Val
	}
	return attrs
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
