package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PaesslerAG/jsonpath"
	json "github.com/goccy/go-json"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	domainevents "github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
)

const (
	xpathSampleLimit = 10
	previewRunes     = 100
)

// ErrDataNotFound is returned for unknown slugs.
var ErrDataNotFound = errors.New(errors.CodeNotFound, "service", "Data not found", nil)

// FilterResult answers tag and XPath filters. XPathMiss is set only when an
// XPath filter matched nothing.
type FilterResult struct {
	FilterType  string            `json:"filter_type"`
	FilterValue string            `json:"filter_value"`
	Count       int               `json:"count"`
	Elements    []*scrape.Element `json:"elements"`
	*XPathMiss
}

type XPathMiss struct {
	Message               string   `json:"message"`
	SearchedFor           string   `json:"searched_for"`
	AvailableXPathsSample []string `json:"available_xpaths_sample"`
}

type XPathTestResult struct {
	TestXPath                 string          `json:"test_xpath"`
	Found                     bool            `json:"found"`
	Element                   *scrape.Element `json:"element"`
	AllXPathsStartingWithBody []string        `json:"all_xpaths_starting_with_body"`
}

type BrowseEntry struct {
	XPath         string                 `json:"xpath"`
	Type          string                 `json:"type"`
	Tag           string                 `json:"tag"`
	Attributes    map[string]interface{} `json:"attributes"`
	TextPreview   string                 `json:"text_preview"`
	ChildrenCount int                    `json:"children_count"`
}

type BrowseResult struct {
	TotalElements int           `json:"total_elements"`
	Elements      []BrowseEntry `json:"elements"`
}

// Document returns the full stored document for slug.
func (s *ScrapeService) Document(ctx context.Context, slug string) (*scrape.Document, error) {
	doc, err := s.deps.Store.Get(ctx, slug)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, ErrDataNotFound
		}
		return nil, err
	}
	return doc, nil
}

// FilterByTag returns every element with the given tag name.
func (s *ScrapeService) FilterByTag(ctx context.Context, slug, tag string) (*FilterResult, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	elements := doc.Index.ByTag[strings.ToLower(tag)]
	if elements == nil {
		elements = []*scrape.Element{}
	}
	return &FilterResult{
		FilterType:  "tag",
		FilterValue: tag,
		Count:       len(elements),
		Elements:    elements,
	}, nil
}

// FilterByXPath looks up the element at an exact XPath.
func (s *ScrapeService) FilterByXPath(ctx context.Context, slug, xpath string) (*FilterResult, error) {
	if xpath == "" {
		return nil, errors.New(errors.CodeMissingParameter, "service", "xpath query parameter is required", nil)
	}
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}

	result := &FilterResult{FilterType: "xpath", FilterValue: xpath}
	if el, ok := doc.Index.ByXPath[xpath]; ok {
		result.Count = 1
		result.Elements = []*scrape.Element{el}
		return result, nil
	}

	result.Elements = []*scrape.Element{}
	result.XPathMiss = &XPathMiss{
		Message:               "No element found at this XPath",
		SearchedFor:           xpath,
		AvailableXPathsSample: firstN(doc.Index.XPathOrder, xpathSampleLimit),
	}
	return result, nil
}

// TestXPath reports whether xpath exists, with a sample of XPaths under
// /body for comparison.
func (s *ScrapeService) TestXPath(ctx context.Context, slug, xpath string) (*XPathTestResult, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(xpath, "/") {
		xpath = "/" + xpath
	}

	el, found := doc.Index.ByXPath[xpath]
	var underBody []string
	for _, p := range doc.Index.XPathOrder {
		if strings.HasPrefix(p, "/body") {
			underBody = append(underBody, p)
		}
	}

	return &XPathTestResult{
		TestXPath:                 xpath,
		Found:                     found,
		Element:                   el,
		AllXPathsStartingWithBody: firstN(underBody, xpathSampleLimit),
	}, nil
}

// Browse lists every element in document order with a short text preview
// and its number of direct children.
func (s *ScrapeService) Browse(ctx context.Context, slug string) (*BrowseResult, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}

	children := make(map[string]int, len(doc.Index.XPathOrder))
	for _, p := range doc.Index.XPathOrder {
		if i := strings.LastIndex(p, "/"); i > 0 {
			children[p[:i]]++
		}
	}

	entries := make([]BrowseEntry, 0, len(doc.Index.XPathOrder))
	for _, p := range doc.Index.XPathOrder {
		el := doc.Index.ByXPath[p]
		if el == nil {
			continue
		}
		entries = append(entries, BrowseEntry{
			XPath:         p,
			Type:          "element",
			Tag:           el.Tag,
			Attributes:    el.Attributes,
			TextPreview:   textPreview(el.Text),
			ChildrenCount: children[p],
		})
	}
	return &BrowseResult{TotalElements: len(entries), Elements: entries}, nil
}

func (s *ScrapeService) Links(ctx context.Context, slug string) ([]scrape.Link, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	return doc.Index.Links, nil
}

func (s *ScrapeService) Images(ctx context.Context, slug string) ([]scrape.Image, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	return doc.Index.Images, nil
}

func (s *ScrapeService) Headings(ctx context.Context, slug string) ([]scrape.Heading, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	return doc.Index.Headings, nil
}

func (s *ScrapeService) Text(ctx context.Context, slug string) ([]scrape.TextBlock, error) {
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}
	return doc.Index.TextContent, nil
}

// Query evaluates a JSONPath expression against the JSON form of the
// document, e.g. "$.index.headings[*].text".
func (s *ScrapeService) Query(ctx context.Context, slug, path string) (interface{}, error) {
	if path == "" {
		return nil, errors.New(errors.CodeMissingParameter, "service", "path query parameter is required", nil)
	}
	doc, err := s.Document(ctx, slug)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.New(errors.CodeInternalError, "service", "could not encode document", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.New(errors.CodeInternalError, "service", "could not decode document", err)
	}

	value, err := jsonpath.Get(path, generic)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidParameter, "service", "invalid path", err)
	}
	return value, nil
}

// List returns stored result summaries, newest first.
func (s *ScrapeService) List(ctx context.Context) ([]store.Summary, error) {
	summaries, err := s.deps.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.SetStoredResults(len(summaries))
	return summaries, nil
}

// Delete removes a stored result.
func (s *ScrapeService) Delete(ctx context.Context, slug string) error {
	if err := s.deps.Store.Delete(ctx, slug); err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return ErrDataNotFound
		}
		return err
	}
	s.publish(ctx, domainevents.ResultDeleted{Slug: slug, Timestamp: s.deps.Clock()})
	s.logger.Info().Str("slug", slug).Msg("Deleted result")
	return nil
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string{}, items...)
}

func textPreview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "..."
}
