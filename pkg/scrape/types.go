package scrape

import "time"

// Element is one indexed HTML element. The same *Element is shared by every
// index that references it.
type Element struct {
	Type       string                 `json:"type"`
	Tag        string                 `json:"tag"`
	XPath      string                 `json:"xpath"`
	Attributes map[string]interface{} `json:"attributes"`
	Text       string                 `json:"text"`
}

type Link struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	XPath string `json:"xpath"`
}

type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt"`
	XPath string `json:"xpath"`
}

type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	XPath string `json:"xpath"`
}

type Table struct {
	XPath string `json:"xpath"`
	Rows  int    `json:"rows"`
}

type Form struct {
	XPath  string `json:"xpath"`
	Action string `json:"action"`
	Method string `json:"method"`
}

type TextBlock struct {
	Text  string `json:"text"`
	XPath string `json:"xpath"`
}

// Index holds every lookup structure built for a page.
type Index struct {
	ByTag       map[string][]*Element `json:"by_tag"`
	ByClass     map[string][]*Element `json:"by_class"`
	ByID        map[string]*Element   `json:"by_id"`
	ByXPath     map[string]*Element   `json:"by_xpath"`
	Links       []Link                `json:"links"`
	Images      []Image               `json:"images"`
	TextContent []TextBlock           `json:"text_content"`
	Headings    []Heading             `json:"headings"`
	Tables      []Table               `json:"tables"`
	Forms       []Form                `json:"forms"`

	// XPathOrder lists the keys of ByXPath in document order.
	XPathOrder []string `json:"xpath_order"`
}

func newIndex() *Index {
	return &Index{
		ByTag:       make(map[string][]*Element),
		ByClass:     make(map[string][]*Element),
		ByID:        make(map[string]*Element),
		ByXPath:     make(map[string]*Element),
		Links:       []Link{},
		Images:      []Image{},
		TextContent: []TextBlock{},
		Headings:    []Heading{},
		Tables:      []Table{},
		Forms:       []Form{},
		XPathOrder:  []string{},
	}
}

type Meta struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	MetaDescription *string   `json:"meta_description"`
	ScrapedAt       time.Time `json:"scraped_at"`
	ScrapeID        string    `json:"scrape_id"`
}

type Stats struct {
	TotalElements int      `json:"total_elements"`
	LinksCount    int      `json:"links_count"`
	ImagesCount   int      `json:"images_count"`
	HeadingsCount int      `json:"headings_count"`
	UniqueTags    []string `json:"unique_tags"`
}

// Document is the complete result of scraping one page.
type Document struct {
	Meta  Meta   `json:"meta"`
	Index *Index `json:"index"`
	Stats Stats  `json:"stats"`
}
