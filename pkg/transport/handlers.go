package transport

import (
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

type scrapeRequest struct {
	URL string `json:"url"`
}

// handleScrape accepts the URL as an urlencoded or multipart form field, or
// as a JSON body.
func (t *HTTPTransport) handleScrape(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var target string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.sendError(w, errors.New(errors.CodeInvalidParameter, "transport", "invalid request body", err))
			return
		}
		target = req.URL
	} else {
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxFormBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			t.sendError(w, errors.New(errors.CodeInvalidParameter, "transport", "invalid form body", err))
			return
		}
		if _, ok := r.PostForm["url"]; !ok {
			t.sendError(w, errors.New(errors.CodeMissingParameter, "transport", "Field required: url", nil))
			return
		}
		target = r.PostForm.Get("url")
	}

	result, err := t.service.Scrape(r.Context(), target)
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, result)
}

func (t *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := t.service.List(r.Context())
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, map[string]interface{}{
		"results": summaries,
		"count":   len(summaries),
	})
}

func (t *HTTPTransport) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := t.service.Document(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, doc)
}

func (t *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := t.service.Delete(r.Context(), slug); err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, map[string]interface{}{"success": true, "slug": slug})
}

func (t *HTTPTransport) handleFilterTag(w http.ResponseWriter, r *http.Request) {
	result, err := t.service.FilterByTag(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "tag"))
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, result)
}

func (t *HTTPTransport) handleFilterXPath(w http.ResponseWriter, r *http.Request) {
	result, err := t.service.FilterByXPath(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("xpath"))
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, result)
}

// handleTestXPath answers unknown slugs with 200 and an error field, so the
// form's XPath tester can render it inline.
func (t *HTTPTransport) handleTestXPath(w http.ResponseWriter, r *http.Request) {
	xpath := chi.URLParam(r, "*")
	result, err := t.service.TestXPath(r.Context(), chi.URLParam(r, "slug"), xpath)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			t.sendJSON(w, http.StatusOK, map[string]string{"error": "Xpath not found"})
			return
		}
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, result)
}

func (t *HTTPTransport) handleBrowse(w http.ResponseWriter, r *http.Request) {
	result, err := t.service.Browse(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, result)
}

func (t *HTTPTransport) handleLinks(w http.ResponseWriter, r *http.Request) {
	links, err := t.service.Links(r.Context(), chi.URLParam(r, "slug"))
	t.sendList(w, links, err)
}

func (t *HTTPTransport) handleImages(w http.ResponseWriter, r *http.Request) {
	images, err := t.service.Images(r.Context(), chi.URLParam(r, "slug"))
	t.sendList(w, images, err)
}

func (t *HTTPTransport) handleHeadings(w http.ResponseWriter, r *http.Request) {
	headings, err := t.service.Headings(r.Context(), chi.URLParam(r, "slug"))
	t.sendList(w, headings, err)
}

func (t *HTTPTransport) handleText(w http.ResponseWriter, r *http.Request) {
	text, err := t.service.Text(r.Context(), chi.URLParam(r, "slug"))
	t.sendList(w, text, err)
}

func (t *HTTPTransport) handleQuery(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	value, err := t.service.Query(r.Context(), chi.URLParam(r, "slug"), path)
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, map[string]interface{}{
		"path":   path,
		"result": value,
	})
}

func (t *HTTPTransport) sendList(w http.ResponseWriter, list interface{}, err error) {
	if err != nil {
		t.sendError(w, err)
		return
	}
	t.sendJSON(w, http.StatusOK, list)
}
