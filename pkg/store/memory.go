package store

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	docs cmap.ConcurrentMap[string, *scrape.Document]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: cmap.New[*scrape.Document]()}
}

func (s *MemoryStore) Put(_ context.Context, slug string, doc *scrape.Document) error {
	if !s.docs.SetIfAbsent(slug, doc) {
		return alreadyExists(slug)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, slug string) (*scrape.Document, error) {
	doc, ok := s.docs.Get(slug)
	if !ok {
		return nil, notFound(slug)
	}
	return doc, nil
}

func (s *MemoryStore) Delete(_ context.Context, slug string) error {
	if _, ok := s.docs.Pop(slug); !ok {
		return notFound(slug)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	out := make([]Summary, 0, s.docs.Count())
	for item := range s.docs.IterBuffered() {
		out = append(out, summarize(item.Key, item.Val))
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for item := range s.docs.IterBuffered() {
		if item.Val.Meta.ScrapedAt.Before(cutoff) {
			s.docs.Remove(item.Key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
