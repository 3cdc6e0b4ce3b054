package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapetoapi/scrapetoapi/pkg/cache"
	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	domainevents "github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
	"github.com/scrapetoapi/scrapetoapi/pkg/fetch"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
)

const testPage = `<html><head><title>Test Page</title></head>
<body>
<div id="main" class="box">
<h1>Hello</h1>
<p>A paragraph that is long enough to count.</p>
<a href="/next">Next page</a>
<img src="/logo.png" alt="Logo">
</div>
<ul><li>one</li><li>two</li></ul>
</body></html>`

type recordingPublisher struct {
	mu     sync.Mutex
	events []domainevents.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domainevents.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishAsync(ctx context.Context, event domainevents.DomainEvent) {
	_ = p.Publish(ctx, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fetcherFunc func(ctx context.Context, rawURL string) (*fetch.Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string) (*fetch.Page, error) {
	return f(ctx, rawURL)
}

func staticFetcher(body string, calls *int32) PageFetcher {
	return fetcherFunc(func(_ context.Context, rawURL string) (*fetch.Page, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return &fetch.Page{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body), Attempts: 1}, nil
	})
}

func sequence(slugs ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		s := slugs[i%len(slugs)]
		i++
		return s
	}
}

type fixture struct {
	svc       *ScrapeService
	store     *store.MemoryStore
	cache     *cache.Cache
	publisher *recordingPublisher
}

func newFixture(t *testing.T, fetcher PageFetcher, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemoryStore(),
		cache:     cache.New(time.Hour),
		publisher: &recordingPublisher{},
	}
	svc, err := NewScrapeService(Dependencies{
		Logger:         zerolog.Nop(),
		Fetcher:        fetcher,
		Cache:          f.cache,
		Store:          f.store,
		EventPublisher: f.publisher,
	}, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestDependencies_Validate(t *testing.T) {
	err := (&Dependencies{}).Validate()
	require.Error(t, err)
	for _, want := range []string{"fetcher", "cache", "store", "event publisher"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = NewScrapeService(Dependencies{})
	assert.Error(t, err)
}

func TestScrape_FetchesParsesAndStores(t *testing.T) {
	var calls int32
	f := newFixture(t, staticFetcher(testPage, &calls), WithSlugGenerator(sequence("scrape01", "slug0001")))

	res, err := f.svc.Scrape(context.Background(), "  https://example.com/page  ")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.Cached)
	assert.Equal(t, "slug0001", res.Slug)
	assert.Equal(t, "/api/slug0001", res.APIEndpoint)
	require.NotNil(t, res.ScrapeTime)
	assert.True(t, strings.HasPrefix(res.Message, "URL scraped successfully in "))
	assert.True(t, strings.HasSuffix(res.Message, "s!"))
	assert.Equal(t, "Test Page", res.Preview.Title)
	assert.Equal(t, 1, res.Preview.LinksCount)
	assert.Equal(t, 1, res.Preview.ImagesCount)
	assert.Equal(t, 1, res.Preview.HeadingsCount)

	doc, err := f.svc.Document(context.Background(), "slug0001")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", doc.Meta.URL)
	assert.Equal(t, "scrape01", doc.Meta.ScrapeID)
	assert.False(t, doc.Meta.ScrapedAt.IsZero())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{domainevents.TypeScrapeCompleted}, f.publisher.types())
}

func TestScrape_DecodesDeclaredCharset(t *testing.T) {
	body := "<html><head><title>Caf\xe9</title></head><body><h1>Caf\xe9 cr\xe8me</h1></body></html>"
	fetcher := fetcherFunc(func(_ context.Context, rawURL string) (*fetch.Page, error) {
		return &fetch.Page{
			URL:         rawURL,
			StatusCode:  http.StatusOK,
			ContentType: "text/html; charset=iso-8859-1",
			Body:        []byte(body),
			Attempts:    1,
		}, nil
	})
	f := newFixture(t, fetcher)

	res, err := f.svc.Scrape(context.Background(), "https://example.com/latin1")
	require.NoError(t, err)
	assert.Equal(t, "Café", res.Preview.Title)

	doc, err := f.svc.Document(context.Background(), res.Slug)
	require.NoError(t, err)
	require.Len(t, doc.Index.Headings, 1)
	assert.Equal(t, "Café crème", doc.Index.Headings[0].Text)
}

func TestScrape_CacheHitStoresUnderNewSlug(t *testing.T) {
	var calls int32
	f := newFixture(t, staticFetcher(testPage, &calls), WithSlugGenerator(sequence("id000001", "first001", "second01")))

	first, err := f.svc.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	second, err := f.svc.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "first001", first.Slug)
	assert.Equal(t, "second01", second.Slug)
	assert.True(t, second.Cached)
	assert.Nil(t, second.ScrapeTime)
	assert.Equal(t, "URL scraped successfully! (cached)", second.Message)
	assert.Equal(t, first.Preview, second.Preview)

	summaries, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestScrape_EmptyURL(t *testing.T) {
	f := newFixture(t, staticFetcher(testPage, nil))

	_, err := f.svc.Scrape(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingParameter))
}

func TestScrape_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	fetcher := fetch.New(srv.Client(), fetch.Options{Timeout: 5 * time.Second}, zerolog.Nop())
	f := newFixture(t, fetcher)

	_, err := f.svc.Scrape(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeScrapeFailed, errors.CodeOf(err))
	assert.Equal(t, "Scraping failed: 404 Not Found for url: "+srv.URL+"/missing", errors.DetailOf(err))

	assert.Equal(t, []string{domainevents.TypeScrapeFailed}, f.publisher.types())
	assert.Equal(t, 0, f.cache.Len())
}

func TestScrape_InvalidURL(t *testing.T) {
	fetcher := fetch.New(nil, fetch.Options{}, zerolog.Nop())
	f := newFixture(t, fetcher)

	_, err := f.svc.Scrape(context.Background(), "not a url")
	require.Error(t, err)
	assert.Equal(t, errors.CodeScrapeFailed, errors.CodeOf(err))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameter))
}

func TestScrape_RetriesSlugCollision(t *testing.T) {
	f := newFixture(t, staticFetcher(testPage, nil), WithSlugGenerator(sequence("id000001", "taken001", "fresh001")))
	require.NoError(t, f.store.Put(context.Background(), "taken001", nil))

	res, err := f.svc.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh001", res.Slug)
}

func TestScrape_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, staticFetcher(testPage, nil), WithSlugGenerator(sequence("taken001")))
	require.NoError(t, f.store.Put(context.Background(), "taken001", nil))

	_, err := f.svc.Scrape(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInternalError, errors.CodeOf(err))
}

func TestScrape_CollapsesConcurrentFetches(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	fetcher := fetcherFunc(func(_ context.Context, rawURL string) (*fetch.Page, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return &fetch.Page{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(testPage), Attempts: 1}, nil
	})
	f := newFixture(t, fetcher)

	const callers = 5
	var wg sync.WaitGroup
	slugs := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Scrape(context.Background(), "https://example.com")
			if assert.NoError(t, err) {
				slugs <- res.Slug
			}
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(slugs)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	seen := map[string]bool{}
	for s := range slugs {
		seen[s] = true
	}
	assert.Len(t, seen, callers)
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Second, "1.0"},
		{500 * time.Millisecond, "0.5"},
		{1234 * time.Millisecond, "1.23"},
		{0, "0.0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, formatSeconds(roundSeconds(tt.in)))
		})
	}
}
