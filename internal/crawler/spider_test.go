package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/wordspider/internal/extract"
	"github.com/nao1215/wordspider/internal/model"
	"github.com/nao1215/wordspider/internal/scope"
)

// recordingSink keeps every signal for assertions.
type recordingSink struct {
	mu         sync.Mutex
	dispatched []string
	failed     map[string]error
	results    []*model.Result
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failed: make(map[string]error)}
}

func (s *recordingSink) RequestDispatched(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = append(s.dispatched, u)
}

func (s *recordingSink) RequestFailed(u string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[u] = err
}

func (s *recordingSink) Collect(result *model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *recordingSink) collectedPaths(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.results))
	for _, r := range s.results {
		u, err := url.Parse(r.URL)
		if err != nil {
			t.Fatalf("invalid result URL %q: %v", r.URL, err)
		}
		paths = append(paths, u.Path)
	}
	slices.Sort(paths)
	return paths
}

func writeHTML(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}
}

func newTestSpider(t *testing.T, server *httptest.Server, sink Sink, opts ...SpiderOption) *Spider {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("invalid server URL: %v", err)
	}
	matcher := scope.New(u.Host, scope.Exact)
	router := NewRouter(extract.NewExtractor(extract.Options{MinLength: 3}), matcher)
	opts = append([]SpiderOption{WithRate(0)}, opts...)
	return NewSpider(server.Client(), router, sink, matcher, opts...)
}

func TestSpider(t *testing.T) {
	t.Parallel()

	newSite := func() *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/", writeHTML(`<html><head><title>Home</title></head><body>
			<a href="/page1">Page 1</a><a href="/page2#frag">Page 2</a>
			<a href="http://elsewhere.invalid/">External</a></body></html>`))
		mux.HandleFunc("/page1", writeHTML(`<html><body><a href="/deep">Deep</a><a href="/">Home</a></body></html>`))
		mux.HandleFunc("/page2", writeHTML(`<html><body>Page two <!-- <a href="/secret">s</a> --></body></html>`))
		mux.HandleFunc("/deep", writeHTML(`<html><body><a href="/deeper">Deeper</a></body></html>`))
		mux.HandleFunc("/deeper", writeHTML(`<html><body>Bottom</body></html>`))
		mux.HandleFunc("/secret", writeHTML(`<html><body>Hidden treasure</body></html>`))
		return httptest.NewServer(mux)
	}

	tests := []struct {
		name  string
		depth int
		want  []string
	}{
		{name: "depth one", depth: 1, want: []string{"/", "/page1", "/page2"}},
		{name: "depth two follows comment links", depth: 2, want: []string{"/", "/deep", "/page1", "/page2", "/secret"}},
		{name: "unlimited depth", depth: 0, want: []string{"/", "/deep", "/deeper", "/page1", "/page2", "/secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newSite()
			defer server.Close()

			sink := newRecordingSink()
			spider := newTestSpider(t, server, sink, WithMaxDepth(tt.depth), WithConcurrency(4))
			if err := spider.Crawl(context.Background(), server.URL); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := sink.collectedPaths(t)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			for _, u := range sink.dispatched {
				if u == "http://elsewhere.invalid/" {
					t.Error("out-of-scope link was dispatched")
				}
			}
			if stats := spider.Stats(); stats.PagesVisited != len(tt.want) {
				t.Errorf("expected %d pages visited, got %d", len(tt.want), stats.PagesVisited)
			}
		})
	}
}

func TestSpiderReportsFailures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", writeHTML(`<a href="/missing">m</a><a href="/away">a</a><a href="/moved">mv</a>`))
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.invalid/landing", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/target", writeHTML(`<p>Arrived safely</p>`))
	server := httptest.NewServer(mux)
	defer server.Close()

	sink := newRecordingSink()
	spider := newTestSpider(t, server, sink, WithMaxDepth(1))
	if err := spider.Crawl(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := sink.failed[server.URL+"/missing"]; !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus for /missing, got %v", err)
	}
	if err := sink.failed[server.URL+"/away"]; !errors.Is(err, ErrRedirectOutOfScope) {
		t.Errorf("expected ErrRedirectOutOfScope for /away, got %v", err)
	}
	if got := sink.collectedPaths(t); !slices.Equal(got, []string{"/", "/target"}) {
		t.Errorf("expected in-scope redirect to be followed, got %v", got)
	}
}

func TestSpiderSendsHeaders(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		cookie  string
		agent   string
		apiKeys []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookie = r.Header.Get("Cookie")
		agent = r.Header.Get("User-Agent")
		apiKeys = append(apiKeys, r.Header.Get("X-Api-Key"))
		mu.Unlock()
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain words")) //nolint:errcheck
	}))
	defer server.Close()

	sink := newRecordingSink()
	spider := newTestSpider(t, server, sink,
		WithCookie("session=abc"),
		WithHeaders(map[string]string{"X-Api-Key": "k1"}),
		WithSpiderUserAgent("wordspider-test"),
	)
	if err := spider.Crawl(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if cookie != "session=abc" {
		t.Errorf("expected cookie, got %q", cookie)
	}
	if agent != "wordspider-test" {
		t.Errorf("expected user agent, got %q", agent)
	}
	if !slices.Equal(apiKeys, []string{"k1"}) {
		t.Errorf("expected one request with api key, got %v", apiKeys)
	}
}

func TestSpiderRobots(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n") //nolint:errcheck
	})
	mux.HandleFunc("/", writeHTML(`<a href="/private/data">p</a><a href="/public">p</a>`))
	mux.HandleFunc("/private/data", writeHTML(`secret`))
	mux.HandleFunc("/public", writeHTML(`open`))
	server := httptest.NewServer(mux)
	defer server.Close()

	sink := newRecordingSink()
	spider := newTestSpider(t, server, sink, WithRobots(true))
	if err := spider.Crawl(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sink.collectedPaths(t); !slices.Equal(got, []string{"/", "/public"}) {
		t.Errorf("expected robots.txt to be obeyed, got %v", got)
	}
}

func TestSpiderCanceled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(writeHTML(`<p>never fetched</p>`))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newRecordingSink()
	spider := newTestSpider(t, server, sink)
	if err := spider.Crawl(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(sink.results) != 0 {
		t.Errorf("expected no results, got %d", len(sink.results))
	}
}

func TestSpiderDecodesCharset(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		// "café crème" in Latin-1.
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9, ' ', 'c', 'r', 0xE8, 'm', 'e'}) //nolint:errcheck
	}))
	defer server.Close()

	sink := newRecordingSink()
	spider := newTestSpider(t, server, sink)
	if err := spider.Crawl(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}
	words := sink.results[0].Words
	if !words.Has("café") || !words.Has("crème") {
		t.Errorf("expected decoded words, got %v", words.Sorted())
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},
		{"exact match", "/logout", "/logout", true},
		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},
		{"root no match prefix", "/admin/*", "/", false},
		{"nested admin", "/admin/*", "/admin/users/edit", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldCrawl(t *testing.T) {
	t.Parallel()

	matcher := scope.New("example.com", scope.Exact)
	newSpider := func(opts ...SpiderOption) *Spider {
		return NewSpider(http.DefaultClient, nil, newRecordingSink(), matcher, opts...)
	}

	t.Run("ignore takes precedence over follow", func(t *testing.T) {
		t.Parallel()

		spider := newSpider(
			WithIgnorePatterns([]string{"/api/internal/*"}),
			WithFollowPatterns([]string{"/api/*"}),
		)
		tests := []struct {
			url  string
			want bool
		}{
			{"http://example.com/api/v1/users", true},
			{"http://example.com/api/internal/secret", false},
			{"http://example.com/public/page", false},
		}
		for _, tt := range tests {
			if got := spider.shouldCrawl(tt.url); got != tt.want {
				t.Errorf("shouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("empty path treated as root", func(t *testing.T) {
		t.Parallel()

		spider := newSpider(WithFollowPatterns([]string{"/"}))
		if !spider.shouldCrawl("http://example.com") {
			t.Error("expected empty path to match root pattern")
		}
	})

	t.Run("enqueue filters scope and duplicates", func(t *testing.T) {
		t.Parallel()

		spider := newSpider()
		if !spider.enqueue("http://Example.com/a#x") {
			t.Error("expected first in-scope link to be enqueued")
		}
		if spider.enqueue("http://example.com/a") {
			t.Error("expected normalized duplicate to be rejected")
		}
		if spider.enqueue("http://sub.example.com/a") {
			t.Error("expected out-of-scope link to be rejected")
		}
	})
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	spider := NewSpider(http.DefaultClient, nil, newRecordingSink(), scope.New("example.com", scope.Exact))
	tests := map[string]string{
		"HTTP://Example.COM":         "http://example.com/",
		"http://example.com/a#frag":  "http://example.com/a",
		"http://example.com/a?b=1#c": "http://example.com/a?b=1",
	}
	for in, want := range tests {
		if got := spider.normalizeURL(in); got != want {
			t.Errorf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
