package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/wordspider/internal/model"
	"github.com/nao1215/wordspider/internal/scope"
)

// DefaultUserAgent is a current desktop browser string.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// maxRedirects matches the net/http default.
const maxRedirects = 10

// ErrUnexpectedStatus is reported for responses that are not 2xx.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// ErrRedirectOutOfScope is reported when a redirect leaves the crawl scope.
var ErrRedirectOutOfScope = errors.New("redirect target is out of scope")

// Processor turns a fetched document into a result. *Router implements it.
type Processor interface {
	Process(doc *model.Document) *model.Result
}

// Sink receives the crawl lifecycle signals. Implementations must be safe
// for concurrent use.
type Sink interface {
	// RequestDispatched is called right before a request is sent.
	RequestDispatched(url string)

	// RequestFailed is called when no document could be obtained.
	RequestFailed(url string, err error)

	// Collect is called with the result of every fetched document.
	Collect(result *model.Result)
}

// Spider fetches pages breadth-first, hands them to a Processor and follows
// in-scope links. A Spider crawls once; create a new one per crawl.
type Spider struct {
	// client performs the requests. Its redirect policy is replaced so
	// redirects never leave the scope.
	client *http.Client

	processor Processor
	sink      Sink
	matcher   *scope.Matcher

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means unlimited, 1 means the starting page plus its links, etc.
	maxDepth int

	// concurrency bounds the number of in-flight requests.
	concurrency int

	// limiter paces requests. Nil means no pacing.
	limiter *rate.Limiter

	// userAgent is the User-Agent header to use.
	userAgent string

	// headers are extra request headers, including Cookie.
	headers http.Header

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	// robots is nil unless robots.txt is obeyed.
	robots *robotsChecker

	logger *slog.Logger

	// visited tracks normalized URLs already enqueued.
	visited map[string]bool

	// mutex protects concurrent access to visited and pageCount.
	mutex sync.Mutex

	// pageCount tracks documents handed to the processor.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. 0 means unlimited.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithConcurrency sets the maximum number of parallel requests.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = n
	}
}

// WithRate sets the request rate in requests per second. 0 disables pacing.
func WithRate(perSecond float64) SpiderOption {
	return func(s *Spider) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithHeaders adds request headers to every request.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		for k, v := range headers {
			s.headers.Set(k, v)
		}
	}
}

// WithCookie sets the Cookie header of every request.
func WithCookie(cookie string) SpiderOption {
	return func(s *Spider) {
		if cookie != "" {
			s.headers.Set("Cookie", cookie)
		}
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// URLs matching any of these patterns will not be crawled.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// Patterns use glob syntax (e.g., "/api/*", "/public/*").
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithRobots enables robots.txt obedience.
func WithRobots(obey bool) SpiderOption {
	return func(s *Spider) {
		if obey {
			s.robots = newRobotsChecker(s.client, s.userAgent)
		} else {
			s.robots = nil
		}
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider. The client is copied so its redirect policy
// can be scoped to the matcher without affecting the caller.
func NewSpider(client *http.Client, processor Processor, sink Sink, matcher *scope.Matcher, opts ...SpiderOption) *Spider {
	c := *client
	s := &Spider{
		client:      &c,
		processor:   processor,
		sink:        sink,
		matcher:     matcher,
		maxDepth:    2,
		concurrency: 16,
		userAgent:   DefaultUserAgent,
		headers:     make(http.Header),
		maxBodySize: 10 * 1024 * 1024, // 10MB
		logger:      slog.Default(),
		visited:     make(map[string]bool),
	}
	s.client.CheckRedirect = s.checkRedirect

	for _, opt := range opts {
		opt(s)
	}
	if s.robots != nil {
		s.robots.userAgent = s.userAgent
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}

	return s
}

// Crawl fetches startURL and follows in-scope links level by level until
// the frontier is empty, the depth limit is reached or ctx is canceled.
// Per-document failures are reported to the sink and never end the crawl;
// the returned error is ctx.Err() for canceled crawls and nil otherwise.
func (s *Spider) Crawl(ctx context.Context, startURL string) error {
	start, err := url.Parse(startURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "http"
	}

	s.markVisited(start.String())
	frontier := []string{s.normalizeURL(start.String())}

	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		expand := s.maxDepth == 0 || depth < s.maxDepth

		var (
			mu   sync.Mutex
			next []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)

		for _, pageURL := range frontier {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				links := s.visit(gctx, pageURL)
				if !expand {
					return nil
				}
				for _, link := range links {
					if s.enqueue(link) {
						mu.Lock()
						next = append(next, s.normalizeURL(link))
						mu.Unlock()
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		s.logger.Debug("crawl level finished",
			slog.Int("depth", depth),
			slog.Int("pages", len(frontier)),
			slog.Int("next", len(next)))
		frontier = next
	}

	return ctx.Err()
}

// visit fetches one page and returns the links found in it.
func (s *Spider) visit(ctx context.Context, pageURL string) []string {
	if s.robots != nil && !s.robots.allowed(ctx, pageURL) {
		s.logger.Debug("skipping URL disallowed by robots.txt", slog.String("url", pageURL))
		return nil
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	s.sink.RequestDispatched(pageURL)
	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		s.sink.RequestFailed(pageURL, err)
		return nil
	}

	result := s.processor.Process(doc)
	s.mutex.Lock()
	s.pageCount++
	s.mutex.Unlock()
	s.sink.Collect(result)

	return result.AllLinks()
}

// fetch performs the request and builds the document.
func (s *Spider) fetch(ctx context.Context, pageURL string) (*model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range s.headers {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", s.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrRedirectOutOfScope, resp.Header.Get("Location"))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, err
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
		if finalURL != pageURL {
			s.markVisited(finalURL)
		}
	}

	doc := &model.Document{
		URL:          finalURL,
		ContentTypes: resp.Header.Values("Content-Type"),
		Body:         body,
		StatusCode:   resp.StatusCode,
	}
	if isTextual(doc.MediaType()) {
		doc.Text = decodeText(body, doc.ContentType())
	}
	return doc, nil
}

// checkRedirect stops redirects that leave the scope. The 3xx response is
// then returned to fetch, which reports it as a failure.
func (s *Spider) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !s.matcher.Allows(req.URL.Host) {
		return http.ErrUseLastResponse
	}
	return nil
}

// enqueue reports whether link is new and should be crawled.
func (s *Spider) enqueue(link string) bool {
	if !s.matcher.AllowsURL(link) {
		return false
	}
	if !s.shouldCrawl(link) {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := s.normalizeURL(link)
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

// markVisited marks a URL as visited.
func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[s.normalizeURL(pageURL)] = true
}

// normalizeURL normalizes a URL for deduplication.
// The fragment is dropped, scheme and host are lower-cased and an empty
// path becomes "/".
func (s *Spider) normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pageCount,
		URLsQueued:   len(s.visited),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of documents handed to the processor.
	PagesVisited int

	// URLsQueued is the number of unique URLs encountered.
	URLsQueued int
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare patterns such as "*.pdf" also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

// isTextual reports whether a media type carries text worth decoding.
func isTextual(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	for _, marker := range []string{"json", "javascript", "xml", "ecmascript"} {
		if strings.Contains(mediaType, marker) {
			return true
		}
	}
	return false
}

// decodeText converts body to UTF-8 according to the declared charset, or
// a sniffed one when none is declared. Undecodable bodies are returned as is.
func decodeText(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
