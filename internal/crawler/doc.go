// Package crawler fetches web pages and turns them into extraction results.
//
// # Components
//
//   - Spider: breadth-first fetcher that paces requests, bounds concurrency
//     and prunes the frontier with the scope matcher
//   - Router: dispatches one fetched document to the extractor matching its
//     content type and returns words, e-mails and links
//   - Parser: collects the text-bearing parts of an HTML document
//   - LinkExtractor: finds followable links for the enabled content kinds
//
// # Usage
//
//	router := crawler.NewRouter(extractor, matcher, crawler.WithIncludes(inc))
//	spider := crawler.NewSpider(httpClient, router, sink, matcher,
//		crawler.WithMaxDepth(2), crawler.WithRate(20))
//	err := spider.Crawl(ctx, "http://example.com/")
//
// # Failure policy
//
// A failed request or a document that cannot be processed is reported to
// the Sink and the crawl continues. Only context cancellation ends a crawl
// early.
package crawler
