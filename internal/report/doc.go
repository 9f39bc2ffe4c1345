// Package report renders what a crawl produced.
//
// Summary writers turn a model.Summary into human-readable text, Markdown
// or JSON. ProgressPrinter consumes the collector's CrawlEvent stream while
// the crawl runs. WriteList prints a word, e-mail or URL list one entry per
// line.
package report
