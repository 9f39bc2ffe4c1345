// Package collector aggregates extraction results for one crawl.
//
// The Collector owns every crawl-lifetime set (words, e-mails, visited URLs,
// visited domains, unsupported content types) and the output files. It moves
// through Init, Running, Draining and Closed:
//
//   - Init: sets are created and output files are opened.
//   - Running: results are merged. In streaming mode each new value is
//     appended to its file and flushed right away.
//   - Draining: in buffered mode every set is written once, sorted.
//   - Closed: files are closed and no further results are accepted.
//
// Every signal produces an immutable model.CrawlEvent, delivered in order
// through the channel returned by Events.
package collector
