// Package model defines the data structures shared by the wordspider packages.
//
// This package contains the following main types:
//   - Document: A fetched resource handed to the content router
//   - Result: The words, e-mails and links extracted from one document
//   - CrawlEvent: An immutable progress snapshot emitted by the collector
//   - Summary: The final report of a crawl
//   - StringSet: The set type used for words, e-mails and URLs
//
// The crawler, collector, report and database packages all exchange these
// types, so they live here to keep those packages free of import cycles.
package model
