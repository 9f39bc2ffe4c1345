package model

import "time"

// Status is the last lifecycle signal seen by the collector.
type Status string

// Collector statuses, in the order they usually appear during a crawl.
const (
	StatusInit              Status = "init"
	StatusRunning           Status = "running"
	StatusRequestDispatched Status = "request_dispatched"
	StatusRequestFailed     Status = "request_failed"
	StatusDocumentProcessed Status = "document_processed"
	StatusEngineStopped     Status = "engine_stopped"
	StatusWritingToFile     Status = "writing_to_file"
	StatusClosed            Status = "closed"
)

// Stats holds cumulative fetch statistics.
type Stats struct {
	// Requests is the number of requests handed to the downloader.
	Requests int `json:"requests"`

	// Responses is the number of responses processed.
	Responses int `json:"responses"`

	// ResponseBytes is the total number of body bytes received.
	ResponseBytes int64 `json:"response_bytes"`

	// Failures is the number of requests that produced no response.
	Failures int `json:"failures"`
}

// CrawlEvent is an immutable snapshot of the crawl state.
// The collector produces one on every lifecycle signal and every processed
// document; receivers must not modify its slices.
type CrawlEvent struct {
	// Status is the signal that produced this event.
	Status Status

	// URL is the URL related to the signal, if any.
	URL string

	// Title is the title of the processed HTML document, if any.
	Title string

	// Stats holds cumulative fetch statistics.
	Stats Stats

	// Words is the current number of unique words.
	Words int

	// Emails is the current number of unique e-mail addresses.
	Emails int

	// URLs is the current number of visited URLs.
	URLs int

	// Domains is the current number of visited domains.
	Domains int

	// UnsupportedContentTypes lists the unsupported content types seen so far, sorted.
	UnsupportedContentTypes []string

	// Exceptions holds document failures not yet reported by an earlier event.
	Exceptions []error

	// Time is when the snapshot was taken.
	Time time.Time
}
