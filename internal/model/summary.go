package model

import "time"

// Summary is the final report of one crawl.
// It is serialized to JSON for reports and for the history database.
type Summary struct {
	// Target is the normalized start URL.
	Target string `json:"target"`

	// Strategy is the subdomain strategy used (exact, children, all).
	Strategy string `json:"strategy"`

	// ScopeDegraded is true when the "all" strategy fell back to exact matching.
	ScopeDegraded bool `json:"scope_degraded,omitempty"`

	// Streaming is true when output was written incrementally.
	Streaming bool `json:"streaming"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the collector was closed.
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted is true when the crawl was aborted before completion.
	Interrupted bool `json:"interrupted,omitempty"`

	// Stats holds the final fetch statistics.
	Stats Stats `json:"stats"`

	// Words is the number of unique words found.
	Words int `json:"words"`

	// Emails is the number of unique e-mail addresses found.
	Emails int `json:"emails"`

	// URLs is the number of visited URLs.
	URLs int `json:"urls"`

	// Domains lists the visited domains, sorted.
	Domains []string `json:"domains"`

	// UnsupportedContentTypes lists unsupported content types, sorted.
	UnsupportedContentTypes []string `json:"unsupported_content_types"`

	// Exceptions holds the messages of every document failure.
	Exceptions []string `json:"exceptions"`

	// OutputWords is the word list path, empty when printed to the screen.
	OutputWords string `json:"output_words,omitempty"`

	// OutputEmails is the e-mail list path, if configured.
	OutputEmails string `json:"output_emails,omitempty"`

	// OutputURLs is the URL list path, if configured.
	OutputURLs string `json:"output_urls,omitempty"`
}

// Elapsed returns the crawl duration.
func (s *Summary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
