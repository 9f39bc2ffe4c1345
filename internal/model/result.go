package model

// Diagnostic classifies why a document produced no extraction.
type Diagnostic int

const (
	// DiagnosticNone means the document was dispatched to an extractor.
	DiagnosticNone Diagnostic = iota

	// DiagnosticMissingContentType means the response had no Content-Type header.
	DiagnosticMissingContentType

	// DiagnosticUnsupportedContentType means no extractor accepts the content type.
	DiagnosticUnsupportedContentType
)

// String returns the human-readable diagnostic message.
func (d Diagnostic) String() string {
	switch d {
	case DiagnosticMissingContentType:
		return "missing content-type header"
	case DiagnosticUnsupportedContentType:
		return "unsupported content type"
	default:
		return ""
	}
}

// Result holds everything the content router extracted from one document.
// It is an immutable delta: the collector merges it into the crawl-wide sets.
type Result struct {
	// URL is the document URL.
	URL string

	// ContentType is the lower-cased first Content-Type value.
	// Empty when the header was missing.
	ContentType string

	// HasContentType reports whether a Content-Type header was present.
	HasContentType bool

	// Title is the HTML document title, attached for reporting only.
	Title string

	// Words is the set of words extracted from the document.
	// It always contains every entry of Emails.
	Words StringSet

	// Emails is the set of e-mail addresses extracted from the document.
	Emails StringSet

	// Links are absolute URLs discovered by the link-discovery primitive.
	// They still have to pass the host predicate before being enqueued.
	Links []string

	// CommentLinks are links found inside HTML comments that the host
	// predicate already accepted.
	CommentLinks []string

	// BodySize is the number of body bytes received.
	BodySize int

	// Diagnostic explains why nothing was extracted, if applicable.
	Diagnostic Diagnostic

	// Err holds an unexpected failure while handling this document.
	// It never aborts the crawl.
	Err error
}

// AllLinks returns ordinary links followed by comment links.
func (r *Result) AllLinks() []string {
	links := make([]string, 0, len(r.Links)+len(r.CommentLinks))
	links = append(links, r.Links...)
	return append(links, r.CommentLinks...)
}
