package model

import (
	"mime"
	"strings"
)

// Document represents one fetched resource handed to the extraction pipeline.
// It is owned by the call that processes it and is not retained afterwards.
type Document struct {
	// URL is the final URL of the resource after redirects.
	URL string

	// ContentTypes holds every Content-Type header value of the response.
	// Empty when the server sent no Content-Type header at all.
	ContentTypes []string

	// Body is the raw response body, limited by the fetcher's max body size.
	Body []byte

	// Text is the body decoded to UTF-8 according to the declared charset.
	// Empty for binary content; Body is used as a fallback in that case.
	Text string

	// StatusCode is the HTTP response status code.
	StatusCode int
}

// HasContentType reports whether the response declared a content type.
func (d *Document) HasContentType() bool {
	return len(d.ContentTypes) > 0
}

// ContentType returns the lower-cased first Content-Type value.
// Returns an empty string if the header was absent.
func (d *Document) ContentType() string {
	if len(d.ContentTypes) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(d.ContentTypes[0]))
}

// MediaType returns the content type without parameters such as charset.
func (d *Document) MediaType() string {
	ct := d.ContentType()
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			return strings.TrimSpace(ct[:i])
		}
		return ct
	}
	return mediaType
}

// DecodedText returns the decoded text, falling back to the raw body.
func (d *Document) DecodedText() string {
	if d.Text != "" {
		return d.Text
	}
	return string(d.Body)
}
