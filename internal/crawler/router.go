package crawler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/wordspider/internal/extract"
	"github.com/nao1215/wordspider/internal/model"
	"github.com/nao1215/wordspider/internal/scope"
)

// Router dispatches fetched documents to the extractor matching their
// content type. It holds no per-document state and is safe for concurrent use.
type Router struct {
	extractor *extract.Extractor
	matcher   *scope.Matcher
	links     *LinkExtractor
	includes  Includes
	logger    *slog.Logger

	// pdfText and imageText are replaceable for tests.
	pdfText   func([]byte) (string, error)
	imageText func([]byte) (string, error)
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithIncludes enables optional content kinds.
func WithIncludes(inc Includes) RouterOption {
	return func(r *Router) {
		r.includes = inc
	}
}

// WithRouterLogger sets the logger for decode failures.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithPDFText replaces the PDF text capability.
func WithPDFText(fn func([]byte) (string, error)) RouterOption {
	return func(r *Router) {
		r.pdfText = fn
	}
}

// WithImageText replaces the image metadata capability.
func WithImageText(fn func([]byte) (string, error)) RouterOption {
	return func(r *Router) {
		r.imageText = fn
	}
}

// NewRouter creates a Router. The matcher filters links found in comments.
func NewRouter(extractor *extract.Extractor, matcher *scope.Matcher, opts ...RouterOption) *Router {
	r := &Router{
		extractor: extractor,
		matcher:   matcher,
		logger:    slog.Default(),
		pdfText:   extract.PDFText,
		imageText: extract.ImageText,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.links = NewLinkExtractor(r.includes)
	return r
}

// Links returns the link extractor configured for the router's includes.
func (r *Router) Links() *LinkExtractor {
	return r.links
}

// Process extracts words, e-mails and links from one document.
// It never panics; unexpected failures are reported through Result.Err.
func (r *Router) Process(doc *model.Document) (result *model.Result) {
	result = &model.Result{
		URL:            doc.URL,
		ContentType:    doc.ContentType(),
		HasContentType: doc.HasContentType(),
		Words:          model.NewStringSet(),
		Emails:         model.NewStringSet(),
		BodySize:       len(doc.Body),
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Words = model.NewStringSet()
			result.Emails = model.NewStringSet()
			result.Err = fmt.Errorf("panic while processing %s: %v", doc.URL, rec)
		}
	}()

	if !result.HasContentType {
		result.Diagnostic = model.DiagnosticMissingContentType
		return result
	}

	ct := result.ContentType
	switch {
	case strings.Contains(ct, "text/html"):
		r.processHTML(doc, result)
	case strings.Contains(ct, "text/plain"), strings.Contains(ct, "application/json"):
		r.extractText(doc.DecodedText(), result)
	case r.includes.Scripts && (strings.Contains(ct, "script") ||
		strings.Contains(ct, "application/json") ||
		strings.Contains(ct, "application/ld+json")):
		r.extractText(doc.DecodedText(), result)
	case r.includes.Styles && strings.Contains(ct, "text/css"):
		r.extractText(doc.DecodedText(), result)
	case r.includes.PDF && strings.Contains(ct, "application/pdf"):
		r.extractText(r.decodeBinary("pdf", doc, r.pdfText), result)
	case r.includes.Images && extract.IsImageMediaType(doc.MediaType()):
		r.extractText(r.decodeBinary("image", doc, r.imageText), result)
	default:
		result.Diagnostic = model.DiagnosticUnsupportedContentType
	}
	return result
}

// processHTML extracts text-bearing nodes, ordinary links and links hidden
// in comments.
func (r *Router) processHTML(doc *model.Document, result *model.Result) {
	parser, err := NewParser(doc.URL, r.includes)
	if err != nil {
		result.Err = fmt.Errorf("invalid document URL: %w", err)
		return
	}
	page, err := parser.Parse(strings.NewReader(doc.DecodedText()))
	if err != nil {
		result.Err = fmt.Errorf("failed to parse HTML: %w", err)
		return
	}

	result.Title = page.Title
	r.extractText(page.Text(), result)
	result.Links = r.links.Extract(parser.BaseURL(), page.Root)

	seen := make(map[string]struct{})
	for _, comment := range page.Comments {
		links, err := r.links.ExtractFrom(parser.BaseURL(), strings.NewReader(comment))
		if err != nil {
			continue
		}
		for _, link := range links {
			if _, dup := seen[link]; dup || !r.matcher.AllowsURL(link) {
				continue
			}
			seen[link] = struct{}{}
			result.CommentLinks = append(result.CommentLinks, link)
		}
	}
}

// decodeBinary runs a binary text capability. A decode failure yields
// empty text and is only logged.
func (r *Router) decodeBinary(kind string, doc *model.Document, decode func([]byte) (string, error)) string {
	text, err := decode(doc.Body)
	if err != nil {
		r.logger.Debug("failed to decode document text",
			slog.String("kind", kind),
			slog.String("url", doc.URL),
			slog.String("error", err.Error()))
		return ""
	}
	return text
}

func (r *Router) extractText(text string, result *model.Result) {
	if text == "" {
		return
	}
	words, emails := r.extractor.Extract(text)
	result.Words.Merge(words)
	result.Emails.Merge(emails)
}
