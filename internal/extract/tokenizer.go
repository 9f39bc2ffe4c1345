package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/wordspider/internal/model"
)

// Options controls text normalization.
type Options struct {
	// Lowercase case-folds words and e-mail addresses.
	Lowercase bool

	// MinLength is the minimum word length in runes. Values below 1 mean 1.
	MinLength int

	// ExcludeNumbers drops words containing any digit.
	ExcludeNumbers bool
}

// emailPattern is intentionally simple. It accepts a few invalid addresses
// and misses some valid ones.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// percentRun matches one or more consecutive percent-escapes so multi-byte
// UTF-8 sequences are decoded together.
var percentRun = regexp.MustCompile(`(?:%[0-9A-Fa-f]{2})+`)

// Extractor tokenizes text into words and e-mail addresses.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	opts   Options
	table  CharTable
	filter *regexp.Regexp
	edges  string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCharTable replaces the default CharTableV1.
func WithCharTable(table CharTable) ExtractorOption {
	return func(e *Extractor) {
		e.table = table
	}
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts Options, extOpts ...ExtractorOption) *Extractor {
	e := &Extractor{
		opts:  opts,
		table: CharTableV1,
	}
	for _, opt := range extOpts {
		opt(e)
	}
	e.filter = e.table.filterPattern()
	e.edges = e.table.edgeCutset()
	return e
}

// Options returns the normalization options.
func (e *Extractor) Options() Options {
	return e.opts
}

// CharTableVersion returns the version of the character table in use.
func (e *Extractor) CharTableVersion() string {
	return e.table.Version
}

// Extract returns the words and e-mail addresses found in text.
// Every e-mail address is also present in words.
func (e *Extractor) Extract(text string) (words, emails model.StringSet) {
	decoded := Decode(text)
	emails = e.emails(decoded)
	words = e.words(decoded)
	words.Merge(emails)
	return words, emails
}

// Words returns the word set of text, without e-mail addresses.
func (e *Extractor) Words(text string) model.StringSet {
	return e.words(Decode(text))
}

// Emails returns the e-mail addresses found in text.
func (e *Extractor) Emails(text string) model.StringSet {
	return e.emails(Decode(text))
}

func (e *Extractor) emails(decoded string) model.StringSet {
	found := model.NewStringSet()
	for _, addr := range emailPattern.FindAllString(decoded, -1) {
		if e.opts.Lowercase {
			addr = lower(addr)
		}
		found.Add(addr)
	}
	return found
}

func (e *Extractor) words(decoded string) model.StringSet {
	found := model.NewStringSet()

	text := e.filter.ReplaceAllString(decoded, " ")
	if e.opts.Lowercase {
		text = lower(text)
	}

	minLength := max(1, e.opts.MinLength)
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, e.edges)
		if utf8.RuneCountInString(token) < minLength {
			continue
		}
		if e.opts.ExcludeNumbers && hasDigit(token) {
			continue
		}
		found.Add(token)
	}
	return found
}

// Decode resolves HTML entities and then percent-escapes. Escape runs that
// do not decode to valid UTF-8 are left untouched.
func Decode(text string) string {
	text = html.UnescapeString(text)
	if !strings.Contains(text, "%") {
		return text
	}
	return percentRun.ReplaceAllStringFunc(text, func(run string) string {
		out, err := url.PathUnescape(run)
		if err != nil || !utf8.ValidString(out) {
			return run
		}
		return out
	})
}

// lower case-folds s. A Caser keeps state, so one is created per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
