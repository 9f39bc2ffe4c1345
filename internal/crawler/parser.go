package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser collects the text-bearing parts of an HTML document.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL

	// includeScripts keeps the text of <script> elements.
	includeScripts bool

	// includeStyles keeps the text of <style> elements.
	includeStyles bool
}

// ParseResult contains everything the router needs from one HTML page.
type ParseResult struct {
	// Root is the parsed node tree, reused for link discovery.
	Root *html.Node

	// Title is the page title from the <title> tag.
	Title string

	// Texts holds text node contents outside excluded elements.
	Texts []string

	// Comments holds the inner text of every HTML comment.
	Comments []string

	// Mailto holds the addresses and anchor text of mailto: links.
	Mailto []string

	// MetaContent holds the content attribute of <meta name=...> tags.
	MetaContent []string
}

// Text joins every text-bearing part into one string for tokenization.
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, group := range [][]string{r.Texts, r.Comments, r.Mailto, r.MetaContent} {
		for _, s := range group {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string, inc Includes) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{
		baseURL:        u,
		includeScripts: inc.Scripts,
		includeStyles:  inc.Styles,
	}, nil
}

// BaseURL returns the URL the document was fetched from.
func (p *Parser) BaseURL() *url.URL {
	return p.baseURL
}

// Parse parses HTML content and collects its text-bearing parts.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Root:        doc,
		Texts:       make([]string, 0),
		Comments:    make([]string, 0),
		Mailto:      make([]string, 0),
		MetaContent: make([]string, 0),
	}

	var walk func(n *html.Node, excluded bool)
	walk = func(n *html.Node, excluded bool) {
		switch n.Type {
		case html.ElementNode:
			excluded = excluded || p.excludes(n.Data)
			p.processElement(n, result)
		case html.TextNode:
			if !excluded && strings.TrimSpace(n.Data) != "" {
				result.Texts = append(result.Texts, n.Data)
			}
		case html.CommentNode:
			result.Comments = append(result.Comments, n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, excluded)
		}
	}
	walk(doc, false)

	return result, nil
}

// excludes reports whether text below the element is skipped.
func (p *Parser) excludes(tag string) bool {
	switch tag {
	case "script":
		return !p.includeScripts
	case "style":
		return !p.includeStyles
	default:
		return false
	}
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if result.Title == "" {
			result.Title = strings.TrimSpace(textContent(n))
		}

	case "a":
		href := strings.TrimSpace(getAttr(n, "href"))
		if len(href) >= len("mailto:") && strings.EqualFold(href[:len("mailto:")], "mailto:") {
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			result.Mailto = append(result.Mailto, addr, textContent(n))
		}

	case "meta":
		if hasAttr(n, "name") {
			if content := getAttr(n, "content"); content != "" {
				result.MetaContent = append(result.MetaContent, content)
			}
		}
	}
}

// textContent concatenates every text node below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// hasAttr reports whether the node carries the attribute at all.
func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
