package crawler

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// deniedExtensions are file extensions whose links are never followed
// unless an include option re-enables them.
var deniedExtensions = map[string][]string{
	"image": {
		"mng", "pct", "bmp", "gif", "jpg", "jpeg", "png", "pst", "psp", "tif",
		"tiff", "ai", "drw", "dxf", "eps", "ps", "svg", "cdr", "ico", "webp",
		"heic", "heif",
	},
	"audio": {"mp3", "wma", "ogg", "wav", "ra", "aac", "mid", "au", "aiff"},
	"video": {
		"3gp", "asf", "asx", "avi", "mov", "mp4", "mpg", "qt", "rm", "swf",
		"wmv", "m4a", "m4v", "flv", "webm",
	},
	"office": {
		"xls", "xlsx", "ppt", "pptx", "pps", "doc", "docx", "odt", "ods", "odg",
		"odp",
	},
	"other": {
		"css", "pdf", "exe", "bin", "rss", "dmg", "iso", "apk", "jar", "sh",
		"rar", "zip", "tar", "gz", "7z", "xz", "bz2", "deb", "rpm", "msi",
	},
}

// Includes selects optional content kinds. Each flag widens both the text
// that is extracted and the links that are followed.
type Includes struct {
	// Scripts extracts <script> text and JavaScript/JSON resources.
	Scripts bool

	// Styles extracts <style> text and CSS resources.
	Styles bool

	// PDF extracts text from PDF documents.
	PDF bool

	// Images extracts text-bearing metadata from images.
	Images bool
}

// LinkExtractor finds followable links in markup.
// It is immutable after construction and safe for concurrent use.
type LinkExtractor struct {
	// tags are the element names whose attributes are inspected.
	tags map[string]struct{}

	// attrs are the attribute names that carry links.
	attrs []string

	// deny holds lower-cased file extensions that are never followed.
	deny map[string]struct{}
}

// NewLinkExtractor builds the link extractor for the given includes.
// By default only href attributes of <a> and <area> are followed.
func NewLinkExtractor(inc Includes) *LinkExtractor {
	le := &LinkExtractor{
		tags:  map[string]struct{}{"a": {}, "area": {}},
		attrs: []string{"href"},
		deny:  make(map[string]struct{}),
	}
	if inc.Scripts || inc.Styles {
		le.attrs = append(le.attrs, "src")
	}
	if inc.Scripts {
		le.tags["script"] = struct{}{}
	}
	if inc.Styles {
		le.tags["link"] = struct{}{}
	}
	if inc.Images {
		le.tags["img"] = struct{}{}
		if !inc.Scripts && !inc.Styles {
			le.attrs = append(le.attrs, "src")
		}
	}

	for _, group := range deniedExtensions {
		for _, ext := range group {
			le.deny[ext] = struct{}{}
		}
	}
	if inc.Styles {
		delete(le.deny, "css")
	}
	if inc.PDF {
		delete(le.deny, "pdf")
	}
	if inc.Images {
		for _, ext := range []string{"jpg", "jpeg", "png", "tif", "tiff", "webp", "heic", "heif"} {
			delete(le.deny, ext)
		}
	}
	return le
}

// Extract returns the unique absolute http(s) links of the node tree,
// resolved against base, in document order.
func (le *LinkExtractor) Extract(base *url.URL, root *html.Node) []string {
	seen := make(map[string]struct{})
	links := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := le.tags[n.Data]; ok {
				for _, attr := range le.attrs {
					link := le.resolve(base, getAttr(n, attr))
					if link == "" {
						continue
					}
					if _, dup := seen[link]; dup {
						continue
					}
					seen[link] = struct{}{}
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return links
}

// ExtractFrom parses markup from r and returns its links.
func (le *LinkExtractor) ExtractFrom(base *url.URL, r io.Reader) ([]string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return le.Extract(base, root), nil
}

// Denied reports whether the URL path ends with a denied extension.
func (le *LinkExtractor) Denied(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		return false
	}
	_, denied := le.deny[strings.ToLower(ext)]
	return denied
}

// resolve turns an attribute value into an absolute link, or returns ""
// when the value is not a followable http(s) URL.
func (le *LinkExtractor) resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""

	link := resolved.String()
	if le.Denied(link) {
		return ""
	}
	return link
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
