package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Strategy selects which hosts are in scope relative to the start host.
type Strategy int

const (
	// Exact accepts the start host only.
	Exact Strategy = iota
	// Children accepts the start host and any of its subdomains.
	Children
	// All accepts any host sharing the registrable domain of the start host.
	All
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
var ErrUnknownStrategy = errors.New("unknown subdomain strategy")

// ErrMissingHost is returned by NormalizeTarget when the URL has no host.
var ErrMissingHost = errors.New("target URL has no host")

// ParseStrategy converts a strategy name ("exact", "children", "all").
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact":
		return Exact, nil
	case "children":
		return Children, nil
	case "all":
		return All, nil
	default:
		return Exact, fmt.Errorf("%w: %q (want exact, children or all)", ErrUnknownStrategy, name)
	}
}

// String returns the strategy name as accepted by ParseStrategy.
func (s Strategy) String() string {
	switch s {
	case Exact:
		return "exact"
	case Children:
		return "children"
	case All:
		return "all"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// NormalizeTarget turns user input into the crawl start URL.
// Input without "://" gets an "http://" prefix. The URL must have a host.
func NormalizeTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHost, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// Matcher is the host predicate of one crawl. It is safe for concurrent use.
type Matcher struct {
	host     string
	strategy Strategy

	once     sync.Once
	domain   string
	degraded bool
}

// New creates a Matcher for the given start host and strategy.
// The host may carry a port or a trailing dot; both are ignored.
func New(startHost string, strategy Strategy) *Matcher {
	return &Matcher{
		host:     canonicalHost(startHost),
		strategy: strategy,
	}
}

// NewFromURL creates a Matcher from a normalized start URL.
func NewFromURL(target *url.URL, strategy Strategy) *Matcher {
	return New(target.Host, strategy)
}

// Host returns the canonical start host.
func (m *Matcher) Host() string {
	return m.host
}

// Strategy returns the configured strategy.
func (m *Matcher) Strategy() Strategy {
	return m.strategy
}

// Allows reports whether host is in scope.
func (m *Matcher) Allows(host string) bool {
	host = canonicalHost(host)
	if host == "" {
		return false
	}

	switch m.strategy {
	case Children:
		return isSameOrSubdomain(host, m.host)
	case All:
		domain := m.RegistrableDomain()
		if domain == "" {
			return host == m.host
		}
		return isSameOrSubdomain(host, domain)
	default:
		return host == m.host
	}
}

// AllowsURL reports whether the host of rawURL is in scope.
// Unparsable URLs and URLs without a host are rejected.
func (m *Matcher) AllowsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return m.Allows(u.Host)
}

// RegistrableDomain returns the eTLD+1 of the start host, resolved on first
// use. It returns an empty string when no registrable domain exists.
func (m *Matcher) RegistrableDomain() string {
	m.once.Do(m.resolve)
	return m.domain
}

// Degraded reports whether the All strategy fell back to exact matching
// because the start host has no registrable domain. It is always false for
// the other strategies.
func (m *Matcher) Degraded() bool {
	if m.strategy != All {
		return false
	}
	m.once.Do(m.resolve)
	return m.degraded
}

func (m *Matcher) resolve() {
	m.domain = registrableDomain(m.host)
	m.degraded = m.domain == ""
}

// registrableDomain returns the public-suffix-aware eTLD+1 of host.
// IP addresses, single-label names such as "localhost" and hosts under an
// unlisted suffix have none.
func registrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann && !strings.Contains(suffix, ".") {
		// Unlisted TLD: publicsuffix falls back to the "*" rule.
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// isSameOrSubdomain reports whether host equals parent or ends with
// "." + parent.
func isSameOrSubdomain(host, parent string) bool {
	if host == parent {
		return true
	}
	return strings.HasSuffix(host, "."+parent)
}

// canonicalHost lower-cases host and strips the port and trailing dot.
func canonicalHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
