package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/wordspider/internal/scope"
	"github.com/nao1215/wordspider/internal/tor"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wordspider"

	// DefaultDepth follows the start page and two levels of links.
	DefaultDepth = 2

	// DefaultStrategy keeps the crawl on the start host.
	DefaultStrategy = "exact"

	// DefaultMinWordLength drops short filler words.
	DefaultMinWordLength = 5

	// DefaultRate is the request rate in requests per second.
	DefaultRate = 20

	// DefaultConcurrency is the number of parallel requests.
	DefaultConcurrency = 16

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 180 * time.Second

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent is a current desktop browser string so sites serve
	// their regular pages.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

	// DefaultReportFormat is the human-readable summary.
	DefaultReportFormat = "text"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Report formats accepted by ReportFormat.
const (
	ReportFormatText     = "text"
	ReportFormatMarkdown = "markdown"
	ReportFormatJSON     = "json"
)

// Config holds all configuration options for one crawl.
// It is populated from defaults, the profile file and CLI flags, in that
// order, and validated once before any output file is created.
type Config struct {
	// Target is the start URL as given by the user.
	Target string

	// Depth is the crawl depth limit. 0 means unlimited.
	Depth int

	// Strategy is the subdomain strategy: exact, children or all.
	Strategy string

	// IncludeScripts extracts JavaScript and follows script links.
	IncludeScripts bool

	// IncludeStyles extracts CSS and follows stylesheet links.
	IncludeStyles bool

	// IncludePDF extracts text from PDF documents.
	IncludePDF bool

	// IncludeImages extracts text-bearing EXIF metadata from images.
	IncludeImages bool

	// Lowercase case-folds every word.
	Lowercase bool

	// WithoutNumbers drops words containing digits.
	WithoutNumbers bool

	// MinWordLength is the minimum word length in characters.
	MinWordLength int

	// Stream writes words to the output file as they are found.
	Stream bool

	// OutputWords is the word list file. When empty, words go to stdout.
	OutputWords string

	// OutputEmails is the e-mail list file.
	OutputEmails string

	// OutputURLs is the visited URL list file.
	OutputURLs string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Rate is the request rate in requests per second. 0 disables pacing.
	Rate float64

	// Concurrency is the number of parallel requests.
	Concurrency int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Cookie is sent with every request.
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string

	// IgnorePatterns are URL path globs that are never crawled.
	IgnorePatterns []string

	// FollowPatterns are URL path globs; when set only matching paths are crawled.
	FollowPatterns []string

	// ObeyRobots honours robots.txt.
	ObeyRobots bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ReportFormat selects the summary format: text, markdown or json.
	ReportFormat string

	// ReportFile is the output file path for the summary.
	// When set, the summary is written to this file instead of stdout.
	ReportFile string

	// Quiet suppresses the summary.
	Quiet bool

	// DBDir is the directory holding the crawl history database.
	// Defaults to the XDG data directory (~/.local/share/wordspider on Linux).
	DBDir string

	// SaveHistory stores the crawl in the history database.
	SaveHistory bool

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorProxyAddress is an external Tor SOCKS5 proxy in "host:port" format.
	TorProxyAddress string

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the path to the profile file.
	// If empty, .wordspider is searched in the current directory, the home
	// directory and the XDG config directory.
	ConfigFilePath string

	// SiteConfigs holds the profile file, if one was loaded.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Strategy:          DefaultStrategy,
		MinWordLength:     DefaultMinWordLength,
		UserAgent:         DefaultUserAgent,
		Rate:              DefaultRate,
		Concurrency:       DefaultConcurrency,
		Timeout:           DefaultTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		ReportFormat:      DefaultReportFormat,
		DBDir:             XDGDataDir(),
		SaveHistory:       true,
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for wordspider.
// On Linux: ~/.local/share/wordspider
// On macOS: ~/Library/Application Support/wordspider
// On Windows: %LOCALAPPDATA%\wordspider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wordspider.
// On Linux: ~/.config/wordspider
// On macOS: ~/Library/Application Support/wordspider
// On Windows: %APPDATA%\wordspider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplySite merges a profile entry into the configuration. Values set on
// the command line win, so callers apply the profile before reading flags
// that were explicitly changed.
func (c *Config) ApplySite(site SiteConfig) {
	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		c.UserAgent = site.UserAgent
	}
	if site.Depth != 0 {
		c.Depth = site.Depth
	}
	if len(site.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			c.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		c.FollowPatterns = site.FollowPatterns
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the package sentinel errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrNoTarget
	}
	target, err := scope.NormalizeTarget(c.Target)
	if err != nil {
		return ErrInvalidTarget
	}
	if host := target.Hostname(); strings.HasSuffix(host, ".onion") && !tor.IsValidV3Address(host) {
		return ErrInvalidTarget
	}

	if c.Stream && c.OutputWords == "" {
		return ErrStreamWithoutOutput
	}
	if _, err := scope.ParseStrategy(c.Strategy); err != nil {
		return ErrInvalidStrategy
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.MinWordLength < 0 {
		return ErrInvalidMinWordLength
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.ReportFormat {
	case ReportFormatText, ReportFormatMarkdown, ReportFormatJSON:
	default:
		return ErrInvalidReportFormat
	}

	if c.UseTor && c.TorProxyAddress != "" {
		return ErrConflictingTorOptions
	}

	seen := make(map[string]bool)
	for _, path := range []string{c.OutputWords, c.OutputEmails, c.OutputURLs} {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if seen[clean] {
			return ErrDuplicateOutputPath
		}
		seen[clean] = true
	}

	return nil
}
