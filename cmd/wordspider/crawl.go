package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/nao1215/wordspider/internal/collector"
	"github.com/nao1215/wordspider/internal/config"
	"github.com/nao1215/wordspider/internal/crawler"
	"github.com/nao1215/wordspider/internal/database"
	"github.com/nao1215/wordspider/internal/extract"
	wslog "github.com/nao1215/wordspider/internal/log"
	"github.com/nao1215/wordspider/internal/model"
	"github.com/nao1215/wordspider/internal/report"
	"github.com/nao1215/wordspider/internal/scope"
	"github.com/nao1215/wordspider/internal/tor"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website and build a word list",
		Long: `Crawl fetches the target URL, follows links within the subdomain scope up
to the depth limit, and collects every word of the configured minimum length.

Without -o the sorted word list is printed to standard output when the crawl
ends. The summary goes to standard error unless --report-file is given.
Press Ctrl+C to stop early; everything collected so far is still written.

Subdomain strategies:
  exact     only the start host
  children  the start host and its subdomains
  all       every host under the registrable domain (www.example.co.uk -> example.co.uk)

Examples:
  # Print words of at least 5 characters found within two levels of links
  wordspider crawl https://example.com

  # Go deeper, include subdomains and JavaScript, lowercase everything
  wordspider crawl -d 3 -s children -j -l https://example.com

  # Stream words to a file as they are found and keep e-mails separately
  wordspider crawl --stream -o words.txt --output-emails emails.txt example.com

  # Crawl an onion service through a running Tor proxy
  wordspider crawl --tor-proxy 127.0.0.1:9050 http://<address>.onion`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Crawl scope
	f.IntP("depth", "d", config.DefaultDepth, "Link depth to follow from the start page (0 = unlimited)")
	f.StringP("subdomain-strategy", "s", config.DefaultStrategy, "Which hosts to crawl: exact, children or all")
	f.StringSlice("ignore", nil, "URL path patterns to skip (glob, repeatable)")
	f.StringSlice("follow", nil, "Only crawl URL paths matching these patterns (glob, repeatable)")
	f.Bool("obey-robots", false, "Honor robots.txt of every crawled host")

	// Content
	f.BoolP("include-js", "j", false, "Extract words from JavaScript and JSON files")
	f.BoolP("include-css", "c", false, "Extract words from CSS files")
	f.BoolP("include-pdf", "p", false, "Extract words from PDF documents")
	f.BoolP("include-images", "i", false, "Extract words from image metadata (EXIF)")

	// Words
	f.BoolP("lowercase", "l", false, "Lowercase all words")
	f.Bool("without-numbers", false, "Drop words that contain digits")
	f.IntP("min-word-length", "m", config.DefaultMinWordLength, "Minimum word length in characters")

	// Output
	f.StringP("output", "o", "", "Write words to this file instead of standard output")
	f.String("output-emails", "", "Write e-mail addresses to this file")
	f.String("output-urls", "", "Write visited URLs to this file")
	f.Bool("stream", false, "Write new entries to the files as they are found (requires -o)")
	f.String("report-format", config.DefaultReportFormat, "Summary format: text, markdown or json")
	f.String("report-file", "", "Write the summary to this file")
	f.BoolP("quiet", "q", false, "Do not print the summary")
	f.Bool("no-history", false, "Do not save this crawl to the history database")
	f.String("db-dir", config.XDGDataDir(), "History database directory")

	// HTTP
	f.StringP("user-agent", "u", config.DefaultUserAgent, "User-Agent header")
	f.Float64P("rate", "r", config.DefaultRate, "Maximum requests per second (0 = unlimited)")
	f.Int("concurrency", config.DefaultConcurrency, "Number of parallel requests")
	f.Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.StringArrayP("header", "H", nil, `Extra request header "Name: value" (repeatable)`)
	f.String("cookie", "", "Cookie header to send")

	// Tor
	f.Bool("tor", false, "Start an embedded Tor daemon and crawl through it")
	f.String("tor-proxy", "", "Crawl through an existing Tor SOCKS5 proxy (host:port)")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	f.String("config", "", "Profile file (default: .wordspider in the current or home directory)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// The logger and the progress printer share stderr from different goroutines.
	stderr := &syncWriter{w: cmd.ErrOrStderr()}
	logger := wslog.NewLogger(stderr, cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), stderr)
}

// syncWriter serializes writes to w.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// buildConfig layers defaults, the profile entry of the target host and
// the command line. Profile values only replace flags the user left alone.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	if len(args) > 0 {
		cfg.Target = args[0]
	}

	var err error
	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadProfile(cfg); err != nil {
		return nil, err
	}

	// Flags the profile can also set.
	if f.Changed("depth") {
		if cfg.Depth, err = f.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if f.Changed("user-agent") {
		if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if f.Changed("cookie") {
		if cfg.Cookie, err = f.GetString("cookie"); err != nil {
			return nil, err
		}
	}
	if f.Changed("ignore") {
		if cfg.IgnorePatterns, err = f.GetStringSlice("ignore"); err != nil {
			return nil, err
		}
	}
	if f.Changed("follow") {
		if cfg.FollowPatterns, err = f.GetStringSlice("follow"); err != nil {
			return nil, err
		}
	}
	rawHeaders, err := f.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	headers, err := parseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	strs := []struct {
		name string
		dst  *string
	}{
		{"subdomain-strategy", &cfg.Strategy},
		{"output", &cfg.OutputWords},
		{"output-emails", &cfg.OutputEmails},
		{"output-urls", &cfg.OutputURLs},
		{"report-format", &cfg.ReportFormat},
		{"report-file", &cfg.ReportFile},
		{"db-dir", &cfg.DBDir},
		{"tor-proxy", &cfg.TorProxyAddress},
	}
	for _, s := range strs {
		if *s.dst, err = f.GetString(s.name); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"obey-robots", &cfg.ObeyRobots},
		{"include-js", &cfg.IncludeScripts},
		{"include-css", &cfg.IncludeStyles},
		{"include-pdf", &cfg.IncludePDF},
		{"include-images", &cfg.IncludeImages},
		{"lowercase", &cfg.Lowercase},
		{"without-numbers", &cfg.WithoutNumbers},
		{"stream", &cfg.Stream},
		{"quiet", &cfg.Quiet},
		{"tor", &cfg.UseTor},
	}
	for _, b := range bools {
		if *b.dst, err = f.GetBool(b.name); err != nil {
			return nil, err
		}
	}

	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	if cfg.MinWordLength, err = f.GetInt("min-word-length"); err != nil {
		return nil, err
	}
	if cfg.Rate, err = f.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = f.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = f.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = f.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProfile reads the profile file and applies the entry for the target
// host. A missing file is only an error when --config names it.
func loadProfile(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if explicit {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.SiteConfigs = file

	if target, err := scope.NormalizeTarget(cfg.Target); err == nil {
		cfg.ApplySite(file.GetSiteConfig(target.Hostname()))
	}
	return nil
}

// parseHeaders turns "Name: value" strings into a map.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl performs one crawl with a validated configuration.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	target, err := scope.NormalizeTarget(cfg.Target)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	strategy, err := scope.ParseStrategy(cfg.Strategy)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if tor.IsOnionHost(target.Hostname()) && !cfg.UseTor && cfg.TorProxyAddress == "" {
		return errors.New("onion targets need --tor or --tor-proxy")
	}

	matcher := scope.NewFromURL(target, strategy)
	if strategy == scope.All && matcher.Degraded() {
		logger.Warn("cannot determine the registrable domain; crawling the start host only",
			"host", matcher.Host())
	}

	client, cleanup, err := newHTTPClient(ctx, cfg, target.Hostname(), logger, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	extractor := extract.NewExtractor(extract.Options{
		Lowercase:      cfg.Lowercase,
		MinLength:      cfg.MinWordLength,
		ExcludeNumbers: cfg.WithoutNumbers,
	})
	router := crawler.NewRouter(extractor, matcher,
		crawler.WithIncludes(crawler.Includes{
			Scripts: cfg.IncludeScripts,
			Styles:  cfg.IncludeStyles,
			PDF:     cfg.IncludePDF,
			Images:  cfg.IncludeImages,
		}),
		crawler.WithRouterLogger(logger),
	)

	coll, err := collector.New(collector.Options{
		Streaming:     cfg.Stream,
		WordsPath:     cfg.OutputWords,
		EmailsPath:    cfg.OutputEmails,
		URLsPath:      cfg.OutputURLs,
		Target:        target.String(),
		Strategy:      strategy.String(),
		ScopeDegraded: strategy == scope.All && matcher.Degraded(),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}

	printer := report.NewProgressPrinter(stderr,
		report.WithProgressVerbose(cfg.Verbose),
		report.WithProgressLogger(logger),
	)
	events := coll.Events()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printer.Run(events)
	}()

	if err := coll.Start(); err != nil {
		_ = coll.Close() //nolint:errcheck // already failing
		<-printed
		return err
	}

	spider := crawler.NewSpider(client, router, coll, matcher,
		crawler.WithMaxDepth(cfg.Depth),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithRate(cfg.Rate),
		crawler.WithSpiderUserAgent(cfg.UserAgent),
		crawler.WithHeaders(cfg.Headers),
		crawler.WithCookie(cfg.Cookie),
		crawler.WithSpiderMaxBodySize(cfg.MaxBodySize),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
		crawler.WithRobots(cfg.ObeyRobots),
		crawler.WithSpiderLogger(logger),
	)

	logger.Info("starting crawl",
		"target", target.String(),
		"strategy", strategy.String(),
		"depth", cfg.Depth,
		"cookie", cfg.Cookie,
	)

	crawlErr := spider.Crawl(ctx, target.String())
	coll.EngineStopped()

	var closeErr error
	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "Crawl interrupted, writing partial results...")
		closeErr = coll.Abort()
	} else {
		closeErr = coll.Close()
	}
	<-printed

	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		logger.Warn("crawl ended with error", "error", crawlErr)
	}

	summary := coll.Summary()

	if cfg.SaveHistory {
		// The crawl context may already be canceled; history is still saved.
		if err := saveHistory(context.WithoutCancel(ctx), cfg.DBDir, coll, summary); err != nil {
			logger.Error("failed to save crawl history", "error", err)
		}
	}

	if cfg.OutputWords == "" {
		if err := report.WriteList(stdout, coll.Words()); err != nil {
			return fmt.Errorf("failed to print words: %w", err)
		}
	}

	if !cfg.Quiet {
		if err := writeSummary(cfg, summary, stderr); err != nil {
			return err
		}
	}

	if closeErr != nil {
		return fmt.Errorf("failed to write output files: %w", closeErr)
	}
	return nil
}

// newHTTPClient returns the client for the crawl and a cleanup function.
func newHTTPClient(ctx context.Context, cfg *config.Config, host string, logger *slog.Logger, stderr io.Writer) (*http.Client, func(), error) {
	noop := func() {}

	var opts []tor.ClientOption
	if tor.IsOnionHost(host) {
		opts = append(opts, tor.WithInsecureTLS())
	}

	switch {
	case cfg.TorProxyAddress != "":
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				status.Err(), cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client.HTTPClient(), noop, nil

	case cfg.UseTor:
		fmt.Fprintln(stderr, "Starting embedded Tor daemon. This may take a few minutes...")
		embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stopTor := func() {
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		client, err := embedded.NewClient(cfg.Timeout, opts...)
		if err != nil {
			stopTor()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			stopTor()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
		}
		logger.Info("embedded Tor daemon started", "socks", embedded.SocksAddr())
		return client.HTTPClient(), stopTor, nil

	default:
		transport, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return nil, noop, errors.New("unexpected default transport")
		}
		return &http.Client{
			Transport: transport.Clone(),
			Timeout:   cfg.Timeout,
		}, noop, nil
	}
}

// saveHistory stores the crawl in the history database.
func saveHistory(ctx context.Context, dbDir string, coll *collector.Collector, summary *model.Summary) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.SaveSession(ctx, database.SessionInput{
		Summary: summary,
		Words:   coll.Words(),
		Emails:  coll.Emails(),
		URLs:    coll.URLs(),
	})
	if err != nil {
		return err
	}
	slog.Info("crawl saved to history", "id", id, "db", db.Path())
	return nil
}

// writeSummary renders the summary to the report file or to stderr.
func writeSummary(cfg *config.Config, summary *model.Summary, stderr io.Writer) error {
	out := stderr
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.NewWriter(cfg.ReportFormat, out)
	if err != nil {
		return err
	}
	if _, err := w.Write(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
