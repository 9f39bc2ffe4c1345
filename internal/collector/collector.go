package collector

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/wordspider/internal/config"
	"github.com/nao1215/wordspider/internal/model"
)

// State is the lifecycle state of a Collector.
type State int

const (
	// StateInit means sets and files exist but no result was accepted yet.
	StateInit State = iota
	// StateRunning means results are accepted.
	StateRunning
	// StateDraining means output is being flushed.
	StateDraining
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotInit is returned by Start when the collector already started.
var ErrNotInit = errors.New("collector already started")

// Options configures a Collector.
type Options struct {
	// Streaming writes new values as they are found, in discovery order.
	// It requires WordsPath.
	Streaming bool

	// WordsPath is the word list file. Empty means no file.
	WordsPath string

	// EmailsPath is the e-mail list file. Empty means no file.
	EmailsPath string

	// URLsPath is the visited URL list file. Empty means no file.
	URLsPath string

	// Target and Strategy are copied into the summary.
	Target   string
	Strategy string

	// ScopeDegraded is copied into the summary.
	ScopeDegraded bool

	// Logger receives write failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// output is one open list file.
type output struct {
	path string
	file *os.File
	buf  *bufio.Writer
}

func openOutput(path string) (*output, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &output{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// writeLine appends value and a newline.
func (o *output) writeLine(value string) error {
	if _, err := o.buf.WriteString(value); err != nil {
		return err
	}
	return o.buf.WriteByte('\n')
}

func (o *output) close() error {
	flushErr := o.buf.Flush()
	closeErr := o.file.Close()
	if flushErr != nil || closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", o.path, errors.Join(flushErr, closeErr))
	}
	return nil
}

// Collector aggregates results. All methods are safe for concurrent use.
type Collector struct {
	opts   Options
	logger *slog.Logger

	// mu guards everything below, including the output files, so the
	// streaming check-insert-write sequence is atomic.
	mu          sync.Mutex
	state       State
	words       model.StringSet
	emails      model.StringSet
	urls        model.StringSet
	domains     model.StringSet
	unsupported model.StringSet
	stats       model.Stats
	pending     []error
	exceptions  []string
	writeErrs   []error
	startedAt   time.Time
	finishedAt  time.Time
	interrupted bool

	wordsOut  *output
	emailsOut *output
	urlsOut   *output

	events *eventQueue
}

// New creates a Collector in the Init state and opens the configured files.
// Streaming without a word file is a configuration error and creates no file.
func New(opts Options) (*Collector, error) {
	if opts.Streaming && opts.WordsPath == "" {
		return nil, config.ErrStreamWithoutOutput
	}

	c := &Collector{
		opts:        opts,
		logger:      opts.Logger,
		state:       StateInit,
		words:       model.NewStringSet(),
		emails:      model.NewStringSet(),
		urls:        model.NewStringSet(),
		domains:     model.NewStringSet(),
		unsupported: model.NewStringSet(),
		events:      newEventQueue(),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	var err error
	if c.wordsOut, err = openOutput(opts.WordsPath); err != nil {
		return nil, err
	}
	if c.emailsOut, err = openOutput(opts.EmailsPath); err != nil {
		c.closeOutputs()
		return nil, err
	}
	if c.urlsOut, err = openOutput(opts.URLsPath); err != nil {
		c.closeOutputs()
		return nil, err
	}

	return c, nil
}

// Events returns the event channel. Only events emitted after the first
// call are delivered, so call it before Start. The channel is closed after
// the Closed event.
func (c *Collector) Events() <-chan model.CrawlEvent {
	return c.events.subscribe()
}

// State returns the current lifecycle state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves the collector from Init to Running.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInit {
		return fmt.Errorf("%w: state is %s", ErrNotInit, c.state)
	}
	c.state = StateRunning
	c.startedAt = time.Now()
	c.emitLocked(model.StatusRunning, "", "")
	return nil
}

// RequestDispatched records a request handed to the network.
func (c *Collector) RequestDispatched(rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.stats.Requests++
	c.emitLocked(model.StatusRequestDispatched, rawURL, "")
}

// RequestFailed records a request that produced no document.
func (c *Collector) RequestFailed(rawURL string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.stats.Failures++
	c.logger.Debug("request failed", slog.String("url", rawURL), slog.String("error", errString(err)))
	c.emitLocked(model.StatusRequestFailed, rawURL, "")
}

// Collect merges one document result. Results arriving outside the
// Running state are dropped.
func (c *Collector) Collect(result *model.Result) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		c.logger.Debug("dropping result after shutdown", slog.String("url", result.URL))
		return
	}

	c.stats.Responses++
	c.stats.ResponseBytes += int64(result.BodySize)

	c.addLocked(c.urls, c.urlsOut, result.URL)
	if result.HasContentType {
		if host := hostOf(result.URL); host != "" {
			c.domains.Add(host)
		}
	}
	if result.Diagnostic == model.DiagnosticUnsupportedContentType && result.ContentType != "" {
		c.unsupported.Add(result.ContentType)
	}
	if result.Err != nil {
		c.pending = append(c.pending, result.Err)
		c.exceptions = append(c.exceptions, result.Err.Error())
	}

	// E-mails first so a streamed word file never lacks an address that
	// the e-mail file already has.
	for _, addr := range result.Emails.Sorted() {
		c.addLocked(c.emails, c.emailsOut, addr)
		c.addLocked(c.words, c.wordsOut, addr)
	}
	for _, word := range result.Words.Sorted() {
		c.addLocked(c.words, c.wordsOut, word)
	}
	if c.opts.Streaming {
		c.flushLocked()
	}

	c.emitLocked(model.StatusDocumentProcessed, result.URL, result.Title)
}

// EngineStopped records that the fetcher has no more work.
func (c *Collector) EngineStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}
	c.emitLocked(model.StatusEngineStopped, "", "")
}

// Abort marks the crawl as interrupted and closes the collector. Buffered
// output collected so far is still written.
func (c *Collector) Abort() error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.interrupted = true
	}
	c.mu.Unlock()
	return c.Close()
}

// Close drains and closes the collector. In buffered mode each configured
// file receives its set, sorted. Close is idempotent; only the first call
// reports write and close errors.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateDraining {
		return nil
	}
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
	c.state = StateDraining

	if !c.opts.Streaming {
		if c.wordsOut != nil || c.emailsOut != nil || c.urlsOut != nil {
			c.emitLocked(model.StatusWritingToFile, "", "")
		}
		c.writeSortedLocked(c.wordsOut, c.words)
		c.writeSortedLocked(c.emailsOut, c.emails)
		c.writeSortedLocked(c.urlsOut, c.urls)
	}

	c.closeOutputs()
	c.state = StateClosed
	c.finishedAt = time.Now()
	c.emitLocked(model.StatusClosed, "", "")
	c.events.finish()

	err := errors.Join(c.writeErrs...)
	c.writeErrs = nil
	return err
}

// Words returns the unique words, sorted.
func (c *Collector) Words() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.words.Sorted()
}

// Emails returns the unique e-mail addresses, sorted.
func (c *Collector) Emails() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emails.Sorted()
}

// URLs returns the visited URLs, sorted.
func (c *Collector) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.urls.Sorted()
}

// Summary returns the crawl summary. It is complete once Close returned.
func (c *Collector) Summary() *model.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &model.Summary{
		Target:                  c.opts.Target,
		Strategy:                c.opts.Strategy,
		ScopeDegraded:           c.opts.ScopeDegraded,
		Streaming:               c.opts.Streaming,
		StartedAt:               c.startedAt,
		FinishedAt:              c.finishedAt,
		Interrupted:             c.interrupted,
		Stats:                   c.stats,
		Words:                   c.words.Len(),
		Emails:                  c.emails.Len(),
		URLs:                    c.urls.Len(),
		Domains:                 c.domains.Sorted(),
		UnsupportedContentTypes: c.unsupported.Sorted(),
		Exceptions:              append([]string(nil), c.exceptions...),
	}
	if c.wordsOut != nil {
		s.OutputWords = c.wordsOut.path
	}
	if c.emailsOut != nil {
		s.OutputEmails = c.emailsOut.path
	}
	if c.urlsOut != nil {
		s.OutputURLs = c.urlsOut.path
	}
	return s
}

// addLocked inserts value and, in streaming mode, appends it to out.
func (c *Collector) addLocked(set model.StringSet, out *output, value string) {
	if !set.Add(value) {
		return
	}
	if !c.opts.Streaming || out == nil {
		return
	}
	if err := out.writeLine(value); err != nil {
		c.recordWriteErrLocked(out, err)
	}
}

func (c *Collector) flushLocked() {
	for _, out := range []*output{c.wordsOut, c.emailsOut, c.urlsOut} {
		if out == nil {
			continue
		}
		if err := out.buf.Flush(); err != nil {
			c.recordWriteErrLocked(out, err)
		}
	}
}

func (c *Collector) writeSortedLocked(out *output, set model.StringSet) {
	if out == nil {
		return
	}
	for _, value := range set.Sorted() {
		if err := out.writeLine(value); err != nil {
			c.recordWriteErrLocked(out, err)
			return
		}
	}
}

func (c *Collector) recordWriteErrLocked(out *output, err error) {
	c.logger.Error("failed to write output", slog.String("path", out.path), slog.String("error", err.Error()))
	c.writeErrs = append(c.writeErrs, fmt.Errorf("failed to write %s: %w", out.path, err))
}

// closeOutputs closes every open file. Handles are kept so paths remain
// available to Summary.
func (c *Collector) closeOutputs() {
	for _, out := range []*output{c.wordsOut, c.emailsOut, c.urlsOut} {
		if out == nil {
			continue
		}
		if err := out.close(); err != nil {
			c.writeErrs = append(c.writeErrs, err)
		}
	}
}

// emitLocked queues a snapshot and clears the pending exceptions.
func (c *Collector) emitLocked(status model.Status, rawURL, title string) {
	ev := model.CrawlEvent{
		Status:                  status,
		URL:                     rawURL,
		Title:                   title,
		Stats:                   c.stats,
		Words:                   c.words.Len(),
		Emails:                  c.emails.Len(),
		URLs:                    c.urls.Len(),
		Domains:                 c.domains.Len(),
		UnsupportedContentTypes: c.unsupported.Sorted(),
		Exceptions:              c.pending,
		Time:                    time.Now(),
	}
	c.pending = nil
	c.events.push(ev)
}

// hostOf returns the lower-cased host name of rawURL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
