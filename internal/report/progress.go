package report

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/wordspider/internal/model"
)

// ProgressPrinter follows a collector's event stream.
//
// In verbose mode one status line per event is written to the output.
// Document failures are logged at warn level exactly once, on the event
// that first carries them.
type ProgressPrinter struct {
	output  io.Writer
	verbose bool
	logger  *slog.Logger
}

// ProgressOption configures a ProgressPrinter.
type ProgressOption func(*ProgressPrinter)

// WithProgressVerbose enables the per-event status lines.
func WithProgressVerbose(verbose bool) ProgressOption {
	return func(p *ProgressPrinter) {
		p.verbose = verbose
	}
}

// WithProgressLogger sets the logger for document failures.
func WithProgressLogger(logger *slog.Logger) ProgressOption {
	return func(p *ProgressPrinter) {
		p.logger = logger
	}
}

// NewProgressPrinter returns a printer writing status lines to output.
func NewProgressPrinter(output io.Writer, opts ...ProgressOption) *ProgressPrinter {
	p := &ProgressPrinter{
		output: output,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes events until the channel is closed and returns the last
// event received.
func (p *ProgressPrinter) Run(events <-chan model.CrawlEvent) model.CrawlEvent {
	var last model.CrawlEvent
	for ev := range events {
		p.Print(ev)
		last = ev
	}
	return last
}

// Print handles a single event.
func (p *ProgressPrinter) Print(ev model.CrawlEvent) {
	for _, err := range ev.Exceptions {
		p.logger.Warn("document processing failed", "url", ev.URL, "error", err)
	}
	if !p.verbose {
		return
	}
	fmt.Fprintln(p.output, FormatEvent(ev))
}

// FormatEvent renders ev as a single status line.
func FormatEvent(ev model.CrawlEvent) string {
	line := fmt.Sprintf("[%s] %-18s req=%d resp=%d fail=%d words=%d emails=%d urls=%d domains=%d",
		ev.Time.Format("15:04:05"), ev.Status,
		ev.Stats.Requests, ev.Stats.Responses, ev.Stats.Failures,
		ev.Words, ev.Emails, ev.URLs, ev.Domains)
	if ev.URL != "" {
		line += " " + ev.URL
	}
	if ev.Title != "" {
		line += fmt.Sprintf(" %q", ev.Title)
	}
	return line
}
