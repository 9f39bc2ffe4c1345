package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/wordspider/internal/model"
)

const ruleWidth = 70

// SimpleWriter renders a plain-text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty prints the domain, content type and exception sections
// even when they are empty.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter returns a SimpleWriter writing to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders summary.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeList(&sb, "DOMAINS", summary.Domains)
	w.writeList(&sb, "UNSUPPORTED CONTENT TYPES", summary.UnsupportedContentTypes)
	w.writeList(&sb, "EXCEPTIONS", summary.Exceptions)
	w.writeOutputs(&sb, summary)

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        WORDSPIDER SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	strategy := s.Strategy
	if s.ScopeDegraded {
		strategy += " (degraded to exact host)"
	}
	fmt.Fprintf(sb, "Target:    %s\n", s.Target)
	fmt.Fprintf(sb, "Strategy:  %s\n", strategy)
	fmt.Fprintf(sb, "Started:   %s\n", s.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Elapsed:   %s\n", s.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:    %s\n\n", status(s))
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *model.Summary) {
	section(sb, "RESULTS")
	fmt.Fprintf(sb, "  Words:      %d\n", s.Words)
	fmt.Fprintf(sb, "  E-mails:    %d\n", s.Emails)
	fmt.Fprintf(sb, "  URLs:       %d\n", s.URLs)
	fmt.Fprintf(sb, "  Domains:    %d\n", len(s.Domains))
	fmt.Fprintf(sb, "  Requests:   %d (%d failed)\n", s.Stats.Requests, s.Stats.Failures)
	fmt.Fprintf(sb, "  Responses:  %d (%d bytes)\n\n", s.Stats.Responses, s.Stats.ResponseBytes)
}

func (w *SimpleWriter) writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 && !w.showEmpty {
		return
	}
	section(sb, title)
	if len(items) == 0 {
		sb.WriteString("  none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(sb, "  [+] %s\n", item)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutputs(sb *strings.Builder, s *model.Summary) {
	section(sb, "OUTPUT")
	mode := "buffered"
	if s.Streaming {
		mode = "streaming"
	}
	fmt.Fprintf(sb, "  Mode:       %s\n", mode)
	fmt.Fprintf(sb, "  Words:      %s\n", outputOrScreen(s.OutputWords))
	if s.OutputEmails != "" {
		fmt.Fprintf(sb, "  E-mails:    %s\n", s.OutputEmails)
	}
	if s.OutputURLs != "" {
		fmt.Fprintf(sb, "  URLs:       %s\n", s.OutputURLs)
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
