package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nao1215/wordspider/internal/config"
	"github.com/nao1215/wordspider/internal/model"
)

// Writer renders a crawl summary.
type Writer interface {
	// Write renders summary and returns the number of bytes written.
	Write(summary *model.Summary) (int, error)
}

// MultiWriter writes the same summary to several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a Writer that fans out to writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders summary with every writer and stops at the first error.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// NewWriter returns the writer for one of the config.ReportFormat values.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case config.ReportFormatText, "":
		return NewSimpleWriter(output), nil
	case config.ReportFormatMarkdown:
		return NewMarkdownWriter(output), nil
	case config.ReportFormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidReportFormat, format)
	}
}

// WriteList writes entries one per line.
func WriteList(w io.Writer, entries []string) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(e); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

func status(s *model.Summary) string {
	if s.Interrupted {
		return "Interrupted (partial results)"
	}
	return "Complete"
}

func outputOrScreen(path string) string {
	if path == "" {
		return "screen"
	}
	return path
}
