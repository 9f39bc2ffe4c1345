package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wordspider/internal/model"
)

// MarkdownWriter renders the summary as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter returns a MarkdownWriter writing to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders summary.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeResults(md, summary)
	w.writeSection(md, "Domains", summary.Domains, "No domains visited.")
	w.writeSection(md, "Unsupported Content Types", summary.UnsupportedContentTypes, "None.")
	w.writeExceptions(md, summary)
	w.writeOutputs(md, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Wordspider Summary")
	md.PlainText("")

	strategy := s.Strategy
	if s.ScopeDegraded {
		strategy += " (degraded to exact host)"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + s.Target + "`"},
			{"Strategy", strategy},
			{"Started", s.StartedAt.Format(timeLayout)},
			{"Elapsed", s.Elapsed().String()},
			{"Status", status(s)},
		},
	})
	md.PlainText("")

	if s.Interrupted {
		md.Warningf("The crawl was interrupted. Output files contain partial results.")
		md.PlainText("")
	}
	if s.ScopeDegraded {
		md.Note("The registrable domain could not be determined, so only the start host was crawled.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, s *model.Summary) {
	md.H2("Results")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Words", strconv.Itoa(s.Words)},
			{"E-mails", strconv.Itoa(s.Emails)},
			{"URLs", strconv.Itoa(s.URLs)},
			{"Domains", strconv.Itoa(len(s.Domains))},
			{"Requests", strconv.Itoa(s.Stats.Requests)},
			{"Responses", strconv.Itoa(s.Stats.Responses)},
			{"Failed requests", strconv.Itoa(s.Stats.Failures)},
			{"Bytes received", strconv.FormatInt(s.Stats.ResponseBytes, 10)},
		},
	})
	md.PlainText("")

	if s.Stats.Responses+s.Stats.Failures > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Request Outcomes"),
			piechart.WithShowData(true),
		)
		if s.Stats.Responses > 0 {
			chart.LabelAndIntValue("Responses", uint64(s.Stats.Responses))
		}
		if s.Stats.Failures > 0 {
			chart.LabelAndIntValue("Failures", uint64(s.Stats.Failures))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSection(md *markdown.Markdown, title string, items []string, empty string) {
	md.H2(title)
	md.PlainText("")
	if len(items) == 0 {
		md.PlainText(empty)
	} else {
		md.BulletList(items...)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeExceptions(md *markdown.Markdown, s *model.Summary) {
	md.H2("Exceptions")
	md.PlainText("")
	if len(s.Exceptions) == 0 {
		md.Tip("No document failed to process.")
		md.PlainText("")
		return
	}
	md.Cautionf("%d document(s) failed to process.", len(s.Exceptions))
	md.PlainText("")
	md.BulletList(s.Exceptions...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutputs(md *markdown.Markdown, s *model.Summary) {
	md.H2("Output")
	md.PlainText("")
	mode := "buffered"
	if s.Streaming {
		mode = "streaming"
	}
	rows := [][]string{
		{"Mode", mode},
		{"Words", outputOrScreen(s.OutputWords)},
	}
	if s.OutputEmails != "" {
		rows = append(rows, []string{"E-mails", s.OutputEmails})
	}
	if s.OutputURLs != "" {
		rows = append(rows, []string{"URLs", s.OutputURLs})
	}
	md.Table(markdown.TableSet{Header: []string{"List", "Destination"}, Rows: rows})
	md.PlainText("")
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by wordspider*")
}
