package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// infoFields are the PDF Info dictionary entries that carry free text.
var infoFields = []*regexp.Regexp{
	infoField("Title"),
	infoField("Author"),
	infoField("Subject"),
	infoField("Keywords"),
	infoField("Creator"),
}

// infoField matches a literal string value, allowing escaped parentheses.
func infoField(name string) *regexp.Regexp {
	return regexp.MustCompile(`/` + name + `\s*\(((?:\\.|[^\\)])*)\)`)
}

// PDFText returns the plain text of a PDF document followed by its Info
// dictionary strings. Malformed documents yield whatever could be read,
// possibly nothing, together with the decode error for logging.
func PDFText(data []byte) (text string, err error) {
	var b strings.Builder

	body, err := pdfBodyText(data)
	b.WriteString(body)

	for _, field := range infoFields {
		if m := field.FindSubmatch(data); len(m) > 1 {
			b.WriteByte('\n')
			b.WriteString(unescapePDFString(string(m[1])))
		}
	}
	return b.String(), err
}

// pdfBodyText runs the PDF reader. The reader panics on some malformed
// cross-reference tables, so panics are turned into errors.
func pdfBodyText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(out), nil
}

// unescapePDFString resolves the backslash escapes of a PDF literal string.
func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
	)
	return strings.TrimSpace(replacer.Replace(s))
}
