package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// CharTable lists the characters the tokenizer treats as word separators
// and the characters that may appear inside a word but not at its edges.
type CharTable struct {
	// Version identifies the table in logs and history records.
	Version string

	// Filter holds single characters replaced by a space.
	Filter []rune

	// FilterSequences holds multi-character sequences replaced by a space.
	FilterSequences []string

	// Edge holds characters trimmed from both ends of every token.
	Edge []rune
}

// CharTableV1 is the character table wordlists have been generated with
// since the first release. Changing its membership changes output, so add a
// new version instead of editing it.
var CharTableV1 = CharTable{
	Version: "v1",
	Filter: []rune{
		'(', ')', ',', '.', '/', '"', '?', '!',
		'“', '”', '‘', '’', '´', '`', ':',
		'{', '}', '[', ']', '«', '»', '*', '…', '•', '‹', '≈', '=',
		'■', '◦', '☀', '\uFE0F', '„', '|', '_', '~', '✓', '+',
		'<', '>', '@', ';', '\uFFFC', '\\',
	},
	FilterSequences: []string{"&&", "--"},
	Edge:            []rune{'\'', 'ˈ', '-', '–', '━', '—', '&'},
}

// filterPattern compiles the table into one alternation. Control
// characters are always filtered.
func (t CharTable) filterPattern() *regexp.Regexp {
	var class strings.Builder
	class.WriteString(`[\p{Cc}`)
	for _, r := range t.Filter {
		if r <= unicode.MaxASCII && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			class.WriteByte('\\')
		}
		class.WriteRune(r)
	}
	class.WriteByte(']')

	parts := []string{class.String()}
	for _, seq := range t.FilterSequences {
		parts = append(parts, regexp.QuoteMeta(seq))
	}
	return regexp.MustCompile(strings.Join(parts, "|"))
}

// edgeCutset returns the edge characters as a cutset for strings.Trim.
func (t CharTable) edgeCutset() string {
	return string(t.Edge)
}
