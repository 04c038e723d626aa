// Package format cleans up assistant replies before they reach the chat widget.
package format

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: later rules see the newlines earlier rules inserted.
var markdownRules = []rule{
	// list item glued to the previous text
	{regexp.MustCompile(`([^\n])(- \*\*)`), "${1}\n${2}"},
	// price glued to the next list item
	{regexp.MustCompile(`(\$\d+\.\d{2})(- \*\*)`), "${1}\n${2}"},
	// bold emoji section header glued to the previous text
	{regexp.MustCompile(`([^\n*])(\*\*[🍔🍗🍕🥗🍩🎉📍👨🍳💰])`), "${1}\n\n${2}"},
	// text glued to the end of a bold emoji section header
	{regexp.MustCompile(`(\*\*[🍔🍗🍕🥗🍩].+?\*\*)([^\n])`), "${1}\n${2}"},
	// price glued to a capital letter or dash
	{regexp.MustCompile(`(\$\d+\.\d{2})([A-Z-])`), "${1}\n${2}"},
	// sentence ending in a price glued to the next sentence
	{regexp.MustCompile(`(\$\d+\.\d{2}\.)([A-Z])`), "${1}\n\n${2}"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// PreprocessMarkdown inserts the line breaks the assistant tends to drop
// around menu lists, prices and emoji section headers.
func PreprocessMarkdown(text string) string {
	for _, r := range markdownRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return strings.TrimSpace(text)
}
