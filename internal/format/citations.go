package format

import (
	"regexp"
	"strings"
)

// citationPattern matches file-search annotations such as 【4:0†menu.docx】.
var citationPattern = regexp.MustCompile(`【\d+:\d+†([^】]+)】`)

// StripCitations removes file-search annotations from text.
func StripCitations(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(citationPattern.ReplaceAllString(text, ""))
}

// Citations returns the source names referenced by annotations, in order.
func Citations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
