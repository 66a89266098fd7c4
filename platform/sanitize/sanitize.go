// Package sanitize provides text sanitization for free-text input such as
// lead notes captured from web forms.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// StripHTML removes all HTML tags from a string and decodes the common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, " ")
	result = entityReplacer.Replace(result)
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// Text strips HTML and collapses runs of whitespace to a single space, so
// keyword rules match phrases regardless of the line breaks in the source.
func Text(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}
