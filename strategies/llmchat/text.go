package llmchat

import (
	"regexp"
	"strings"
)

var (
	htmlTagRE  = regexp.MustCompile(`<[^>]+>`)
	headingRE  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRE = regexp.MustCompile("(\\*\\*|__|~~|`)")
)

// CleanText strips the HTML tags and markdown punctuation chat models like
// to decorate answers with, then collapses runs of whitespace. Downstream
// nodes (message delivery in particular) want plain text.
func CleanText(s string) string {
	s = htmlTagRE.ReplaceAllString(s, " ")
	s = headingRE.ReplaceAllString(s, "")
	s = emphasisRE.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
