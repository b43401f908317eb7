package importer

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z]{3,}`)

// ExtractCandidates returns the distinct alphabetic words of at least three
// letters in text, lower-cased, in first-seen order, minus the known terms
func ExtractCandidates(text string, known map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, match := range wordPattern.FindAllString(text, -1) {
		term := strings.ToLower(match)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		if _, ok := known[term]; ok {
			continue
		}
		out = append(out, term)
	}
	return out
}
