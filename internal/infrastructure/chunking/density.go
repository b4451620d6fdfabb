package chunking

import (
	"regexp"
	"strings"
)

// Patterns for OCR fragments that carry no retrievable content: bare list
// numbers and artifacts like "on PROJECTS 1.".
var fragmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.)]?$`),
	regexp.MustCompile(`^[a-z]{1,5}\s+[A-Z][A-Z0-9]*\s+\d+[.)]?$`),
}

// hasGoodInformationDensity rejects candidate chunks that are too short,
// look like OCR fragments, or have an average word length below three
// characters (a proxy for corrupted text).
func hasGoodInformationDensity(text string, minWordCount int) bool {
	words := strings.Fields(text)
	if len(words) < minWordCount {
		return false
	}
	for _, p := range fragmentPatterns {
		if p.MatchString(text) {
			return false
		}
	}
	total := 0
	for _, w := range words {
		total += len(w)
	}
	return float64(total)/float64(len(words)) >= 3
}
