package mapping

import (
	"regexp"
	"strconv"
	"strings"
)

// numberPatterns are tried in order; the first whose number is an option wins
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^S(\d+)$`),
	regexp.MustCompile(`(?i)^Sprint\s*(\d+)$`),
	regexp.MustCompile(`(?i)^Q(\d+)$`),
	regexp.MustCompile(`(?i)^Iteration\s*(\d+)$`),
	regexp.MustCompile(`(?i)^Week\s*(\d+)$`),
}

// SuggestMapping guesses which of systemOptions a raw import value means.
// It tries a case-insensitive exact match, then the numbered patterns
// (S3, Sprint 3, Q3, Iteration 3, Week 3), then a substring match in either
// direction that must be unique. Ambiguous input yields no suggestion.
func SuggestMapping(csvValue string, systemOptions []string) (string, bool) {
	value := strings.TrimSpace(csvValue)
	if value == "" || len(systemOptions) == 0 {
		return "", false
	}

	for _, opt := range systemOptions {
		if strings.EqualFold(strings.TrimSpace(opt), value) {
			return opt, true
		}
	}

	for _, re := range numberPatterns {
		m := re.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if opt, ok := findOption(systemOptions, strconv.Itoa(n)); ok {
			return opt, true
		}
	}

	lower := strings.ToLower(value)
	var match string
	matches := 0
	for _, opt := range systemOptions {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" {
			continue
		}
		if strings.Contains(lower, o) || strings.Contains(o, lower) {
			match = opt
			matches++
		}
	}
	if matches == 1 {
		return match, true
	}
	return "", false
}

func findOption(options []string, want string) (string, bool) {
	for _, opt := range options {
		if strings.TrimSpace(opt) == want {
			return opt, true
		}
	}
	return "", false
}
