package triage

import (
	"regexp"
	"strings"
)

// crisisPatterns matches explicit self-harm or suicide language. The list is
// a living allow-list: false positives are acceptable, false negatives are
// not, so entries are reviewed independently and only ever appended.
var crisisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsuicide\b`),
	regexp.MustCompile(`(?i)\bsuicidal\b`),
	regexp.MustCompile(`(?i)\bkill\s+myself\b`),
	regexp.MustCompile(`(?i)\bend\s+it\s+all\b`),
	regexp.MustCompile(`(?i)\bend\s+my\s+life\b`),
	regexp.MustCompile(`(?i)\bwant\s+to\s+die\b`),
	regexp.MustCompile(`(?i)\bwish\s+i\s+(was|were)\s+dead\b`),
	regexp.MustCompile(`(?i)\bself[\s-]?harm\b`),
	regexp.MustCompile(`(?i)\bhurt(ing)?\s+myself\b`),
	regexp.MustCompile(`(?i)\bcut(ting)?\s+myself\b`),
	regexp.MustCompile(`(?i)\bbetter\s+off\s+dead\b`),
	regexp.MustCompile(`(?i)\bno\s+reason\s+to\s+live\b`),
	regexp.MustCompile(`(?i)\bdon'?t\s+want\s+to\s+(live|be\s+alive)\b`),
}

// IsCrisis reports whether the utterance contains explicit crisis language.
// Pure and synchronous; it must run before any external call on new input.
func IsCrisis(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pat := range crisisPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}
