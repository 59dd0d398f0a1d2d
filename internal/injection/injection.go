// Package injection applies best-effort pattern matching to user-supplied
// chat text, looking for the hallmarks of prompt-injection attempts. It is
// defense in depth, not a security boundary: the real defense is that the
// system prompt labels retrieved context and user text as untrusted
// evidence and enforces a fixed instruction-priority order.
package injection

import "regexp"

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all)\s+instructions?`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)assistant\s*:`),
	regexp.MustCompile(`(?i)<\|im_start\|>`),
	regexp.MustCompile(`(?i)<\|im_end\|>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)\[/INST\]`),
}

// base64Run matches an unbroken run of 50+ base64-alphabet characters
// followed by = or == padding that ends the token (end of text or a
// character outside the base64 alphabet).
var base64Run = regexp.MustCompile(`[A-Za-z0-9+/]{50,}={1,2}(?:[^A-Za-z0-9+/=]|$)`)

// symbolRun matches 10 or more consecutive non-word, non-space characters.
var symbolRun = regexp.MustCompile(`[^\w\s]{10,}`)

// Suspicious reports whether text matches any known attack pattern.
func Suspicious(text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	if base64Run.MatchString(text) {
		return true
	}
	if symbolRun.MatchString(text) {
		return true
	}
	return false
}
