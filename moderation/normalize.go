package moderation

import "strings"

// separators are dropped before matching so that "b-a d_w~o r d" reads "badword".
var separators = strings.NewReplacer(" ", "", "-", "", "_", "", "~", "")

// Normalize lower-cases the body and removes every separator. It is idempotent.
func Normalize(body string) string {
	return separators.Replace(strings.ToLower(body))
}

// NormalizePattern applies Normalize to a glob or word pattern, leaving the content of
// bracket expressions untouched so that ranges such as [a-z] survive.
func NormalizePattern(pattern string) string {
	var b strings.Builder
	inClass := false
	for _, r := range pattern {
		switch {
		case inClass:
			if r == ']' {
				inClass = false
			}
			b.WriteRune(r)
		case r == '[':
			inClass = true
			b.WriteRune(r)
		default:
			b.WriteString(Normalize(string(r)))
		}
	}
	return b.String()
}
