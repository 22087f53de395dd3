// Package render merges a format template with a message body.
package render

import (
	"chat-pipeline/format"
	"chat-pipeline/markup"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Render produces the delivery-ready text of a message.
// Markup is stripped from the raw body before anything else when colorAllowed is false,
// so that substitution values never get stripped nor leak markup through the body.
// Substitutions replace "%key%" tokens in a single pass, unknown tokens are left verbatim.
func Render(template format.Template, body string, colorAllowed bool, substitutions map[string]string) string {
	if !colorAllowed {
		body = markup.Strip(body)
	}
	var b strings.Builder
	for _, segment := range template.Segments {
		switch segment.Kind {
		case format.Body:
			b.WriteString(body)
		default:
			b.WriteString(segment.Text)
		}
	}
	return Substitute(b.String(), substitutions)
}

// Substitute replaces every "%key%" token of text once, replacement values are not rescanned.
func Substitute(text string, substitutions map[string]string) string {
	if len(substitutions) == 0 || !strings.Contains(text, "%") {
		return text
	}
	keys := lo.Keys(substitutions)
	slices.Sort(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, token(k), substitutions[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func token(key string) string {
	return "%" + key + "%"
}
