package template

import (
	"regexp"
	"strings"
)

// placeholderRe matches a {{name}} token. The delimiter syntax is an internal
// detail of the template store.
var placeholderRe = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Render replaces every {{key}} token whose key is present in vars with the
// mapped value; tokens whose key is absent render as the empty string, never
// as the literal token. Substitution is a single pass over the text, so
// substituted values are never re-interpreted as further placeholders, and
// rendering text without tokens returns it unchanged.
func Render(text string, vars map[string]string) string {
	if text == "" {
		return text
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")
		return vars[strings.TrimSpace(key)]
	})
}

// RenderTemplate renders both the subject and body of a template.
func RenderTemplate(t Template, vars map[string]string) (subject, body string) {
	return Render(t.Subject, vars), Render(t.Body, vars)
}
