// internal/template/render.go
package template

import "regexp"

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render performs moustache-style replacement for {{key}} placeholders.
// Unknown placeholders are left as-is.
func Render(text string, variables map[string]string) string {
	if text == "" || len(variables) == 0 {
		return text
	}

	return placeholderRegex.ReplaceAllStringFunc(text, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return value
		}
		return match
	})
}
