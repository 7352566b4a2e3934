package ics

import "strings"

// textEscaper applies RFC 5545 TEXT escaping. strings.Replacer matches at
// each position once, so an inserted backslash is never escaped again.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\n", `\n`,
	"\r", "",
)

// Escape escapes free text for a TEXT property value. CR is dropped since
// the document writer emits its own line endings.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return textEscaper.Replace(text)
}
