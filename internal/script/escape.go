package script

import "strings"

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// EscapeJS escapes s for use inside a single-quoted JavaScript string literal.
func EscapeJS(s string) string {
	return jsEscaper.Replace(s)
}
