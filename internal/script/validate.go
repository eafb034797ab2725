package script

import (
	"fmt"
	"regexp"

	"github.com/dop251/goja/parser"
)

// ES module imports are not accepted by the script parser; the rest of a
// generated test is plain script syntax.
var importStatement = regexp.MustCompile(`(?m)^[ \t]*import\s[^;\n]*;?[ \t]*$`)

// Validate reports whether src parses as JavaScript. Import lines are blanked
// out first so line numbers in errors still point at the original text.
func Validate(src string) error {
	body := importStatement.ReplaceAllString(src, "")
	if _, err := parser.ParseFile(nil, "recording.spec.js", body, 0); err != nil {
		return fmt.Errorf("script does not parse: %w", err)
	}
	return nil
}
