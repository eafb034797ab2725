package selector

import (
	"regexp"
)

var (
	// .4rating is not a valid class selector; CSS needs the leading digit
	// written as a code point escape.
	leadingDigitClass = regexp.MustCompile(`\.(\d)`)

	// Some rating widgets emit class names like "rating4. 0251". The dot and
	// space split what was meant to be one class name.
	brokenClassSuffix = regexp.MustCompile(`(\.[a-zA-Z\d_-]+)\.\s*(\d+)`)
)

// Repair rewrites class selectors that CSS cannot parse as written. A class
// starting with a digit becomes `.\3<digit> `, and the broken "name. NNNN"
// form becomes `name.\3<first digit> <rest>`. Running Repair on its own
// output returns it unchanged. On any failure the input is returned as is.
func Repair(sel string) (fixed string) {
	defer func() {
		if r := recover(); r != nil {
			fixed = sel
		}
	}()

	fixed = leadingDigitClass.ReplaceAllString(sel, `.\3${1} `)
	fixed = brokenClassSuffix.ReplaceAllStringFunc(fixed, func(m string) string {
		parts := brokenClassSuffix.FindStringSubmatch(m)
		prefix, digits := parts[1], parts[2]
		return prefix + `.\3` + digits[:1] + " " + digits[1:]
	})
	return fixed
}
