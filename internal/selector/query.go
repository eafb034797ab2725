package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const hasTextPseudo = ":has-text("

var errUnsupportedSelector = errors.New("unsupported selector")

// segment is one child-combinator step of a selector with its :has-text
// arguments split off.
type segment struct {
	css   string
	texts []string
}

// Query returns the elements under root matched by sel in document order.
// sel is CSS plus Playwright's :has-text("...") pseudo-class, which matches
// when the element's whitespace-normalized text contains the argument,
// ignoring case.
func Query(root *html.Node, sel string) ([]*html.Node, error) {
	segments, err := parseSelector(sel)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(segments))
	filtered := false
	for i, seg := range segments {
		parts[i] = seg.css
		if len(seg.texts) > 0 {
			filtered = true
			if i > 0 && hasCombinator(seg.css) {
				return nil, fmt.Errorf("%w: :has-text after a descendant combinator in %q", errUnsupportedSelector, sel)
			}
		}
	}

	matcher, err := cascadia.Compile(strings.Join(parts, " > "))
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(root, matcher)
	if !filtered {
		return nodes, nil
	}

	out := nodes[:0]
	for _, n := range nodes {
		if matchesTexts(n, segments) {
			out = append(out, n)
		}
	}
	return out, nil
}

// matchesTexts checks the text constraints of each segment against the
// element that segment matched. The last segment is n itself and each
// earlier one is one parent further up.
func matchesTexts(n *html.Node, segments []segment) bool {
	cur := n
	for i := len(segments) - 1; i >= 0; i-- {
		if cur == nil {
			return false
		}
		if !containsAllTexts(cur, segments[i].texts) {
			return false
		}
		cur = parentElement(cur)
	}
	return true
}

func containsAllTexts(n *html.Node, texts []string) bool {
	if len(texts) == 0 {
		return true
	}
	haystack := strings.ToLower(normalizeText(textContent(n)))
	for _, t := range texts {
		if !strings.Contains(haystack, strings.ToLower(normalizeText(t))) {
			return false
		}
	}
	return true
}

func parseSelector(sel string) ([]segment, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, errors.New("empty selector")
	}

	raw, err := splitChildren(sel)
	if err != nil {
		return nil, err
	}

	segments := make([]segment, 0, len(raw))
	for _, r := range raw {
		seg, err := parseSegment(r)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// splitChildren splits sel on '>' outside of strings, brackets and parens.
func splitChildren(sel string) ([]string, error) {
	var (
		parts []string
		start int
		depth int
		quote rune
	)
	runes := []rune(sel)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '\\':
			i++
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == '>' && depth == 0:
			parts = append(parts, strings.TrimSpace(string(runes[start:i])))
			start = i + 1
		}
	}
	if quote != 0 || depth != 0 {
		return nil, fmt.Errorf("unbalanced selector %q", sel)
	}
	parts = append(parts, strings.TrimSpace(string(runes[start:])))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("dangling combinator in %q", sel)
		}
	}
	return parts, nil
}

func parseSegment(s string) (segment, error) {
	var seg segment
	var css strings.Builder
	runes := []rune(s)
	pseudo := []rune(hasTextPseudo)

	for i := 0; i < len(runes); {
		if hasPrefixAt(runes, i, pseudo) {
			text, next, err := readHasTextArg(runes, i+len(pseudo))
			if err != nil {
				return seg, err
			}
			seg.texts = append(seg.texts, text)
			i = next
			continue
		}
		r := runes[i]
		css.WriteRune(r)
		i++
		if r == '\\' && i < len(runes) {
			css.WriteRune(runes[i])
			i++
			continue
		}
		if r == '"' || r == '\'' {
			end := skipString(runes, i, r)
			css.WriteString(string(runes[i:end]))
			i = end
		}
	}

	out := css.String()
	if out == "" || strings.HasSuffix(out, " ") {
		out += "*"
	}
	seg.css = strings.TrimSpace(out)
	return seg, nil
}

// skipString returns the index just past the closing quote of a string whose
// body starts at i.
func skipString(runes []rune, i int, quote rune) int {
	for i < len(runes) {
		switch runes[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return len(runes)
}

func readHasTextArg(runes []rune, i int) (string, int, error) {
	for i < len(runes) && runes[i] == ' ' {
		i++
	}
	if i >= len(runes) || (runes[i] != '"' && runes[i] != '\'') {
		return "", 0, errors.New(":has-text expects a quoted argument")
	}
	quote := runes[i]
	i++

	var b strings.Builder
	for {
		if i >= len(runes) {
			return "", 0, errors.New("unterminated :has-text argument")
		}
		r := runes[i]
		if r == quote {
			i++
			break
		}
		if r != '\\' {
			b.WriteRune(r)
			i++
			continue
		}
		decoded, next := unescapeCSS(runes, i+1)
		b.WriteString(decoded)
		i = next
	}

	for i < len(runes) && runes[i] == ' ' {
		i++
	}
	if i >= len(runes) || runes[i] != ')' {
		return "", 0, errors.New("unterminated :has-text")
	}
	return b.String(), i + 1, nil
}

// unescapeCSS decodes the escape whose body starts at i (just after the
// backslash) and returns the decoded text and the index after it.
func unescapeCSS(runes []rune, i int) (string, int) {
	if i >= len(runes) {
		return "", i
	}
	j := i
	for j < len(runes) && j-i < 6 && isHex(runes[j]) {
		j++
	}
	if j == i {
		return string(runes[i]), i + 1
	}
	code, err := strconv.ParseUint(string(runes[i:j]), 16, 32)
	if err != nil {
		return "", j
	}
	if j < len(runes) && runes[j] == ' ' {
		j++
	}
	return string(rune(code)), j
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hasPrefixAt(runes []rune, i int, prefix []rune) bool {
	if i+len(prefix) > len(runes) {
		return false
	}
	for k, r := range prefix {
		if runes[i+k] != r {
			return false
		}
	}
	return true
}

// hasCombinator reports whether css has a descendant or sibling combinator
// outside strings and brackets.
func hasCombinator(css string) bool {
	depth := 0
	var quote rune
	runes := []rune(css)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '\\':
			_, next := unescapeCSS(runes, i+1)
			i = next - 1
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case depth == 0 && (r == ' ' || r == '+' || r == '~'):
			return true
		}
	}
	return false
}
