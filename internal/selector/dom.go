package selector

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func isElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func classList(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func parentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if p := n.Parent; isElement(p) {
		return p
	}
	return nil
}

// nthOfType is the 1-based position of n among its same-tag siblings.
func nthOfType(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if isElement(s) && s.Data == n.Data {
			idx++
		}
	}
	return idx
}

func sameTagSiblings(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	count := 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if isElement(s) && s.Data == n.Data {
			count++
		}
	}
	return count
}

func textContent(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

// normalizeText collapses runs of whitespace to one space and trims the ends.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}

// cssString quotes v as a CSS string literal.
func cssString(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		case '\r':
			b.WriteString(`\d `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// cssIdent escapes v for use as an id or class name the way CSS.escape does,
// except that a code point escape at the very end gets no trailing space.
func cssIdent(v string) string {
	runes := []rune(v)
	var b strings.Builder
	b.Grow(len(v))
	for i, r := range runes {
		digit := r >= '0' && r <= '9'
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f || (i == 0 && digit) || (i == 1 && digit && runes[0] == '-'):
			b.WriteString(`\` + strconv.FormatInt(int64(r), 16))
			if i < len(runes)-1 {
				b.WriteByte(' ')
			}
		case i == 0 && r == '-' && len(runes) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' || digit || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDocumentRoot(n *html.Node) bool {
	return n.Data == "body" || n.Data == "html"
}

func nthOfTypeSuffix(n int) string {
	return ":nth-of-type(" + strconv.Itoa(n) + ")"
}
