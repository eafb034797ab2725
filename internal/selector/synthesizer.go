package selector

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Attributes test suites put on elements, in the order they are preferred.
var testAttributes = []string{"data-testid", "data-test", "data-cy", "data-qa"}

const (
	maxTextLength      = 50
	maxShortTextLength = 30
	maxPositionalPeers = 10
	maxAnchorDepth     = 3
	maxStructuralDepth = 4
	maxClickEscalation = 3
)

// Synthesizer derives selectors for elements of a parsed document. It is the
// offline counterpart of the selector script injected into recorded pages and
// follows the same strategy order.
type Synthesizer struct {
	doc  *goquery.Document
	root *html.Node
}

func New(doc *goquery.Document) *Synthesizer {
	return &Synthesizer{doc: doc, root: doc.Nodes[0]}
}

// FromHTML parses r as a DOM snapshot.
func FromHTML(r io.Reader) (*Synthesizer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return New(doc), nil
}

func (s *Synthesizer) Document() *goquery.Document {
	return s.doc
}

// Query runs sel against the document, :has-text included.
func (s *Synthesizer) Query(sel string) ([]*html.Node, error) {
	return Query(s.root, sel)
}

// Synthesize returns a selector that matches el and nothing else when one of
// the strategies finds such a selector. Otherwise it returns a positional or
// bare tag fallback that may match other elements too.
func (s *Synthesizer) Synthesize(el *html.Node) (sel string) {
	if !isElement(el) {
		return ""
	}
	tag := el.Data
	defer func() {
		if r := recover(); r != nil {
			sel = tag
		}
	}()

	candidates := []func(*html.Node) string{
		s.byID,
		s.byTestAttribute,
		s.byAriaLabel,
		s.byAltText,
		s.byControlText,
		s.byShortText,
		s.byClass,
		s.byAnchor,
		s.byOtherAttribute,
		s.byStructure,
		s.byGlobalPosition,
	}
	for _, candidate := range candidates {
		if found := candidate(el); found != "" {
			return found
		}
	}
	return tag
}

// ForClick is Synthesize with extra effort for click targets: a trivial
// result is escalated through up to three parents, then short text, then
// page-wide position.
func (s *Synthesizer) ForClick(el *html.Node) (sel string) {
	sel = s.Synthesize(el)
	if !isElement(el) || !isTrivial(sel, el.Data) {
		return sel
	}
	defer func() {
		if r := recover(); r != nil {
			sel = el.Data
		}
	}()

	for anc, level := parentElement(el), 0; anc != nil && level < maxClickEscalation; anc, level = parentElement(anc), level+1 {
		if isDocumentRoot(anc) {
			break
		}
		ancSel := s.Synthesize(anc)
		if !isTrivial(ancSel, anc.Data) {
			return ancSel + " > " + childPath(anc, el)
		}
	}

	if text := normalizeText(textContent(el)); text != "" && textLen(text) < maxShortTextLength {
		return el.Data + hasText(text)
	}
	return el.Data + nthOfTypeSuffix(s.globalIndex(el))
}

func isTrivial(sel, tag string) bool {
	return sel == tag || sel == tag+nthOfTypeSuffix(1)
}

// isUnique reports whether sel matches exactly el. Selectors that fail to
// parse are treated as not unique.
func (s *Synthesizer) isUnique(sel string, el *html.Node) bool {
	nodes, err := Query(s.root, sel)
	return err == nil && len(nodes) == 1 && nodes[0] == el
}

func (s *Synthesizer) count(sel string) int {
	nodes, err := Query(s.root, sel)
	if err != nil {
		return -1
	}
	return len(nodes)
}

func (s *Synthesizer) firstUnique(el *html.Node, candidates ...string) string {
	for _, c := range candidates {
		if c != "" && s.isUnique(c, el) {
			return c
		}
	}
	return ""
}

func (s *Synthesizer) byID(el *html.Node) string {
	id, _ := attr(el, "id")
	if strings.TrimSpace(id) == "" {
		return ""
	}
	return s.firstUnique(el, "#"+cssIdent(id))
}

func (s *Synthesizer) byTestAttribute(el *html.Node) string {
	for _, name := range testAttributes {
		if v, ok := attr(el, name); ok && v != "" {
			if found := s.firstUnique(el, attrSelector("", name, v)); found != "" {
				return found
			}
		}
	}
	return ""
}

func (s *Synthesizer) byAriaLabel(el *html.Node) string {
	if v, ok := attr(el, "aria-label"); ok && v != "" {
		return s.firstUnique(el, attrSelector("", "aria-label", v))
	}
	return ""
}

func (s *Synthesizer) byAltText(el *html.Node) string {
	if el.Data != "img" {
		return ""
	}
	if v, ok := attr(el, "alt"); ok && v != "" {
		return s.firstUnique(el, attrSelector("img", "alt", v))
	}
	return ""
}

func (s *Synthesizer) byControlText(el *html.Node) string {
	if el.Data != "button" && el.Data != "a" {
		return ""
	}
	text := normalizeText(textContent(el))
	if text == "" {
		return ""
	}
	return s.firstUnique(el, el.Data+hasText(text))
}

func (s *Synthesizer) byShortText(el *html.Node) string {
	text := normalizeText(textContent(el))
	if text == "" || textLen(text) >= maxTextLength {
		return ""
	}
	return s.firstUnique(el, el.Data+hasText(text))
}

func (s *Synthesizer) byClass(el *html.Node) string {
	classes := classList(el)
	if len(classes) == 0 {
		return ""
	}
	text := normalizeText(textContent(el))

	for _, cls := range classes {
		tagClass := el.Data + "." + cssIdent(cls)
		if s.isUnique(tagClass, el) {
			return tagClass
		}
		if text != "" && textLen(text) < maxShortTextLength {
			if found := s.firstUnique(el, tagClass+hasText(text)); found != "" {
				return found
			}
		}
		if peers := s.count(tagClass); peers > 1 && peers < maxPositionalPeers {
			if found := s.firstUnique(el, tagClass+nthOfTypeSuffix(nthOfType(el))); found != "" {
				return found
			}
		}
	}
	return ""
}

// byAnchor looks for an ancestor that can be selected on its own and walks
// down to el with positional child steps.
func (s *Synthesizer) byAnchor(el *html.Node) string {
	for anc, level := parentElement(el), 0; anc != nil && level < maxAnchorDepth; anc, level = parentElement(anc), level+1 {
		if isDocumentRoot(anc) {
			break
		}
		anchor := s.anchorSelector(anc)
		if anchor == "" {
			continue
		}
		if found := s.firstUnique(el, anchor+" > "+childPath(anc, el)); found != "" {
			return found
		}
	}
	return ""
}

// anchorSelector never anchors on body or html: their text is the whole page.
func (s *Synthesizer) anchorSelector(anc *html.Node) string {
	if isDocumentRoot(anc) {
		return ""
	}
	if id, _ := attr(anc, "id"); strings.TrimSpace(id) != "" {
		if found := s.firstUnique(anc, "#"+cssIdent(id)); found != "" {
			return found
		}
	}
	for _, cls := range classList(anc) {
		if found := s.firstUnique(anc, anc.Data+"."+cssIdent(cls)); found != "" {
			return found
		}
	}
	if text := normalizeText(textContent(anc)); text != "" && textLen(text) < maxShortTextLength {
		return s.firstUnique(anc, anc.Data+hasText(text))
	}
	return ""
}

func (s *Synthesizer) byOtherAttribute(el *html.Node) string {
	for _, a := range el.Attr {
		switch a.Key {
		case "class", "style", "id":
			continue
		}
		if found := s.firstUnique(el, attrSelector(el.Data, a.Key, a.Val)); found != "" {
			return found
		}
	}
	return ""
}

func (s *Synthesizer) byStructure(el *html.Node) string {
	var parts []string
	for cur, depth := el, 0; isElement(cur) && !isDocumentRoot(cur) && depth < maxStructuralDepth; cur, depth = parentElement(cur), depth+1 {
		part := cur.Data
		if sameTagSiblings(cur) > 1 {
			part += nthOfTypeSuffix(nthOfType(cur))
		}
		if cls := s.mostSelectiveClass(cur); cls != "" {
			part += "." + cssIdent(cls)
		}
		parts = append([]string{part}, parts...)
	}
	if len(parts) == 0 {
		return ""
	}
	return s.firstUnique(el, strings.Join(parts, " > "))
}

func (s *Synthesizer) mostSelectiveClass(el *html.Node) string {
	classes := classList(el)
	switch len(classes) {
	case 0:
		return ""
	case 1:
		return classes[0]
	}
	for _, cls := range classes {
		if n := s.count("." + cssIdent(cls)); n > 0 && n < maxPositionalPeers {
			return cls
		}
	}
	return classes[0]
}

func (s *Synthesizer) byGlobalPosition(el *html.Node) string {
	return s.firstUnique(el, el.Data+nthOfTypeSuffix(s.globalIndex(el)))
}

// globalIndex is el's 1-based position among all elements with its tag.
func (s *Synthesizer) globalIndex(el *html.Node) int {
	m, err := cascadia.Compile(el.Data)
	if err != nil {
		return 1
	}
	for i, n := range cascadia.QueryAll(s.root, m) {
		if n == el {
			return i + 1
		}
	}
	return 1
}

// childPath walks from anc down to el as "tag:nth-of-type(n)" child steps.
func childPath(anc, el *html.Node) string {
	var steps []string
	for cur := el; cur != nil && cur != anc; cur = cur.Parent {
		steps = append([]string{cur.Data + nthOfTypeSuffix(nthOfType(cur))}, steps...)
	}
	return strings.Join(steps, " > ")
}

func attrSelector(tag, name, value string) string {
	return tag + "[" + name + "=" + cssString(value) + "]"
}

func hasText(text string) string {
	return hasTextPseudo + cssString(text) + ")"
}
