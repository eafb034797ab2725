package selector

// EngineGlobal is the window property the in-page engine is installed under.
const EngineGlobal = "__autoqaSelectors"

// EngineScript returns the in-page selector engine. It installs
// window.__autoqaSelectors with synthesize, forClick, queryAll and isUnique,
// implementing the same strategies and :has-text matching as Synthesizer.
func EngineScript() string {
	return engineScript
}

const engineScript = `
(function () {
  if (window.__autoqaSelectors) {
    return;
  }

  var TEST_ATTRIBUTES = ['data-testid', 'data-test', 'data-cy', 'data-qa'];
  var HAS_TEXT = ':has-text(';
  var MAX_TEXT_LENGTH = 50;
  var MAX_SHORT_TEXT_LENGTH = 30;
  var MAX_POSITIONAL_PEERS = 10;
  var MAX_ANCHOR_DEPTH = 3;
  var MAX_STRUCTURAL_DEPTH = 4;
  var MAX_CLICK_ESCALATION = 3;

  function normalizeText(s) {
    return String(s || '').replace(/\s+/g, ' ').trim();
  }

  function textOf(el) {
    return normalizeText(el.textContent);
  }

  function cssString(v) {
    return '"' + String(v)
      .replace(/\\/g, '\\\\')
      .replace(/"/g, '\\"')
      .replace(/\n/g, '\\a ')
      .replace(/\r/g, '\\d ') + '"';
  }

  function cssIdent(v) {
    var chars = Array.from(String(v));
    var out = '';
    for (var i = 0; i < chars.length; i++) {
      var c = chars[i];
      var code = c.codePointAt(0);
      var digit = code >= 48 && code <= 57;
      if (code === 0) {
        out += '\uFFFD';
      } else if ((code >= 1 && code <= 31) || code === 127 || (i === 0 && digit) || (i === 1 && digit && chars[0] === '-')) {
        out += '\\' + code.toString(16) + (i < chars.length - 1 ? ' ' : '');
      } else if (i === 0 && c === '-' && chars.length === 1) {
        out += '\\-';
      } else if (code >= 128 || c === '-' || c === '_' || digit || /[a-zA-Z]/.test(c)) {
        out += c;
      } else {
        out += '\\' + c;
      }
    }
    return out;
  }

  function isDocumentRoot(el) {
    var tag = tagOf(el);
    return tag === 'body' || tag === 'html';
  }

  function tagOf(el) {
    return el.tagName.toLowerCase();
  }

  function classesOf(el) {
    var raw = typeof el.className === 'string' ? el.className : el.getAttribute('class');
    return normalizeText(raw).split(' ').filter(function (c) { return c.length > 0; });
  }

  function parentElementOf(el) {
    var p = el.parentElement;
    return p && p.nodeType === 1 ? p : null;
  }

  function nthOfType(el) {
    var idx = 1;
    for (var s = el.previousElementSibling; s; s = s.previousElementSibling) {
      if (s.tagName === el.tagName) {
        idx++;
      }
    }
    return idx;
  }

  function sameTagSiblings(el) {
    var parent = el.parentElement;
    if (!parent) {
      return 1;
    }
    var count = 0;
    for (var i = 0; i < parent.children.length; i++) {
      if (parent.children[i].tagName === el.tagName) {
        count++;
      }
    }
    return count;
  }

  function nthSuffix(n) {
    return ':nth-of-type(' + n + ')';
  }

  function hasText(text) {
    return HAS_TEXT + cssString(text) + ')';
  }

  function attrSelector(tag, name, value) {
    return tag + '[' + name + '=' + cssString(value) + ']';
  }

  // Selector parsing: CSS plus :has-text("...") split on top level '>'.

  function splitChildren(sel) {
    var parts = [];
    var start = 0;
    var depth = 0;
    var quote = null;
    for (var i = 0; i < sel.length; i++) {
      var c = sel.charAt(i);
      if (quote) {
        if (c === '\\') {
          i++;
        } else if (c === quote) {
          quote = null;
        }
      } else if (c === '\\') {
        i++;
      } else if (c === '"' || c === "'") {
        quote = c;
      } else if (c === '[' || c === '(') {
        depth++;
      } else if (c === ']' || c === ')') {
        depth--;
      } else if (c === '>' && depth === 0) {
        parts.push(sel.slice(start, i).trim());
        start = i + 1;
      }
    }
    if (quote || depth !== 0) {
      throw new Error('unbalanced selector');
    }
    parts.push(sel.slice(start).trim());
    parts.forEach(function (p) {
      if (!p) {
        throw new Error('dangling combinator');
      }
    });
    return parts;
  }

  function unescapeCSS(s, i) {
    var j = i;
    while (j < s.length && j - i < 6 && /[0-9a-fA-F]/.test(s.charAt(j))) {
      j++;
    }
    if (j === i) {
      return { text: s.charAt(i), next: i + 1 };
    }
    var code = parseInt(s.slice(i, j), 16);
    if (s.charAt(j) === ' ') {
      j++;
    }
    return { text: String.fromCodePoint(code), next: j };
  }

  function readHasTextArg(s, i) {
    while (s.charAt(i) === ' ') {
      i++;
    }
    var quote = s.charAt(i);
    if (quote !== '"' && quote !== "'") {
      throw new Error(':has-text expects a quoted argument');
    }
    i++;
    var text = '';
    for (;;) {
      if (i >= s.length) {
        throw new Error('unterminated :has-text argument');
      }
      var c = s.charAt(i);
      if (c === quote) {
        i++;
        break;
      }
      if (c !== '\\') {
        text += c;
        i++;
        continue;
      }
      var decoded = unescapeCSS(s, i + 1);
      text += decoded.text;
      i = decoded.next;
    }
    while (s.charAt(i) === ' ') {
      i++;
    }
    if (s.charAt(i) !== ')') {
      throw new Error('unterminated :has-text');
    }
    return { text: text, next: i + 1 };
  }

  function parseSegment(seg) {
    var css = '';
    var texts = [];
    var i = 0;
    while (i < seg.length) {
      if (seg.substr(i, HAS_TEXT.length) === HAS_TEXT) {
        var arg = readHasTextArg(seg, i + HAS_TEXT.length);
        texts.push(arg.text);
        i = arg.next;
        continue;
      }
      var c = seg.charAt(i);
      css += c;
      i++;
      if (c === '\\' && i < seg.length) {
        css += seg.charAt(i);
        i++;
        continue;
      }
      if (c === '"' || c === "'") {
        while (i < seg.length) {
          var d = seg.charAt(i);
          if (d === '\\') {
            css += seg.substr(i, 2);
            i += 2;
            continue;
          }
          css += d;
          i++;
          if (d === c) {
            break;
          }
        }
      }
    }
    if (css === '' || css.charAt(css.length - 1) === ' ') {
      css += '*';
    }
    return { css: css.trim(), texts: texts };
  }

  function hasCombinator(css) {
    var depth = 0;
    var quote = null;
    for (var i = 0; i < css.length; i++) {
      var c = css.charAt(i);
      if (quote) {
        if (c === '\\') {
          i++;
        } else if (c === quote) {
          quote = null;
        }
      } else if (c === '\\') {
        i = unescapeCSS(css, i + 1).next - 1;
      } else if (c === '"' || c === "'") {
        quote = c;
      } else if (c === '[' || c === '(') {
        depth++;
      } else if (c === ']' || c === ')') {
        depth--;
      } else if (depth === 0 && (c === ' ' || c === '+' || c === '~')) {
        return true;
      }
    }
    return false;
  }

  function containsAllTexts(el, texts) {
    if (!texts.length) {
      return true;
    }
    var haystack = textOf(el).toLowerCase();
    return texts.every(function (t) {
      return haystack.indexOf(normalizeText(t).toLowerCase()) !== -1;
    });
  }

  function queryAll(sel) {
    sel = String(sel || '').trim();
    if (!sel) {
      throw new Error('empty selector');
    }
    var segments = splitChildren(sel).map(parseSegment);
    var filtered = false;
    segments.forEach(function (seg, i) {
      if (seg.texts.length) {
        filtered = true;
        if (i > 0 && hasCombinator(seg.css)) {
          throw new Error(':has-text after a descendant combinator');
        }
      }
    });
    var css = segments.map(function (seg) { return seg.css; }).join(' > ');
    var nodes = Array.prototype.slice.call(document.querySelectorAll(css));
    if (!filtered) {
      return nodes;
    }
    return nodes.filter(function (n) {
      var cur = n;
      for (var i = segments.length - 1; i >= 0; i--) {
        if (!cur || !containsAllTexts(cur, segments[i].texts)) {
          return false;
        }
        cur = parentElementOf(cur);
      }
      return true;
    });
  }

  function isUnique(sel, el) {
    try {
      var nodes = queryAll(sel);
      return nodes.length === 1 && nodes[0] === el;
    } catch (e) {
      return false;
    }
  }

  function count(sel) {
    try {
      return queryAll(sel).length;
    } catch (e) {
      return -1;
    }
  }

  function firstUnique(el, candidates) {
    for (var i = 0; i < candidates.length; i++) {
      if (candidates[i] && isUnique(candidates[i], el)) {
        return candidates[i];
      }
    }
    return '';
  }

  // Strategies, in priority order.

  function byID(el) {
    var id = el.getAttribute('id');
    if (!id || !id.trim()) {
      return '';
    }
    return firstUnique(el, ['#' + cssIdent(id)]);
  }

  function byTestAttribute(el) {
    for (var i = 0; i < TEST_ATTRIBUTES.length; i++) {
      var v = el.getAttribute(TEST_ATTRIBUTES[i]);
      if (v) {
        var found = firstUnique(el, [attrSelector('', TEST_ATTRIBUTES[i], v)]);
        if (found) {
          return found;
        }
      }
    }
    return '';
  }

  function byAriaLabel(el) {
    var v = el.getAttribute('aria-label');
    return v ? firstUnique(el, [attrSelector('', 'aria-label', v)]) : '';
  }

  function byAltText(el) {
    if (tagOf(el) !== 'img') {
      return '';
    }
    var v = el.getAttribute('alt');
    return v ? firstUnique(el, [attrSelector('img', 'alt', v)]) : '';
  }

  function byControlText(el) {
    var tag = tagOf(el);
    if (tag !== 'button' && tag !== 'a') {
      return '';
    }
    var text = textOf(el);
    return text ? firstUnique(el, [tag + hasText(text)]) : '';
  }

  function byShortText(el) {
    var text = textOf(el);
    if (!text || text.length >= MAX_TEXT_LENGTH) {
      return '';
    }
    return firstUnique(el, [tagOf(el) + hasText(text)]);
  }

  function byClass(el) {
    var classes = classesOf(el);
    var tag = tagOf(el);
    var text = textOf(el);
    for (var i = 0; i < classes.length; i++) {
      var tagClass = tag + '.' + cssIdent(classes[i]);
      if (isUnique(tagClass, el)) {
        return tagClass;
      }
      if (text && text.length < MAX_SHORT_TEXT_LENGTH) {
        var withText = firstUnique(el, [tagClass + hasText(text)]);
        if (withText) {
          return withText;
        }
      }
      var peers = count(tagClass);
      if (peers > 1 && peers < MAX_POSITIONAL_PEERS) {
        var positional = firstUnique(el, [tagClass + nthSuffix(nthOfType(el))]);
        if (positional) {
          return positional;
        }
      }
    }
    return '';
  }

  function childPath(anc, el) {
    var steps = [];
    for (var cur = el; cur && cur !== anc; cur = cur.parentElement) {
      steps.unshift(tagOf(cur) + nthSuffix(nthOfType(cur)));
    }
    return steps.join(' > ');
  }

  function anchorSelector(anc) {
    if (isDocumentRoot(anc)) {
      return '';
    }
    var id = anc.getAttribute('id');
    if (id && id.trim()) {
      var byId = firstUnique(anc, ['#' + cssIdent(id)]);
      if (byId) {
        return byId;
      }
    }
    var classes = classesOf(anc);
    for (var i = 0; i < classes.length; i++) {
      var byCls = firstUnique(anc, [tagOf(anc) + '.' + cssIdent(classes[i])]);
      if (byCls) {
        return byCls;
      }
    }
    var text = textOf(anc);
    if (text && text.length < MAX_SHORT_TEXT_LENGTH) {
      return firstUnique(anc, [tagOf(anc) + hasText(text)]);
    }
    return '';
  }

  function byAnchor(el) {
    var anc = parentElementOf(el);
    for (var level = 0; anc && level < MAX_ANCHOR_DEPTH; level++) {
      if (isDocumentRoot(anc)) {
        break;
      }
      var anchor = anchorSelector(anc);
      if (anchor) {
        var found = firstUnique(el, [anchor + ' > ' + childPath(anc, el)]);
        if (found) {
          return found;
        }
      }
      anc = parentElementOf(anc);
    }
    return '';
  }

  function byOtherAttribute(el) {
    var tag = tagOf(el);
    for (var i = 0; i < el.attributes.length; i++) {
      var a = el.attributes[i];
      if (a.name === 'class' || a.name === 'style' || a.name === 'id') {
        continue;
      }
      var found = firstUnique(el, [attrSelector(tag, a.name, a.value)]);
      if (found) {
        return found;
      }
    }
    return '';
  }

  function mostSelectiveClass(el) {
    var classes = classesOf(el);
    if (classes.length === 0) {
      return '';
    }
    if (classes.length === 1) {
      return classes[0];
    }
    for (var i = 0; i < classes.length; i++) {
      var n = count('.' + cssIdent(classes[i]));
      if (n > 0 && n < MAX_POSITIONAL_PEERS) {
        return classes[i];
      }
    }
    return classes[0];
  }

  function byStructure(el) {
    var parts = [];
    var cur = el;
    for (var depth = 0; cur && cur.nodeType === 1 && depth < MAX_STRUCTURAL_DEPTH; depth++) {
      if (isDocumentRoot(cur)) {
        break;
      }
      var part = tagOf(cur);
      if (sameTagSiblings(cur) > 1) {
        part += nthSuffix(nthOfType(cur));
      }
      var cls = mostSelectiveClass(cur);
      if (cls) {
        part += '.' + cssIdent(cls);
      }
      parts.unshift(part);
      cur = parentElementOf(cur);
    }
    return parts.length ? firstUnique(el, [parts.join(' > ')]) : '';
  }

  function globalIndex(el) {
    var all = document.getElementsByTagName(el.tagName);
    for (var i = 0; i < all.length; i++) {
      if (all[i] === el) {
        return i + 1;
      }
    }
    return 1;
  }

  function byGlobalPosition(el) {
    return firstUnique(el, [tagOf(el) + nthSuffix(globalIndex(el))]);
  }

  var STRATEGIES = [
    byID, byTestAttribute, byAriaLabel, byAltText, byControlText, byShortText,
    byClass, byAnchor, byOtherAttribute, byStructure, byGlobalPosition
  ];

  function synthesize(el) {
    if (!el || el.nodeType !== 1) {
      return '';
    }
    var tag = tagOf(el);
    try {
      for (var i = 0; i < STRATEGIES.length; i++) {
        var found = STRATEGIES[i](el);
        if (found) {
          return found;
        }
      }
    } catch (e) {
      return tag;
    }
    return tag;
  }

  function isTrivial(sel, tag) {
    return sel === tag || sel === tag + nthSuffix(1);
  }

  function forClick(el) {
    var sel = synthesize(el);
    if (!el || el.nodeType !== 1 || !isTrivial(sel, tagOf(el))) {
      return sel;
    }
    try {
      var anc = parentElementOf(el);
      for (var level = 0; anc && level < MAX_CLICK_ESCALATION; level++) {
        if (isDocumentRoot(anc)) {
          break;
        }
        var ancSel = synthesize(anc);
        if (!isTrivial(ancSel, tagOf(anc))) {
          return ancSel + ' > ' + childPath(anc, el);
        }
        anc = parentElementOf(anc);
      }
      var text = textOf(el);
      if (text && text.length < MAX_SHORT_TEXT_LENGTH) {
        return tagOf(el) + hasText(text);
      }
      return tagOf(el) + nthSuffix(globalIndex(el));
    } catch (e) {
      return tagOf(el);
    }
  }

  Object.defineProperty(window, '__autoqaSelectors', {
    value: {
      synthesize: synthesize,
      forClick: forClick,
      queryAll: queryAll,
      isUnique: isUnique
    },
    enumerable: false
  });
})();
`
