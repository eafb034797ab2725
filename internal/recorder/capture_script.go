package recorder

import (
	"strconv"
	"strings"

	"autoqa/backend/internal/selector"
)

// Names of the page bindings the capture script reports through.
const (
	BindingStep   = "recordStep"
	BindingScroll = "recordScroll"
)

// ScrollDebounceMillis is how long the page waits after the last scroll event
// before reporting the position.
const ScrollDebounceMillis = 100

// recordingScript returns the document-start script installed in every
// frame of the recording tab: the selector engine followed by the listeners.
func recordingScript() string {
	capture := strings.NewReplacer(
		"__DEBOUNCE__", strconv.Itoa(ScrollDebounceMillis),
		"__STEP__", BindingStep,
		"__SCROLL__", BindingScroll,
		"__ENGINE__", selector.EngineGlobal,
	).Replace(captureScript)
	return selector.EngineScript() + capture
}

const captureScript = `
(function () {
  if (window.__autoqaCapture) {
    return;
  }
  window.__autoqaCapture = true;

  var engine = window.__ENGINE__;

  function send(binding, payload) {
    var fn = window[binding];
    if (typeof fn !== 'function') {
      return;
    }
    try {
      fn(JSON.stringify(payload));
    } catch (e) {
      // the host went away; nothing to report to
    }
  }

  function elementOf(target) {
    if (!target) {
      return null;
    }
    if (target.nodeType === 1) {
      return target;
    }
    return target.parentElement || null;
  }

  document.addEventListener('click', function (event) {
    var el = elementOf(event.target);
    if (!el) {
      return;
    }
    send('__STEP__', {
      action: 'click',
      selector: engine.forClick(el),
      x: event.pageX,
      y: event.pageY,
      timestamp: Date.now()
    });
  }, true);

  document.addEventListener('input', function (event) {
    var el = elementOf(event.target);
    if (!el) {
      return;
    }
    var value = 'value' in el ? el.value : el.textContent;
    send('__STEP__', {
      action: 'input',
      selector: engine.synthesize(el),
      value: value == null ? '' : String(value),
      timestamp: Date.now()
    });
  }, true);

  var scrollTimer = null;
  window.addEventListener('scroll', function () {
    if (scrollTimer !== null) {
      clearTimeout(scrollTimer);
    }
    scrollTimer = setTimeout(function () {
      scrollTimer = null;
      send('__SCROLL__', {
        scrollY: window.scrollY || window.pageYOffset || 0,
        timestamp: Date.now()
      });
    }, __DEBOUNCE__);
  }, { passive: true });
})();
`
