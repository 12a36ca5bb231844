package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

// Element is a handle to a tagged DOM node. Handles go stale when the node
// is removed; stale operations fail with errStaleElement, which resolvers
// treat as a miss.
type Element struct {
	page   *Page
	handle string
}

var _ locator.Element = (*Element)(nil)

var errStaleElement = errors.New("element handle is stale")

func newElement(p *Page, handle string) *Element {
	return &Element{page: p, handle: handle}
}

func (e *Element) selector() string {
	return handleSelector(e.handle)
}

// Find implements locator.Scope rooted at this element's subtree, which is
// how modal-scoped and row-scoped searches stay inside their container.
func (e *Element) Find(ctx context.Context, q locator.Query) ([]locator.Element, error) {
	return e.page.findWithin(ctx, e.selector(), q)
}

// Click scrolls the node into view and clicks it via the DOM. Overlays that
// swallow pointer events do not block a programmatic click, which matches
// how dialog buttons on heavy pages behave.
func (e *Element) Click(ctx context.Context) error {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return 'stale';
    el.scrollIntoView({block: 'center', inline: 'center'});
    el.click();
    return 'ok';
})()
`, jsString(e.selector()))

	var status string
	if err := e.page.evaluate(ctx, script, &status); err != nil {
		return err
	}
	if status != "ok" {
		return errStaleElement
	}
	return nil
}

// Fill sets the node's value and fires the input and change events that
// framework-bound fields listen for.
func (e *Element) Fill(ctx context.Context, value string) error {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return 'stale';
    el.focus();
    el.value = %s;
    el.dispatchEvent(new Event('input', {bubbles: true}));
    el.dispatchEvent(new Event('change', {bubbles: true}));
    return 'ok';
})()
`, jsString(e.selector()), jsString(value))

	var status string
	if err := e.page.evaluate(ctx, script, &status); err != nil {
		return err
	}
	if status != "ok" {
		return errStaleElement
	}
	return nil
}

// PressEnter focuses the node and sends a real Enter key event.
func (e *Element) PressEnter(ctx context.Context) error {
	focus := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return 'stale';
    el.focus();
    return 'ok';
})()
`, jsString(e.selector()))

	var status string
	if err := e.page.evaluate(ctx, focus, &status); err != nil {
		return err
	}
	if status != "ok" {
		return errStaleElement
	}
	return e.page.run(ctx, chromedp.KeyEvent(kb.Enter))
}

// Text returns the node's rendered text, whitespace-collapsed.
func (e *Element) Text(ctx context.Context) (string, error) {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return null;
    return (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
})()
`, jsString(e.selector()))

	var out *string
	if err := e.page.evaluate(ctx, script, &out); err != nil {
		return "", err
	}
	if out == nil {
		return "", errStaleElement
	}
	return *out, nil
}

// Attr returns the named attribute and whether it is present.
func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return null;
    const v = el.getAttribute(%s);
    return v === null ? {ok: false, v: ''} : {ok: true, v: v};
})()
`, jsString(e.selector()), jsString(name))

	var out *struct {
		OK bool   `json:"ok"`
		V  string `json:"v"`
	}
	if err := e.page.evaluate(ctx, script, &out); err != nil {
		return "", false, err
	}
	if out == nil {
		return "", false, errStaleElement
	}
	return out.V, out.OK, nil
}

// Visible applies the geometry-and-style visibility test.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (!el) return false;
    const rect = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    return rect.width > 0 && rect.height > 0 &&
        style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
})()
`, jsString(e.selector()))

	var visible bool
	if err := e.page.evaluate(ctx, script, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// ScrollIntoView centers the node in the viewport.
func (e *Element) ScrollIntoView(ctx context.Context) error {
	script := fmt.Sprintf(`
(function() {
    const el = document.querySelector(%s);
    if (el) el.scrollIntoView({block: 'center', inline: 'center'});
    return true;
})()
`, jsString(e.selector()))
	return e.page.evaluate(ctx, script, nil)
}
