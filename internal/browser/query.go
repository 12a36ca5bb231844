package browser

import (
	"encoding/json"
	"fmt"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

// handleAttr is the attribute stamped onto matched nodes so later
// operations can re-address them with a plain CSS selector. Handles are
// assigned once per node and survive until the node is removed.
const handleAttr = "data-lb-handle"

// queryHit is one candidate node returned by the query script. Text and
// Name are evidence for the Go-side pattern filters; they are empty for
// selector queries.
type queryHit struct {
	Handle string `json:"h"`
	Text   string `json:"text"`
	Name   string `json:"name"`
}

// queryRuntime is injected once per page and reused. It tags nodes with
// stable handles and gathers candidates per strategy. Text candidates carry
// their own shallow text (direct text-node children only) so the innermost
// matching node wins naturally.
const queryRuntime = `
(function() {
    if (window.__lbq) return;
    let seq = 0;
    const tag = function(el) {
        let h = el.getAttribute('%[1]s');
        if (!h) {
            h = 'h' + (++seq) + '-' + Date.now();
            el.setAttribute('%[1]s', h);
        }
        return h;
    };
    const shallowText = function(el) {
        let out = '';
        for (const n of el.childNodes) {
            if (n.nodeType === Node.TEXT_NODE) out += n.textContent;
        }
        return out.replace(/\s+/g, ' ').trim();
    };
    const accName = function(el) {
        const label = el.getAttribute('aria-label');
        if (label && label.trim()) return label.trim();
        const text = (el.innerText || '').replace(/\s+/g, ' ').trim();
        if (text) return text;
        const value = el.getAttribute('value');
        if (value && value.trim()) return value.trim();
        const title = el.getAttribute('title');
        return title ? title.trim() : '';
    };
    const roleSelector = function(role) {
        switch (role) {
        case 'button':
            return 'button, [role="button"], input[type="button"], input[type="submit"]';
        case 'link':
            return 'a[href], [role="link"]';
        default:
            return '[role="' + role + '"]';
        }
    };
    window.__lbq = {
        css: function(root, sel) {
            const out = [];
            for (const el of root.querySelectorAll(sel)) {
                out.push({h: tag(el), text: '', name: ''});
            }
            return out;
        },
        xpath: function(root, expr) {
            const out = [];
            const doc = root.ownerDocument || root;
            const res = doc.evaluate(expr, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
            for (let i = 0; i < res.snapshotLength; i++) {
                const node = res.snapshotItem(i);
                if (node && node.nodeType === Node.ELEMENT_NODE) {
                    out.push({h: tag(node), text: '', name: ''});
                }
            }
            return out;
        },
        text: function(root) {
            const out = [];
            for (const el of root.querySelectorAll('*')) {
                const t = shallowText(el);
                if (t) out.push({h: tag(el), text: t, name: ''});
            }
            return out;
        },
        role: function(root, role) {
            const out = [];
            for (const el of root.querySelectorAll(roleSelector(role))) {
                out.push({h: tag(el), text: '', name: accName(el)});
            }
            return out;
        }
    };
})();
`

// buildQueryScript returns an expression yielding []queryHit for q, rooted
// at rootSel or at the document when rootSel is empty. Root disappearance
// yields an empty result, not an error; the resolver treats both as a miss.
func buildQueryScript(rootSel string, q locator.Query) (string, error) {
	rootExpr := "document"
	if rootSel != "" {
		rootExpr = fmt.Sprintf("document.querySelector(%s)", jsString(rootSel))
	}

	var call string
	switch q.Kind {
	case locator.KindSelector:
		call = fmt.Sprintf("window.__lbq.css(root, %s)", jsString(q.Selector))
	case locator.KindXPath:
		call = fmt.Sprintf("window.__lbq.xpath(root, %s)", jsString(q.Selector))
	case locator.KindText:
		call = "window.__lbq.text(root)"
	case locator.KindRole:
		call = fmt.Sprintf("window.__lbq.role(root, %s)", jsString(q.Role))
	default:
		return "", fmt.Errorf("unsupported query kind %d", q.Kind)
	}

	return fmt.Sprintf(`
%s
(function() {
    const root = %s;
    if (!root) return [];
    try {
        return %s;
    } catch (e) {
        return [];
    }
})()
`, fmt.Sprintf(queryRuntime, handleAttr), rootExpr, call), nil
}

// matchesQuery applies the pattern half of text and role queries. Selector
// and XPath hits pass unfiltered.
func matchesQuery(q locator.Query, hit queryHit) bool {
	switch q.Kind {
	case locator.KindText:
		return q.Text != nil && q.Text.MatchString(hit.Text)
	case locator.KindRole:
		return q.Name != nil && q.Name.MatchString(hit.Name)
	default:
		return true
	}
}

// handleSelector addresses a previously tagged node.
func handleSelector(handle string) string {
	return fmt.Sprintf("[%s=%q]", handleAttr, handle)
}

// jsString safely embeds a Go string as a JS string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
