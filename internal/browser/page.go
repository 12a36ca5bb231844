package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

// Page is one browser tab. It satisfies locator.Page.
type Page struct {
	ctx    context.Context
	logger *zap.Logger
}

var _ locator.Page = (*Page)(nil)

func newPage(tabCtx context.Context, logger *zap.Logger) *Page {
	return &Page{ctx: tabCtx, logger: logger}
}

// run executes chromedp actions against the tab, honoring both the tab
// lifecycle and the caller's deadline, and maps dead-target failures to
// locator.ErrPageClosed.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.IsClosed() {
		return locator.ErrPageClosed
	}
	opCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.ctx.Err() != nil || isTargetGone(err) {
		return fmt.Errorf("%w: %v", locator.ErrPageClosed, err)
	}
	return err
}

// evaluate runs script in the tab and decodes the JSON result into out.
func (p *Page) evaluate(ctx context.Context, script string, out interface{}) error {
	var raw json.RawMessage
	err := p.run(ctx, chromedp.Evaluate(script, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Info("Navigating.", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

// CurrentURL returns the tab's current location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// IsClosed reports whether the tab's lifecycle context is gone. Sites close
// auth popups themselves, so flows re-check this before every wait.
func (p *Page) IsClosed() bool {
	return p.ctx.Err() != nil
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ScrollBy scrolls the window by the given deltas.
func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	return p.evaluate(ctx, fmt.Sprintf("window.scrollBy(%v, %v); true", dx, dy), nil)
}

// Find implements locator.Scope against the whole document.
func (p *Page) Find(ctx context.Context, q locator.Query) ([]locator.Element, error) {
	return p.findWithin(ctx, "", q)
}

// findWithin runs the query rooted at rootSel ("" for the document), tags
// matches with the handle attribute and filters text and role name patterns
// on the Go side, where the patterns live.
func (p *Page) findWithin(ctx context.Context, rootSel string, q locator.Query) ([]locator.Element, error) {
	script, err := buildQueryScript(rootSel, q)
	if err != nil {
		return nil, err
	}

	var hits []queryHit
	if err := p.evaluate(ctx, script, &hits); err != nil {
		return nil, err
	}

	var els []locator.Element
	for _, hit := range hits {
		if !matchesQuery(q, hit) {
			continue
		}
		els = append(els, newElement(p, hit.Handle))
	}
	return els, nil
}

// isTargetGone recognizes chromedp errors meaning the tab or browser died.
func isTargetGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"no such target",
		"target closed",
		"target crashed",
		"session closed",
		"websocket url timeout",
		"websocket: close",
		"browser closed",
		"context canceled",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// combineContext derives a context canceled when either input is.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
