package flow

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/artifacts"
	"github.com/rmaia-dev/lotobot/internal/config"
	"github.com/rmaia-dev/lotobot/internal/locator"
)

// PageLister enumerates the open tabs. The auth host sometimes moves the
// flow between tabs, so steps re-resolve the active page through it.
type PageLister interface {
	Pages(ctx context.Context) ([]locator.Page, error)
}

// Env bundles the collaborators every step needs.
type Env struct {
	Logger     *zap.Logger
	Config     *config.Config
	Resolver   *locator.Resolver
	Classifier locator.Classifier
	Recorder   *artifacts.Recorder
	Prompter   Prompter
	Lister     PageLister

	t timings
}

// NewEnv assembles a production environment with default wait budgets.
func NewEnv(logger *zap.Logger, cfg *config.Config, resolver *locator.Resolver, recorder *artifacts.Recorder, prompter Prompter, lister PageLister) *Env {
	return &Env{
		Logger:   logger,
		Config:   cfg,
		Resolver: resolver,
		Recorder: recorder,
		Prompter: prompter,
		Lister:   lister,
		t:        defaultTimings(),
	}
}

// pause sleeps for d unless the context ends first.
func (e *Env) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// capture saves a labeled screenshot, tolerating a missing recorder.
func (e *Env) capture(ctx context.Context, page locator.Page, label string) {
	if e.Recorder != nil {
		e.Recorder.Capture(ctx, page, label)
	}
}

// textExists reports whether the literal is visible anywhere on the page.
func (e *Env) textExists(ctx context.Context, scope locator.Scope, literal string, budget time.Duration) (bool, error) {
	if strings.TrimSpace(literal) == "" {
		return false, nil
	}
	return e.Resolver.TextExists(ctx, scope, locator.ByTextLiteral(literal), budget)
}

// textMatches reports whether text matching re is visible in the scope.
func (e *Env) textMatches(ctx context.Context, scope locator.Scope, re *regexp.Regexp, budget time.Duration) (bool, error) {
	return e.Resolver.TextExists(ctx, scope, locator.ByText(re), budget)
}

// currentURL reads the page URL, treating any failure as unknown.
func (e *Env) currentURL(ctx context.Context, page locator.Page) string {
	if page == nil || page.IsClosed() {
		return ""
	}
	url, err := page.CurrentURL(ctx)
	if err != nil {
		return ""
	}
	return url
}

// onLoginDomain reports whether the page is on the auth host.
func (e *Env) onLoginDomain(ctx context.Context, page locator.Page) bool {
	return strings.Contains(e.currentURL(ctx, page), e.Config.Site.LoginDomain)
}

// resolveActivePage picks the tab the flow should continue on. Preference
// order: the current page when alive and off the auth host, then the newest
// non-auth tab, then the newest auth tab, then the current page as-is.
func (e *Env) resolveActivePage(ctx context.Context, page locator.Page, step string) (locator.Page, error) {
	all, err := e.Lister.Pages(ctx)
	if err != nil {
		return nil, wrapFatal(step, err)
	}
	var open []locator.Page
	for _, candidate := range all {
		if !candidate.IsClosed() {
			open = append(open, candidate)
		}
	}
	if len(open) == 0 {
		return nil, failf(step, "browser has no open pages after login transition")
	}

	if page.IsClosed() {
		next := open[len(open)-1]
		e.Logger.Info("Switched to newest page after previous page closed.",
			zap.String("url", e.currentURL(ctx, next)))
		return next, nil
	}

	if url := e.currentURL(ctx, page); url != "" && !strings.Contains(url, e.Config.Site.LoginDomain) {
		return page, nil
	}

	for i := len(open) - 1; i >= 0; i-- {
		candidate := open[i]
		if candidate == page {
			continue
		}
		url := e.currentURL(ctx, candidate)
		if url != "" && !strings.Contains(url, e.Config.Site.LoginDomain) {
			e.Logger.Info("Switched to non-auth page after transition.", zap.String("url", url))
			return candidate, nil
		}
	}

	for i := len(open) - 1; i >= 0; i-- {
		candidate := open[i]
		if candidate == page {
			continue
		}
		if strings.Contains(e.currentURL(ctx, candidate), e.Config.Site.LoginDomain) {
			e.Logger.Info("Switched to auth page.", zap.String("url", e.currentURL(ctx, candidate)))
			return candidate, nil
		}
	}

	return page, nil
}
