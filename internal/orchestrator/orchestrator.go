// Package orchestrator wires the browser, the locator engine and the
// purchase steps together and runs them end to end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/artifacts"
	"github.com/rmaia-dev/lotobot/internal/browser"
	"github.com/rmaia-dev/lotobot/internal/config"
	"github.com/rmaia-dev/lotobot/internal/flow"
	"github.com/rmaia-dev/lotobot/internal/locator"
)

// Orchestrator owns one purchase run.
type Orchestrator struct {
	logger   *zap.Logger
	cfg      *config.Config
	prompter flow.Prompter
}

// New validates the collaborators and builds an orchestrator.
func New(logger *zap.Logger, cfg *config.Config, prompter flow.Prompter) (*Orchestrator, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if prompter == nil {
		return nil, errors.New("prompter is required")
	}
	return &Orchestrator{logger: logger, cfg: cfg, prompter: prompter}, nil
}

// pageLister adapts the browser driver to the flow package.
type pageLister struct {
	driver *browser.Driver
}

func (l pageLister) Pages(ctx context.Context) ([]locator.Page, error) {
	pages, err := l.driver.Pages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]locator.Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, p)
	}
	return out, nil
}

// Run executes the full purchase: login, favorite selection, checkout and
// payment confirmation. Diagnostic captures land in the artifacts directory
// on both success and failure.
func (o *Orchestrator) Run(ctx context.Context) error {
	recorder, err := artifacts.NewRecorder(o.logger, o.cfg.Artifacts.Dir)
	if err != nil {
		return fmt.Errorf("preparing artifacts directory: %w", err)
	}
	o.logger.Info("Artifacts directory ready.", zap.String("dir", recorder.RunDir()))

	driver, err := browser.NewDriver(ctx, o.logger, browser.Options{
		Headless:     o.cfg.Browser.Headless,
		UserDataDir:  o.cfg.Browser.UserDataDir,
		UserAgent:    o.cfg.Browser.UserAgent,
		Args:         o.cfg.Browser.Args,
		StartTimeout: o.cfg.Browser.StartTimeout,
	})
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			o.logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	env := flow.NewEnv(o.logger, o.cfg, locator.NewResolver(o.logger), recorder, o.prompter, pageLister{driver: driver})

	var page locator.Page = driver.MainPage()
	if err := o.runSteps(ctx, env, recorder, page); err != nil {
		return err
	}

	o.logger.Info("Purchase completed.",
		zap.String("item", o.cfg.Purchase.FavoriteItemName),
		zap.String("total", o.cfg.Purchase.ExpectedTotal),
		zap.Int("artifacts", len(recorder.List())))
	return nil
}

func (o *Orchestrator) runSteps(ctx context.Context, env *flow.Env, recorder *artifacts.Recorder, page locator.Page) (err error) {
	defer func() {
		if err == nil {
			return
		}
		var flowErr *flow.Error
		if errors.As(err, &flowErr) {
			o.logger.Error("Purchase failed.",
				zap.String("step", flowErr.Step), zap.String("reason", flowErr.Reason))
			recorder.Capture(ctx, page, "fatal_error")
			return
		}
		o.logger.Error("Unexpected error.", zap.Error(err))
		recorder.Capture(ctx, page, "unexpected_error")
	}()

	page, err = env.Login(ctx, page)
	if err != nil {
		return err
	}
	if err = env.AddFavoriteToCart(ctx, page); err != nil {
		return err
	}
	return env.Checkout(ctx, page)
}
