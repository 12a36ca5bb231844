package locator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Resolver evaluates candidate cascades against a scope. Candidate order is
// a total priority: the first candidate that produces a visible element
// within its per-candidate budget wins, even if later candidates would also
// match. The resolver never loops beyond the stated budgets; retries are
// composed explicitly by callers.
type Resolver struct {
	logger *zap.Logger
	poll   time.Duration
}

// NewResolver builds a resolver with the default poll interval.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger, poll: 150 * time.Millisecond}
}

// NewResolverWithPoll overrides the visibility poll interval. Used by tests
// driving fake scopes where real waits only slow things down.
func NewResolverWithPoll(logger *zap.Logger, poll time.Duration) *Resolver {
	return &Resolver{logger: logger, poll: poll}
}

// Resolve tries each candidate in order, waiting up to perCandidate for a
// visible match, and returns the first hit. A miss across the whole cascade
// is (nil, false, nil). Only a dead page is an error.
func (r *Resolver) Resolve(ctx context.Context, scope Scope, candidates []Query, perCandidate time.Duration) (Element, bool, error) {
	for _, q := range candidates {
		if q.Zero() {
			continue
		}
		el, err := r.waitVisible(ctx, scope, q, perCandidate)
		if err != nil {
			return nil, false, err
		}
		if el != nil {
			return el, true, nil
		}
	}
	return nil, false, nil
}

// ResolveAll enumerates every current match for a single candidate. It
// re-queries the live DOM on each call; callers re-invoke it instead of
// caching handles, since rows may be re-rendered between iterations.
func (r *Resolver) ResolveAll(ctx context.Context, scope Scope, q Query) ([]Element, error) {
	if q.Zero() {
		return nil, nil
	}
	els, err := scope.Find(ctx, q)
	if err != nil {
		if errors.Is(err, ErrPageClosed) {
			return nil, err
		}
		r.logger.Debug("enumeration query failed", zap.String("query", q.Key()), zap.Error(err))
		return nil, nil
	}
	return els, nil
}

// ClickFirst walks the cascade clicking the first candidate that is visible
// and accepts the click. A failed click falls through to the next candidate.
func (r *Resolver) ClickFirst(ctx context.Context, scope Scope, candidates []Query, perCandidate time.Duration) (bool, error) {
	for _, q := range candidates {
		if q.Zero() {
			continue
		}
		el, err := r.waitVisible(ctx, scope, q, perCandidate)
		if err != nil {
			return false, err
		}
		if el == nil {
			continue
		}
		if err := el.Click(ctx); err != nil {
			if errors.Is(err, ErrPageClosed) {
				return false, err
			}
			r.logger.Debug("click failed, trying next candidate", zap.String("query", q.Key()), zap.Error(err))
			continue
		}
		return true, nil
	}
	return false, nil
}

// TryClick clicks one already-resolved element, treating any non-fatal
// failure as a negative result.
func (r *Resolver) TryClick(ctx context.Context, el Element) (bool, error) {
	if el == nil {
		return false, nil
	}
	if visible, err := el.Visible(ctx); err != nil || !visible {
		if err != nil && errors.Is(err, ErrPageClosed) {
			return false, err
		}
		return false, nil
	}
	if err := el.Click(ctx); err != nil {
		if errors.Is(err, ErrPageClosed) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// FillFirst resolves the cascade and fills the winning element with value.
func (r *Resolver) FillFirst(ctx context.Context, scope Scope, value string, candidates []Query, perCandidate time.Duration) (bool, error) {
	el, ok, err := r.Resolve(ctx, scope, candidates, perCandidate)
	if err != nil || !ok {
		return false, err
	}
	if err := el.Fill(ctx, value); err != nil {
		if errors.Is(err, ErrPageClosed) {
			return false, err
		}
		r.logger.Debug("fill failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// AnyVisible reports whether any cascade candidate resolves to a visible
// element within the budget.
func (r *Resolver) AnyVisible(ctx context.Context, scope Scope, candidates []Query, perCandidate time.Duration) (bool, error) {
	_, ok, err := r.Resolve(ctx, scope, candidates, perCandidate)
	return ok, err
}

// TextExists reports whether text matching re is visible inside the scope.
func (r *Resolver) TextExists(ctx context.Context, scope Scope, q Query, perCandidate time.Duration) (bool, error) {
	_, ok, err := r.Resolve(ctx, scope, []Query{q}, perCandidate)
	return ok, err
}

// waitVisible polls the scope for a visible match of q until the budget
// runs out. One query is always issued even with a zero budget.
func (r *Resolver) waitVisible(ctx context.Context, scope Scope, q Query, budget time.Duration) (Element, error) {
	deadline := time.Now().Add(budget)
	for {
		el, err := r.firstVisible(ctx, scope, q)
		if err != nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

func (r *Resolver) firstVisible(ctx context.Context, scope Scope, q Query) (Element, error) {
	els, err := scope.Find(ctx, q)
	if err != nil {
		if errors.Is(err, ErrPageClosed) {
			return nil, err
		}
		// Malformed override selectors and transient DOM churn are treated
		// the same way as a miss; the cascade moves on.
		r.logger.Debug("query failed", zap.String("query", q.Key()), zap.Error(err))
		return nil, nil
	}
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil {
			if errors.Is(err, ErrPageClosed) {
				return nil, err
			}
			continue
		}
		if visible {
			return el, nil
		}
	}
	return nil, nil
}
