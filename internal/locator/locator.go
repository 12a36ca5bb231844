// Package locator implements the element-resolution core: candidate
// descriptor cascades, confirm-vs-dismiss classification of clickable
// candidates, and bounded condition polling. It is browser-agnostic; the
// concrete driver lives in internal/browser and satisfies the narrow Page
// and Element interfaces defined here.
package locator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrPageClosed is the hard-fault sentinel: the underlying target or browser
// is gone. Drivers wrap it so callers can distinguish a dead page from a
// normal "not found" result, which is never an error.
var ErrPageClosed = errors.New("page is closed")

// QueryKind discriminates the candidate descriptor variants.
type QueryKind int

const (
	KindSelector QueryKind = iota
	KindXPath
	KindText
	KindRole
)

// Query is one candidate descriptor in a cascade. It is an immutable tagged
// variant: exactly one of the location strategies is populated, per Kind.
type Query struct {
	Kind     QueryKind
	Selector string         // KindSelector (CSS) or KindXPath
	Role     string         // KindRole: "button", "link", "menuitem"
	Name     *regexp.Regexp // KindRole: accessible-name pattern
	Text     *regexp.Regexp // KindText: visible-text pattern
}

// BySelector builds a CSS selector candidate. A blank selector yields a
// zero Query which the resolver skips, so optional config overrides can be
// placed at the head of a cascade unconditionally.
func BySelector(sel string) Query {
	return Query{Kind: KindSelector, Selector: sel}
}

// ByXPath builds an XPath candidate.
func ByXPath(expr string) Query {
	return Query{Kind: KindXPath, Selector: expr}
}

// ByText builds a visible-text candidate from a compiled pattern.
func ByText(re *regexp.Regexp) Query {
	return Query{Kind: KindText, Text: re}
}

// ByTextLiteral builds a case-insensitive substring text candidate.
// A blank literal yields a skippable zero Query.
func ByTextLiteral(s string) Query {
	if s == "" {
		return Query{Kind: KindText}
	}
	return Query{Kind: KindText, Text: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))}
}

// ByRole builds a role+accessible-name candidate.
func ByRole(role string, name *regexp.Regexp) Query {
	return Query{Kind: KindRole, Role: role, Name: name}
}

// ByRoleLiteral builds a role candidate with a case-insensitive literal name.
func ByRoleLiteral(role, name string) Query {
	if name == "" {
		return Query{Kind: KindRole, Role: role}
	}
	return ByRole(role, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(name)))
}

// Zero reports whether the candidate carries no usable strategy and must be
// skipped by the resolver.
func (q Query) Zero() bool {
	switch q.Kind {
	case KindSelector, KindXPath:
		return q.Selector == ""
	case KindText:
		return q.Text == nil
	case KindRole:
		return q.Role == "" || q.Name == nil
	}
	return true
}

// Key returns a stable string form used for logging and for fake scopes in
// tests.
func (q Query) Key() string {
	switch q.Kind {
	case KindSelector:
		return "css:" + q.Selector
	case KindXPath:
		return "xpath:" + q.Selector
	case KindText:
		if q.Text == nil {
			return "text:"
		}
		return "text:" + q.Text.String()
	case KindRole:
		name := ""
		if q.Name != nil {
			name = q.Name.String()
		}
		return fmt.Sprintf("role:%s[%s]", q.Role, name)
	}
	return "invalid"
}

// Scope is a search root: the whole page or a previously resolved element
// subtree (a modal, a table row). Once a scope is established every search
// runs against it, never globally.
type Scope interface {
	// Find returns zero or more elements matching q inside the scope. A
	// no-match result is ([], nil); only a dead page is an error.
	Find(ctx context.Context, q Query) ([]Element, error)
}

// Element is a resolved handle inside a page. Handles may go stale as the
// DOM mutates; operations on a stale handle report not-found style errors,
// not hard faults, unless the whole target died.
type Element interface {
	Scope

	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	PressEnter(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error
}

// Page is the narrow browser-driver boundary consumed by the flows.
type Page interface {
	Scope

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	IsClosed() bool
	Screenshot(ctx context.Context) ([]byte, error)
	ScrollBy(ctx context.Context, dx, dy float64) error
}
