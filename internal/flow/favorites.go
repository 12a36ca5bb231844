package flow

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

const stepFavorites = "favorites"

var (
	reFavoritesEntry = regexp.MustCompile(`(?i)carrinh(?:o|os)\s+favorit`)
	reMenuButton     = regexp.MustCompile(`(?i)menu|navega`)
)

// favoriteRowsQuery matches the rows of the favorites table.
var favoriteRowsQuery = locator.BySelector(`table tbody tr`)

func (e *Env) favoritesDirectCandidates() []locator.Query {
	entry := e.Config.Purchase.FavoritesEntryText
	return []locator.Query{
		locator.BySelector(e.Config.Selectors.FavoritesEntry),
		locator.ByRole("link", reFavoritesEntry),
		locator.ByRole("button", reFavoritesEntry),
		locator.ByRole("menuitem", reFavoritesEntry),
		locator.ByTextLiteral(entry),
	}
}

// openFavoritesSection tries the favorites entry directly, then opens the
// account or hamburger menu and retries. Single-page apps hide the entry
// behind a collapsed menu on narrow layouts.
func (e *Env) openFavoritesSection(ctx context.Context, page locator.Page) error {
	ok, err := e.Resolver.ClickFirst(ctx, page, e.favoritesDirectCandidates(), e.t.ProbeShort)
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if ok {
		return nil
	}

	menuText := e.Config.Purchase.AccountMenuText
	menus := []locator.Query{
		locator.BySelector(e.Config.Selectors.AccountMenu),
		locator.ByRoleLiteral("button", menuText),
		locator.ByRoleLiteral("link", menuText),
		locator.ByTextLiteral(menuText),
		locator.BySelector(`[aria-label*='menu' i]`),
		locator.BySelector(`.navbar-toggle`),
		locator.ByTextLiteral("Menu"),
		locator.BySelector(`[data-testid='menu-button']`),
		locator.ByRole("button", reMenuButton),
	}
	opened, err := e.Resolver.ClickFirst(ctx, page, menus, e.t.ProbeTiny)
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if opened {
		e.capture(ctx, page, "account_menu_opened")
		if err := e.pause(ctx, e.t.SettleLong); err != nil {
			return err
		}
	}

	ok, err = e.Resolver.ClickFirst(ctx, page, e.favoritesDirectCandidates(), e.t.ClickBudget)
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if !ok {
		e.capture(ctx, page, "favorites_entry_not_found")
		return failf(stepFavorites, "could not open the favorites section")
	}
	return nil
}

func (e *Env) waitForFavoritesList(ctx context.Context, page locator.Page) error {
	rowsQuery := favoriteRowsQuery
	if e.Config.Selectors.FavoritesItem != "" {
		rowsQuery = locator.BySelector(e.Config.Selectors.FavoritesItem)
	}
	found, err := locator.WaitUntil(ctx, e.t.FavoritesList, e.t.Poll, func(ctx context.Context) (bool, error) {
		rows, err := e.Resolver.ResolveAll(ctx, page, rowsQuery)
		if err != nil {
			return false, err
		}
		return len(rows) > 0, nil
	})
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if !found {
		e.capture(ctx, page, "favorites_list_empty")
		return failf(stepFavorites, "favorites list did not load")
	}
	return nil
}

// findFavoriteRow re-queries the table and returns the row whose folded text
// contains the folded target name.
func (e *Env) findFavoriteRow(ctx context.Context, page locator.Page) (locator.Element, error) {
	rowsQuery := favoriteRowsQuery
	if e.Config.Selectors.FavoritesItem != "" {
		rowsQuery = locator.BySelector(e.Config.Selectors.FavoritesItem)
	}
	target := locator.FoldName(e.Config.Purchase.FavoriteItemName)
	rows, err := e.Resolver.ResolveAll(ctx, page, rowsQuery)
	if err != nil {
		return nil, wrapFatal(stepFavorites, err)
	}
	for _, row := range rows {
		text, err := row.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(locator.FoldName(text), target) {
			return row, nil
		}
	}

	var names []string
	for _, row := range rows {
		cells, err := e.Resolver.ResolveAll(ctx, row, locator.BySelector(`td:first-child`))
		if err != nil || len(cells) == 0 {
			continue
		}
		if name, err := cells[0].Text(ctx); err == nil && name != "" {
			names = append(names, name)
		}
	}
	e.capture(ctx, page, "favorite_item_not_found")
	if len(names) > 0 {
		return nil, failf(stepFavorites, "favorite %q not found, available: %s",
			e.Config.Purchase.FavoriteItemName, strings.Join(names, ", "))
	}
	return nil, failf(stepFavorites, "favorite %q not found", e.Config.Purchase.FavoriteItemName)
}

// clickAddToCart clicks the add action inside the row scope only, so a
// matching button in another row can never be hit.
func (e *Env) clickAddToCart(ctx context.Context, row locator.Element) error {
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.FavoritesAdd),
		locator.BySelector(`a[title*='adicionar' i], button[title*='adicionar' i]`),
		locator.BySelector(`a[aria-label*='adicionar' i], button[aria-label*='adicionar' i]`),
		locator.ByTextLiteral(e.Config.Purchase.AddButtonText),
		locator.BySelector(`a:has(i.fa-shopping-cart), button:has(i.fa-shopping-cart)`),
		locator.BySelector(`a:has(.fa-shopping-cart), button:has(.fa-shopping-cart)`),
		locator.BySelector(`td:last-child a:nth-of-type(2), td:last-child button:nth-of-type(2)`),
		locator.BySelector(`td:last-child a, td:last-child button`),
	}
	ok, err := e.Resolver.ClickFirst(ctx, row, candidates, e.t.ProbeTiny)
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if !ok {
		return failf(stepFavorites, "no add-to-cart action found in the favorite row")
	}
	return nil
}

// AddFavoriteToCart opens the favorites section, locates the configured
// favorite and adds it to the cart.
func (e *Env) AddFavoriteToCart(ctx context.Context, page locator.Page) error {
	e.Logger.Info("Opening favorites.", zap.String("item", e.Config.Purchase.FavoriteItemName))
	if err := e.openFavoritesSection(ctx, page); err != nil {
		return err
	}
	if err := e.pause(ctx, e.t.SettleShort); err != nil {
		return err
	}
	if err := e.waitForFavoritesList(ctx, page); err != nil {
		return err
	}
	e.capture(ctx, page, "favorites_listed")

	row, err := e.findFavoriteRow(ctx, page)
	if err != nil {
		return err
	}
	if err := e.clickAddToCart(ctx, row); err != nil {
		return err
	}
	if err := e.pause(ctx, e.t.SettleLong); err != nil {
		return err
	}
	e.capture(ctx, page, "favorite_item_added")

	// Cart badge check is advisory only; some layouts render no counter.
	badge, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(`[data-testid='cart-count']`),
		locator.BySelector(`.cart-count`),
		locator.BySelector(`span.badge`),
	}, e.t.ProbeTiny)
	if err != nil {
		return wrapFatal(stepFavorites, err)
	}
	if !badge {
		e.Logger.Warn("No cart counter found after adding the item.")
	}
	e.Logger.Info("Favorite added to cart.")
	return nil
}
