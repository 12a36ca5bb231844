package flow

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

const (
	stepCheckout = "checkout"
	stepPayment  = "payment"

	// paymentModalSelector identifies the payment confirmation dialog. The
	// code and its confirm button are only ever touched inside this scope.
	paymentModalSelector = "#confirm-cancel-cvv"
)

var (
	reCartEntry     = regexp.MustCompile(`(?i)\bcarrinho\b|\bcart\b`)
	reCheckout      = regexp.MustCompile(`(?i)finalizar|checkout|pagamento|fechar\s+pedido`)
	reModalConfirm  = regexp.MustCompile(`(?i)confirmar|confirmo|\bsim\b`)
	rePaySubmit     = regexp.MustCompile(`(?i)continuar|pagar|concluir|finalizar|confirmar`)
	reCreditCard    = regexp.MustCompile(`(?i)cart[aã]o\s+de\s+cr[eé]dito`)
	reMaskedCard    = regexp.MustCompile(`\*{2,}\s*\d{4}`)
	reHintLast4     = regexp.MustCompile(`(\d{4})\s*$`)
	rePaymentStatus = regexp.MustCompile(`(?i)processando|aguarde|analisando|confirmando|pagamento\s+realizado|pagamento\s+recusado|sucesso|falha|erro|comprovante`)
	reResultSuccess = regexp.MustCompile(`(?i)pagamento\s+realizado|aposta(s)?\s+realizada(s)?|sucesso|comprovante`)
	reResultFailure = regexp.MustCompile(`(?i)pagamento\s+recusado|n[aã]o\s+autorizado|falha|erro|negado`)
)

// baseRootURL strips the hash route from the storefront base URL so direct
// routes like #/carrinho can be derived from it.
func baseRootURL(base string) string {
	if i := strings.Index(base, "#"); i >= 0 {
		return base[:i]
	}
	return base
}

// isCartPage looks for the cart page headings.
func (e *Env) isCartPage(ctx context.Context, page locator.Page) (bool, error) {
	for _, marker := range []string{"Carrinho de Apostas", "Apostas Individuais", "Ir pra pagamento"} {
		ok, err := e.textExists(ctx, page, marker, 0)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// isCheckoutOrPaymentPage decides whether checkout navigation landed on the
// payment surface. Home, favorites and the cart itself are explicitly ruled
// out before the looser positive signals are consulted.
func (e *Env) isCheckoutOrPaymentPage(ctx context.Context, page locator.Page) (bool, error) {
	if strings.Contains(strings.ToLower(e.currentURL(ctx, page)), "pagamento") {
		return true, nil
	}
	if ok, err := e.textExists(ctx, page, "Forma de Pagamento", 0); err != nil || ok {
		return ok, err
	}
	modal, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{locator.BySelector(paymentModalSelector)}, 0)
	if err != nil {
		return false, err
	}
	if modal {
		if ok, err := e.textExists(ctx, page, "Confirma", 0); err != nil || ok {
			return ok, err
		}
	}

	for _, marker := range []string{"Todos os produtos", "Carrinhos Favoritos"} {
		if ok, err := e.textExists(ctx, page, marker, 0); err != nil {
			return false, err
		} else if ok {
			return false, nil
		}
	}
	if cart, err := e.isCartPage(ctx, page); err != nil {
		return false, err
	} else if cart {
		return false, nil
	}

	if ok, err := e.textExists(ctx, page, e.Config.Payment.PaySubmitText, 0); err != nil || ok {
		return ok, err
	}
	return e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(`input[autocomplete='cc-number']`),
		locator.BySelector(`input[name*='cvv' i]`),
		locator.BySelector(`input[name*='cardNumber' i]`),
	}, 0)
}

// cartContextChanged reports whether a click actually moved the flow toward
// the cart or payment surface.
func (e *Env) cartContextChanged(ctx context.Context, page locator.Page, beforeURL string) (bool, error) {
	if url := e.currentURL(ctx, page); url != "" && url != beforeURL {
		return true, nil
	}
	if ok, err := e.isCartPage(ctx, page); err != nil || ok {
		return ok, err
	}
	return e.isCheckoutOrPaymentPage(ctx, page)
}

// clickCartEntryByRole clicks a navigation entry naming the cart while
// skipping anything that mentions favorites, so "Carrinhos favoritos" can
// never shadow the real cart link.
func (e *Env) clickCartEntryByRole(ctx context.Context, page locator.Page) (bool, error) {
	for _, role := range []string{"link", "button"} {
		els, err := e.Resolver.ResolveAll(ctx, page, locator.ByRole(role, reCartEntry))
		if err != nil {
			return false, err
		}
		for _, el := range els {
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			if strings.Contains(locator.FoldName(text), "FAVORIT") {
				continue
			}
			if ok, err := e.Resolver.TryClick(ctx, el); err != nil || ok {
				return ok, err
			}
		}
	}
	return false, nil
}

func (e *Env) cartHeaderCandidates() []locator.Query {
	return []locator.Query{
		locator.ByXPath(`//nav[@id='menuPrincipal']//li[.//*[contains(normalize-space(.),'Minha Conta')]]/following-sibling::li//a`),
		locator.ByXPath(`//nav[@id='menuPrincipal']//a[.//*[contains(@class,'shopping-cart')]]`),
		locator.ByXPath(`//nav[@id='menuPrincipal']//a[contains(@href,'carrinho') or contains(@href,'cart')]`),
	}
}

func (e *Env) cartCSSCandidates() []locator.Query {
	return []locator.Query{
		locator.BySelector(`a[href*='carrinho']`),
		locator.BySelector(`a[href*='#/cart']`),
		locator.BySelector(`[data-testid='cart']`),
		locator.BySelector(`.shopping-cart`),
		locator.BySelector(`[aria-label*='carrinho' i]`),
	}
}

// openCart walks every known route to the cart page: an operator override,
// the header cart entry, generic cart anchors, role and text lookups, and
// finally the hash routes typed straight into the address bar.
func (e *Env) openCart(ctx context.Context, page locator.Page) error {
	before := e.currentURL(ctx, page)

	attempt := func(clicked bool, err error) (bool, error) {
		if err != nil || !clicked {
			return false, err
		}
		if err := e.pause(ctx, e.t.SettleLong); err != nil {
			return false, err
		}
		return e.cartContextChanged(ctx, page, before)
	}

	if e.Config.Selectors.CartEntry != "" {
		ok, err := attempt(e.Resolver.ClickFirst(ctx, page, []locator.Query{
			locator.BySelector(e.Config.Selectors.CartEntry),
		}, e.t.ProbeShort))
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if ok {
			return nil
		}
	}

	for pass := 0; pass < 2; pass++ {
		ok, err := attempt(e.Resolver.ClickFirst(ctx, page, e.cartHeaderCandidates(), e.t.ProbeTiny))
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if ok {
			return nil
		}
	}

	ok, err := attempt(e.Resolver.ClickFirst(ctx, page, e.cartCSSCandidates(), e.t.ProbeTiny))
	if err != nil {
		return wrapFatal(stepCheckout, err)
	}
	if ok {
		return nil
	}

	ok, err = attempt(e.clickCartEntryByRole(ctx, page))
	if err != nil {
		return wrapFatal(stepCheckout, err)
	}
	if ok {
		return nil
	}

	ok, err = attempt(e.Resolver.ClickFirst(ctx, page, []locator.Query{
		locator.ByTextLiteral(e.Config.Purchase.CartEntryText),
	}, e.t.ProbeTiny))
	if err != nil {
		return wrapFatal(stepCheckout, err)
	}
	if ok {
		return nil
	}

	root := baseRootURL(e.Config.Site.BaseURL)
	for _, route := range []string{"#/carrinho", "#/cart", "#/checkout"} {
		if err := page.Navigate(ctx, root+route); err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if err := e.pause(ctx, e.t.SettleLong); err != nil {
			return err
		}
		if onFavorites, err := e.textExists(ctx, page, "Carrinhos Favoritos", 0); err != nil {
			return wrapFatal(stepCheckout, err)
		} else if onFavorites {
			continue
		}
		if cart, err := e.isCartPage(ctx, page); err != nil {
			return wrapFatal(stepCheckout, err)
		} else if cart {
			return nil
		}
		if checkout, err := e.isCheckoutOrPaymentPage(ctx, page); err != nil {
			return wrapFatal(stepCheckout, err)
		} else if checkout {
			return nil
		}
	}

	e.capture(ctx, page, "cart_not_found")
	return failf(stepCheckout, "could not open the cart page")
}

// handleConfirmationModal confirms the intermediate dialog that some routes
// raise between the cart and the payment page, then waits for it to close.
func (e *Env) handleConfirmationModal(ctx context.Context, page locator.Page) error {
	triggered := false
	if ok, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(`.modal.show`),
		locator.BySelector(`.modal.in`),
	}, 0); err != nil {
		return err
	} else if ok {
		triggered = true
	}
	if !triggered {
		for _, marker := range []string{"Confirma", "Valor total"} {
			ok, err := e.textExists(ctx, page, marker, 0)
			if err != nil {
				return err
			}
			if ok {
				triggered = true
				break
			}
		}
	}
	if !triggered {
		return nil
	}

	if ok, err := e.Resolver.ClickFirst(ctx, page, []locator.Query{
		locator.ByRole("button", reModalConfirm),
		locator.ByText(reModalConfirm),
	}, e.t.ProbeShort); err != nil {
		return err
	} else if !ok {
		return nil
	}

	_, err := locator.WaitUntil(ctx, e.t.PaymentSubmit, e.t.Poll, func(ctx context.Context) (bool, error) {
		open, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
			locator.BySelector(`.modal.show`),
			locator.BySelector(`.modal.in`),
		}, 0)
		return !open, err
	})
	return err
}

// clickCheckout advances from the cart to the payment page, confirming
// intermediate dialogs along the way.
func (e *Env) clickCheckout(ctx context.Context, page locator.Page) error {
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.CheckoutButton),
		locator.ByTextLiteral("Ir pra pagamento"),
		locator.ByRole("button", reCheckout),
		locator.ByTextLiteral(e.Config.Purchase.CheckoutButtonText),
		locator.ByText(reCheckout),
	}
	for _, q := range candidates {
		if q.Zero() {
			continue
		}
		clicked, err := e.Resolver.ClickFirst(ctx, page, []locator.Query{q}, e.t.ProbeTiny)
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if !clicked {
			continue
		}
		if err := e.pause(ctx, e.t.SettleLong); err != nil {
			return err
		}
		if err := e.handleConfirmationModal(ctx, page); err != nil {
			return wrapFatal(stepCheckout, err)
		}
		reached, err := e.isCheckoutOrPaymentPage(ctx, page)
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if reached {
			return nil
		}
	}
	e.capture(ctx, page, "checkout_not_reached")
	return failf(stepCheckout, "could not reach the payment page from the cart")
}

// validateTotal refuses to pay when the page total does not match the
// configured expectation. Amounts are compared after money normalization, so
// "R$ 17,50" and "17,50" are equal.
func (e *Env) validateTotal(ctx context.Context, page locator.Page) error {
	expected := locator.NormalizeMoney(e.Config.Purchase.ExpectedTotal)
	if e.Config.Selectors.Total != "" {
		el, found, err := e.Resolver.Resolve(ctx, page, []locator.Query{
			locator.BySelector(e.Config.Selectors.Total),
		}, e.t.ProbeShort)
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if !found {
			return failf(stepCheckout, "total element %q was not found", e.Config.Selectors.Total)
		}
		text, err := el.Text(ctx)
		if err != nil {
			return wrapFatal(stepCheckout, err)
		}
		if got := locator.NormalizeMoney(text); got != expected {
			e.capture(ctx, page, "total_mismatch")
			return failf(stepCheckout, "expected total %q, page shows %q", e.Config.Purchase.ExpectedTotal, strings.TrimSpace(text))
		}
		return nil
	}

	ok, err := e.textExists(ctx, page, e.Config.Purchase.ExpectedTotal, e.t.ProbeShort)
	if err != nil {
		return wrapFatal(stepCheckout, err)
	}
	if !ok {
		e.capture(ctx, page, "total_mismatch")
		return failf(stepCheckout, "expected total %q was not found on the page", e.Config.Purchase.ExpectedTotal)
	}
	return nil
}

func (e *Env) paySubmitVisible(ctx context.Context, page locator.Page) (bool, error) {
	return e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(e.Config.Selectors.PaySubmit),
		locator.ByRoleLiteral("button", e.Config.Payment.PaySubmitText),
		locator.ByTextLiteral(e.Config.Payment.PaySubmitText),
	}, 0)
}

// pickSavedCard tries each way of selecting the stored card, treating the
// pay action becoming visible as proof of selection.
func (e *Env) pickSavedCard(ctx context.Context, page locator.Page) (bool, error) {
	confirm := func(clicked bool, err error) (bool, error) {
		if err != nil || !clicked {
			return false, err
		}
		if err := e.pause(ctx, e.t.SettleShort); err != nil {
			return false, err
		}
		return locator.WaitUntil(ctx, e.t.PaymentSubmit, e.t.Poll, func(ctx context.Context) (bool, error) {
			return e.paySubmitVisible(ctx, page)
		})
	}

	if e.Config.Selectors.SavedCard != "" {
		if ok, err := confirm(e.Resolver.ClickFirst(ctx, page, []locator.Query{
			locator.BySelector(e.Config.Selectors.SavedCard),
		}, e.t.ProbeShort)); err != nil || ok {
			return ok, err
		}
	}

	hint := strings.TrimSpace(e.Config.Payment.SavedCardHint)
	if hint != "" {
		if ok, err := confirm(e.Resolver.ClickFirst(ctx, page, []locator.Query{
			locator.ByTextLiteral(hint),
		}, e.t.ProbeTiny)); err != nil || ok {
			return ok, err
		}
		if m := reHintLast4.FindStringSubmatch(hint); m != nil {
			last4 := regexp.MustCompile(`(?:\*{2,}\s*)?` + m[1] + `\b`)
			if ok, err := confirm(e.clickCardRow(ctx, page, last4)); err != nil || ok {
				return ok, err
			}
		}
	}

	return confirm(e.clickCardRow(ctx, page, reMaskedCard))
}

// clickCardRow finds text matching re and activates the card it labels,
// preferring a radio or button in the surrounding row over the label itself.
func (e *Env) clickCardRow(ctx context.Context, page locator.Page, re *regexp.Regexp) (bool, error) {
	els, err := e.Resolver.ResolveAll(ctx, page, locator.ByText(re))
	if err != nil {
		return false, err
	}
	for _, el := range els {
		if visible, err := el.Visible(ctx); err != nil || !visible {
			continue
		}
		actions := []locator.Query{
			locator.BySelector(`input[type='radio']`),
			locator.BySelector(`button`),
		}
		if ok, err := e.Resolver.ClickFirst(ctx, el, actions, 0); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
		if ok, err := e.Resolver.TryClick(ctx, el); err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// fillCardForm types the full card details into the payment form.
func (e *Env) fillCardForm(ctx context.Context, page locator.Page) error {
	fields := []struct {
		label      string
		value      string
		candidates []locator.Query
	}{
		{"holder name", e.Config.Payment.HolderName, []locator.Query{
			locator.BySelector(e.Config.Selectors.CardHolder),
			locator.BySelector(`input[autocomplete='cc-name']`),
			locator.BySelector(`input[name*='cardHolder' i]`),
			locator.BySelector(`input[name*='holderName' i]`),
			locator.BySelector(`input[name*='nome' i]`),
		}},
		{"card number", e.Config.Payment.Number, []locator.Query{
			locator.BySelector(e.Config.Selectors.CardNumber),
			locator.BySelector(`input[autocomplete='cc-number']`),
			locator.BySelector(`input[name*='cardNumber' i]`),
			locator.BySelector(`input[name*='numero' i]`),
		}},
		{"expiry month", e.Config.Payment.ExpMonth, []locator.Query{
			locator.BySelector(e.Config.Selectors.CardExpMonth),
			locator.BySelector(`input[autocomplete='cc-exp-month']`),
			locator.BySelector(`input[name*='expMonth' i]`),
			locator.BySelector(`select[name*='mes' i]`),
			locator.BySelector(`input[name*='mes' i]`),
		}},
		{"expiry year", e.Config.Payment.ExpYear, []locator.Query{
			locator.BySelector(e.Config.Selectors.CardExpYear),
			locator.BySelector(`input[autocomplete='cc-exp-year']`),
			locator.BySelector(`input[name*='expYear' i]`),
			locator.BySelector(`select[name*='ano' i]`),
			locator.BySelector(`input[name*='ano' i]`),
		}},
		{"security code", e.Config.Payment.CVV, []locator.Query{
			locator.BySelector(e.Config.Selectors.CardCVV),
			locator.BySelector(`input[autocomplete='cc-csc']`),
			locator.BySelector(`input[name*='cvv' i]`),
			locator.BySelector(`input[name*='securityCode' i]`),
			locator.BySelector(`input[name*='seguranca' i]`),
		}},
	}
	for _, f := range fields {
		ok, err := e.Resolver.FillFirst(ctx, page, f.value, f.candidates, e.t.ProbeShort)
		if err != nil {
			return wrapFatal(stepPayment, err)
		}
		if !ok {
			e.capture(ctx, page, "card_form_incomplete")
			return failf(stepPayment, "could not fill the %s field", f.label)
		}
	}
	return nil
}

// selectOrFillCard picks the payment method: the stored card when configured
// and findable, the full card form otherwise.
func (e *Env) selectOrFillCard(ctx context.Context, page locator.Page) error {
	if ok, err := e.Resolver.ClickFirst(ctx, page, []locator.Query{
		locator.ByText(reCreditCard),
	}, e.t.ProbeTiny); err != nil {
		return wrapFatal(stepPayment, err)
	} else if ok {
		if err := e.pause(ctx, e.t.SettleShort); err != nil {
			return err
		}
	}

	if e.Config.Payment.UseSavedCard {
		picked, err := e.pickSavedCard(ctx, page)
		if err != nil {
			return wrapFatal(stepPayment, err)
		}
		if picked {
			e.Logger.Info("Saved card selected.")
			return nil
		}
		e.Logger.Warn("Saved card not found, falling back to the card form.")
	}
	return e.fillCardForm(ctx, page)
}

func (e *Env) clickPaymentSubmit(ctx context.Context, page locator.Page) error {
	_ = page.ScrollBy(ctx, 0, 1200)
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.PaySubmit),
		locator.ByRoleLiteral("button", e.Config.Payment.PaySubmitText),
		locator.ByTextLiteral(e.Config.Payment.PaySubmitText),
		locator.ByRole("button", rePaySubmit),
		locator.ByText(rePaySubmit),
	}
	ok, err := e.Resolver.ClickFirst(ctx, page, candidates, e.t.ClickBudget)
	if err != nil {
		return wrapFatal(stepPayment, err)
	}
	if !ok {
		e.capture(ctx, page, "pay_submit_not_found")
		return failf(stepPayment, "payment submit action was not found")
	}
	return nil
}

// paymentModal returns the visible payment confirmation dialog, or fails.
// The code must never be typed anywhere else on the page.
func (e *Env) paymentModal(ctx context.Context, page locator.Page) (locator.Element, error) {
	modal, found, err := e.Resolver.Resolve(ctx, page, []locator.Query{
		locator.BySelector(paymentModalSelector),
	}, e.t.ProbeShort)
	if err != nil {
		return nil, wrapFatal(stepPayment, err)
	}
	if !found {
		return nil, nil
	}
	return modal, nil
}

func (e *Env) paymentOTPCandidates() []locator.Query {
	return []locator.Query{
		locator.BySelector(e.Config.Selectors.PaymentOTPInput),
		locator.BySelector(`input[data-checkout='securityCodeModal']`),
		locator.BySelector(`input[name*='otp' i]`),
		locator.BySelector(`input[id*='otp' i]`),
		locator.BySelector(`input[name*='codigo' i]`),
		locator.BySelector(`input[id*='codigo' i]`),
		locator.BySelector(`input[placeholder*='código' i]`),
		locator.BySelector(`input[placeholder*='codigo' i]`),
		locator.BySelector(`input[inputmode='numeric']`),
		locator.BySelector(`input[type='tel']`),
		locator.BySelector(`input[type='text']`),
	}
}

// clickPaymentConfirm clicks a confirm action inside the dialog scope.
// Every candidate is classified first and only a positive confirm verdict
// is clicked: dismiss and ambiguous controls are never touched here, since
// a wrong click on this dialog can abandon the payment.
func (e *Env) clickPaymentConfirm(ctx context.Context, modal locator.Element) (bool, error) {
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.PaymentOTPSubmit),
		locator.BySelector(`#confirmarModalConfirmacao`),
		locator.ByRole("button", reModalConfirm),
		locator.ByTextLiteral("Confirmar"),
		locator.BySelector(`input[value*='Confirmar']`),
		locator.ByText(reModalConfirm),
	}
	for _, q := range candidates {
		els, err := e.Resolver.ResolveAll(ctx, modal, q)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if visible, err := el.Visible(ctx); err != nil || !visible {
				continue
			}
			verdict, err := e.Classifier.Classify(ctx, el)
			if err != nil {
				return false, err
			}
			if verdict != locator.VerdictConfirm {
				text, _ := el.Text(ctx)
				e.Logger.Debug("Skipping non-confirm action inside the payment dialog.",
					zap.String("verdict", verdict.String()),
					zap.String("query", q.Key()), zap.String("text", text))
				continue
			}
			if ok, err := e.Resolver.TryClick(ctx, el); err != nil {
				return false, err
			} else if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// waitForConfirmEvidence watches for proof that the confirm click was
// accepted. The whole window is spent polling for processing or result
// text: a dialog that closes right away often renders its feedback a beat
// later, so modal visibility is only consulted after the window runs out.
func (e *Env) waitForConfirmEvidence(ctx context.Context, page locator.Page) (string, error) {
	found, err := locator.WaitUntil(ctx, e.t.OTPEvidence, e.t.OTPEvidencePoll, func(ctx context.Context) (bool, error) {
		return e.textMatches(ctx, page, rePaymentStatus, 0)
	})
	if err != nil {
		return "", err
	}
	if found {
		return "feedback", nil
	}
	open, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(paymentModalSelector),
	}, 0)
	if err != nil {
		return "", err
	}
	if open {
		return "modal_open", nil
	}
	return "closed_no_feedback", nil
}

// confirmPaymentCode prompts for the code, types it into the dialog and
// confirms, requiring positive evidence that the payment is processing.
func (e *Env) confirmPaymentCode(ctx context.Context, page locator.Page) error {
	code, err := e.Prompter.Prompt(ctx, "Enter payment code")
	if err != nil {
		return wrapFatal(stepPayment, err)
	}
	if code == "" {
		return failf(stepPayment, "no payment code was provided")
	}

	modal, err := e.paymentModal(ctx, page)
	if err != nil {
		return err
	}
	if modal == nil {
		e.capture(ctx, page, "payment_modal_missing")
		return failf(stepPayment, "payment confirmation dialog is not visible, refusing to type the code outside it")
	}

	if ok, err := e.Resolver.FillFirst(ctx, modal, code, e.paymentOTPCandidates(), e.t.FillBudget); err != nil {
		return wrapFatal(stepPayment, err)
	} else if !ok {
		e.capture(ctx, page, "payment_code_field_missing")
		return failf(stepPayment, "no code field found inside the payment dialog")
	}
	if err := e.pause(ctx, e.t.SettleShort); err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		clicked, err := e.clickPaymentConfirm(ctx, modal)
		if err != nil {
			return wrapFatal(stepPayment, err)
		}
		if !clicked {
			e.capture(ctx, page, "payment_confirm_not_found")
			return failf(stepPayment, "no confirm action could be clicked inside the payment dialog")
		}
		evidence, err := e.waitForConfirmEvidence(ctx, page)
		if err != nil {
			return wrapFatal(stepPayment, err)
		}
		switch evidence {
		case "feedback":
			e.capture(ctx, page, "payment_otp_submitted")
			return nil
		case "closed_no_feedback":
			e.capture(ctx, page, "payment_otp_closed_no_feedback")
			return failf(stepPayment, "payment dialog closed without any processing confirmation")
		}
		// Still open; re-resolve in case the dialog node was replaced.
		modal, err = e.paymentModal(ctx, page)
		if err != nil {
			return err
		}
		if modal == nil {
			e.capture(ctx, page, "payment_otp_closed_no_feedback")
			return failf(stepPayment, "payment dialog closed without any processing confirmation")
		}
	}
	e.capture(ctx, page, "payment_otp_stuck")
	return failf(stepPayment, "payment dialog is still open after dialog-scoped confirm clicks")
}

// waitForPaymentResult polls for the final outcome of the purchase.
func (e *Env) waitForPaymentResult(ctx context.Context, page locator.Page) error {
	outcome := "unknown"
	_, err := locator.WaitUntil(ctx, e.t.PaymentResult, e.t.PaymentResultPoll, func(ctx context.Context) (bool, error) {
		if page.IsClosed() {
			return true, nil
		}
		if ok, err := e.textExists(ctx, page, e.Config.Purchase.SuccessText, 0); err != nil {
			return false, err
		} else if ok {
			outcome = "success"
			return true, nil
		}
		if ok, err := e.textExists(ctx, page, e.Config.Purchase.FailureText, 0); err != nil {
			return false, err
		} else if ok {
			outcome = "failure"
			return true, nil
		}
		if ok, err := e.textMatches(ctx, page, reResultSuccess, 0); err != nil {
			return false, err
		} else if ok {
			outcome = "success"
			return true, nil
		}
		if ok, err := e.textMatches(ctx, page, reResultFailure, 0); err != nil {
			return false, err
		} else if ok {
			outcome = "failure"
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return wrapFatal(stepPayment, err)
	}

	switch outcome {
	case "success":
		e.capture(ctx, page, "payment_success")
		e.Logger.Info("Payment confirmed.")
		return nil
	case "failure":
		e.capture(ctx, page, "payment_failure")
		return failf(stepPayment, "payment was declined")
	default:
		e.capture(ctx, page, "payment_result_unknown")
		return failf(stepPayment, "final payment confirmation was not detected in time")
	}
}

// Checkout runs the cart, payment and confirmation sequence end to end.
func (e *Env) Checkout(ctx context.Context, page locator.Page) error {
	e.Logger.Info("Opening the cart.")
	if err := e.openCart(ctx, page); err != nil {
		return err
	}
	e.capture(ctx, page, "cart_opened")

	if err := e.clickCheckout(ctx, page); err != nil {
		return err
	}
	e.capture(ctx, page, "checkout_opened")

	if err := e.validateTotal(ctx, page); err != nil {
		return err
	}
	if err := e.selectOrFillCard(ctx, page); err != nil {
		return err
	}
	e.capture(ctx, page, "payment_form_ready")

	if err := e.clickPaymentSubmit(ctx, page); err != nil {
		return err
	}
	if err := e.pause(ctx, e.t.SettleLong); err != nil {
		return err
	}
	e.capture(ctx, page, "payment_submitted")

	if err := e.confirmPaymentCode(ctx, page); err != nil {
		return err
	}
	return e.waitForPaymentResult(ctx, page)
}
