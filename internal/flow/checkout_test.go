package flow

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

func TestBaseRootURLStripsHashRoute(t *testing.T) {
	assert.Equal(t, "https://store.example/", baseRootURL("https://store.example/#/home"))
	assert.Equal(t, "https://store.example/", baseRootURL("https://store.example/"))
}

func TestOpenCartViaHeaderLink(t *testing.T) {
	page := newFakePage(testBaseURL)
	link := newFakeEl("Carrinho")
	link.onClick = func() { page.url = "https://store.example/#/carrinho" }

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	page.add(env.cartHeaderCandidates()[0], link)

	require.NoError(t, env.openCart(context.Background(), page))
	assert.Equal(t, 1, link.clicks)
}

func TestOpenCartSkipsFavoritesLookalike(t *testing.T) {
	page := newFakePage(testBaseURL)
	favorites := newFakeEl("Carrinhos favoritos")
	cart := newFakeEl("Carrinho")
	cart.onClick = func() { page.url = "https://store.example/#/carrinho" }
	page.add(locator.ByRole("link", reCartEntry), favorites, cart)

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.openCart(context.Background(), page))
	assert.Equal(t, 0, favorites.clicks)
	assert.Equal(t, 1, cart.clicks)
}

func TestOpenCartFallsBackToHashRoute(t *testing.T) {
	page := newFakePage(testBaseURL)
	page.onNavigate = func(url string) {
		if url == "https://store.example/#/carrinho" {
			page.add(locator.ByTextLiteral("Carrinho de Apostas"), newFakeEl("Carrinho de Apostas"))
		}
	}

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.openCart(context.Background(), page))
	assert.Contains(t, page.navigations, "https://store.example/#/carrinho")
}

func TestOpenCartFailsWhenNoRouteWorks(t *testing.T) {
	page := newFakePage(testBaseURL)
	env := newTestEnv(testConfig(), &fakePrompter{}, page)

	err := env.openCart(context.Background(), page)
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, stepCheckout, flowErr.Step)
}

func TestClickCheckoutConfirmsIntermediateModal(t *testing.T) {
	page := newFakePage("https://store.example/#/carrinho")
	checkout := newFakeEl("Ir pra pagamento")
	page.add(locator.ByTextLiteral("Ir pra pagamento"), checkout)

	modal := newFakeEl("Confirma a aposta? Valor total R$ 17,50")
	confirm := newFakeEl("Confirmar")
	checkout.onClick = func() {
		page.add(locator.BySelector(`.modal.show`), modal)
		page.add(locator.ByRole("button", reModalConfirm), confirm)
	}
	confirm.onClick = func() {
		page.remove(locator.BySelector(`.modal.show`))
		page.url = "https://store.example/#/pagamento"
	}

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.clickCheckout(context.Background(), page))
	assert.Equal(t, 1, checkout.clicks)
	assert.Equal(t, 1, confirm.clicks)
}

func TestValidateTotalMismatchWithOverride(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.BySelector(`#total`), newFakeEl("Total: R$ 20,00"))

	cfg := testConfig()
	cfg.Selectors.Total = "#total"
	env := newTestEnv(cfg, &fakePrompter{}, page)

	err := env.validateTotal(context.Background(), page)
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "expected total")
	assert.Contains(t, flowErr.Reason, "20,00")
}

func TestValidateTotalAcceptsFormattedAmount(t *testing.T) {
	// "R$ 17,50" and the configured "17,50" normalize to the same amount.
	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.BySelector(`#total`), newFakeEl("Valor total: R$ 17,50"))

	cfg := testConfig()
	cfg.Selectors.Total = "#total"
	env := newTestEnv(cfg, &fakePrompter{}, page)
	require.NoError(t, env.validateTotal(context.Background(), page))
}

func TestValidateTotalByTextFallback(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.ByTextLiteral("17,50"), newFakeEl("R$ 17,50"))

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.validateTotal(context.Background(), page))
}

func TestPickSavedCardByHintLast4(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	label := newFakeEl("Visa **** 1234")
	radio := newFakeEl("")
	label.add(locator.BySelector(`input[type='radio']`), radio)
	// The pattern pickSavedCard derives from the hint "Visa final 1234".
	page.add(locator.ByText(regexp.MustCompile(`(?:\*{2,}\s*)?1234\b`)), label)
	radio.onClick = func() {
		page.add(locator.ByTextLiteral("Pagar"), newFakeEl("Pagar"))
	}

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	picked, err := env.pickSavedCard(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Equal(t, 1, radio.clicks)
}

func TestSelectOrFillCardFallsBackToForm(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	holder := newFakeEl("")
	number := newFakeEl("")
	month := newFakeEl("")
	year := newFakeEl("")
	cvv := newFakeEl("")
	page.add(locator.BySelector(`input[autocomplete='cc-name']`), holder)
	page.add(locator.BySelector(`input[autocomplete='cc-number']`), number)
	page.add(locator.BySelector(`input[autocomplete='cc-exp-month']`), month)
	page.add(locator.BySelector(`input[autocomplete='cc-exp-year']`), year)
	page.add(locator.BySelector(`input[autocomplete='cc-csc']`), cvv)

	cfg := testConfig()
	cfg.Payment.UseSavedCard = false
	cfg.Payment.HolderName = "MARIA DA SILVA"
	cfg.Payment.Number = "4111111111111111"
	cfg.Payment.ExpMonth = "12"
	cfg.Payment.ExpYear = "2031"
	env := newTestEnv(cfg, &fakePrompter{}, page)

	require.NoError(t, env.selectOrFillCard(context.Background(), page))
	assert.Equal(t, []string{"MARIA DA SILVA"}, holder.fills)
	assert.Equal(t, []string{"4111111111111111"}, number.fills)
	assert.Equal(t, []string{"12"}, month.fills)
	assert.Equal(t, []string{"2031"}, year.fills)
	assert.Equal(t, []string{"321"}, cvv.fills)
}

func TestConfirmPaymentCodeRefusesWithoutDialog(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)

	err := env.confirmPaymentCode(context.Background(), page)
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, stepPayment, flowErr.Step)
	assert.Contains(t, flowErr.Reason, "refusing")
}

func paymentDialogPage() (*fakePage, *fakeEl, *fakeEl, *fakeEl, *fakeEl) {
	page := newFakePage("https://store.example/#/pagamento")
	modal := newFakeEl("Confirme o pagamento")
	page.add(locator.BySelector(paymentModalSelector), modal)

	input := newFakeEl("")
	modal.add(locator.BySelector(`input[data-checkout='securityCodeModal']`), input)

	dismiss := newFakeEl("Fechar")
	confirm := newFakeEl("Confirmar")
	modal.add(locator.ByRole("button", reModalConfirm), dismiss, confirm)
	return page, modal, input, dismiss, confirm
}

func TestConfirmPaymentCodeSkipsDismissActions(t *testing.T) {
	page, _, input, dismiss, confirm := paymentDialogPage()
	page.add(locator.ByText(rePaymentStatus), newFakeEl("Processando pagamento"))

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	require.NoError(t, env.confirmPaymentCode(context.Background(), page))
	assert.Equal(t, []string{"999888"}, input.fills)
	assert.Equal(t, 0, dismiss.clicks)
	assert.Equal(t, 1, confirm.clicks)
}

func TestConfirmPaymentCodeRefusesAmbiguousConfirm(t *testing.T) {
	// A bare "Sim" button carries no confirm or dismiss signal, so it must
	// never be clicked inside the payment dialog.
	page := newFakePage("https://store.example/#/pagamento")
	modal := newFakeEl("Confirme o pagamento")
	page.add(locator.BySelector(paymentModalSelector), modal)
	input := newFakeEl("")
	modal.add(locator.BySelector(`input[data-checkout='securityCodeModal']`), input)
	sim := newFakeEl("Sim")
	modal.add(locator.ByRole("button", reModalConfirm), sim)
	modal.add(locator.ByText(reModalConfirm), sim)

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	err := env.confirmPaymentCode(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "no confirm action")
	assert.Equal(t, 0, sim.clicks)
	assert.Equal(t, []string{"999888"}, input.fills)
}

func TestConfirmPaymentCodeFailsFastWhenNothingClickable(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	modal := newFakeEl("Confirme o pagamento")
	page.add(locator.BySelector(paymentModalSelector), modal)
	modal.add(locator.BySelector(`input[data-checkout='securityCodeModal']`), newFakeEl(""))
	dismiss := newFakeEl("Fechar")
	modal.add(locator.ByRole("button", reModalConfirm), dismiss)

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	err := env.confirmPaymentCode(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "no confirm action")
	assert.Equal(t, 0, dismiss.clicks)
}

func TestConfirmPaymentCodeUsesConfiguredSubmitFirst(t *testing.T) {
	page, modal, _, _, generic := paymentDialogPage()
	page.add(locator.ByText(rePaymentStatus), newFakeEl("Processando pagamento"))

	override := newFakeEl("Confirmar envio")
	modal.add(locator.BySelector(`#btnEnviaCVV`), override)

	cfg := testConfig()
	cfg.Selectors.PaymentOTPSubmit = "#btnEnviaCVV"
	env := newTestEnv(cfg, &fakePrompter{response: "999888"}, page)

	require.NoError(t, env.confirmPaymentCode(context.Background(), page))
	assert.Equal(t, 1, override.clicks)
	assert.Equal(t, 0, generic.clicks)
}

func TestConfirmPaymentCodeAcceptsLateFeedbackAfterDialogCloses(t *testing.T) {
	// The dialog can close on the confirm click before the processing text
	// renders. The feedback window must keep polling instead of treating the
	// closed dialog as a silent failure.
	page, modal, _, _, confirm := paymentDialogPage()
	confirm.onClick = func() { modal.visible = false }

	polls := 0
	feedbackKey := locator.ByText(rePaymentStatus).Key()
	page.onFind = func(q locator.Query) {
		if q.Key() != feedbackKey {
			return
		}
		polls++
		if polls == 3 {
			page.add(locator.ByText(rePaymentStatus), newFakeEl("Processando pagamento"))
		}
	}

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	require.NoError(t, env.confirmPaymentCode(context.Background(), page))
	assert.Equal(t, 1, confirm.clicks)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestConfirmPaymentCodeFailsWhenDialogClosesSilently(t *testing.T) {
	page, modal, _, _, confirm := paymentDialogPage()
	confirm.onClick = func() { modal.visible = false }

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	err := env.confirmPaymentCode(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "without any processing confirmation")
}

func TestConfirmPaymentCodeFailsWhenDialogStaysOpen(t *testing.T) {
	page, _, _, _, confirm := paymentDialogPage()

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	err := env.confirmPaymentCode(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "still open")
	assert.Equal(t, 2, confirm.clicks)
}

func TestConfirmPaymentCodeRequiresFieldInsideDialog(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	modal := newFakeEl("Confirme o pagamento")
	page.add(locator.BySelector(paymentModalSelector), modal)

	// The code input exists on the page but not inside the dialog scope.
	page.add(locator.BySelector(`input[data-checkout='securityCodeModal']`), newFakeEl(""))

	env := newTestEnv(testConfig(), &fakePrompter{response: "999888"}, page)
	err := env.confirmPaymentCode(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "inside the payment dialog")
}

func TestWaitForPaymentResultSuccess(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.ByTextLiteral("Pagamento realizado"), newFakeEl("Pagamento realizado"))

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.waitForPaymentResult(context.Background(), page))
}

func TestWaitForPaymentResultWaitsThroughProcessing(t *testing.T) {
	// Interim "Processando" text is not a terminal outcome: the poll must
	// keep going until the real success marker appears.
	assert.False(t, reResultSuccess.MatchString("Processando pagamento"))
	assert.False(t, reResultFailure.MatchString("Processando pagamento"))

	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.ByText(rePaymentStatus), newFakeEl("Processando pagamento"))

	polls := 0
	successKey := locator.ByTextLiteral("Pagamento realizado").Key()
	page.onFind = func(q locator.Query) {
		if q.Key() != successKey {
			return
		}
		polls++
		if polls == 4 {
			page.add(locator.ByTextLiteral("Pagamento realizado"), newFakeEl("Pagamento realizado"))
		}
	}

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	require.NoError(t, env.waitForPaymentResult(context.Background(), page))
	assert.GreaterOrEqual(t, polls, 4)
}

func TestWaitForPaymentResultDeclined(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	page.add(locator.ByTextLiteral("Pagamento recusado"), newFakeEl("Pagamento recusado"))

	env := newTestEnv(testConfig(), &fakePrompter{}, page)
	err := env.waitForPaymentResult(context.Background(), page)

	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "declined")
}

func TestWaitForPaymentResultTimesOutAsUnknown(t *testing.T) {
	page := newFakePage("https://store.example/#/pagamento")
	env := newTestEnv(testConfig(), &fakePrompter{}, page)

	err := env.waitForPaymentResult(context.Background(), page)
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Contains(t, flowErr.Reason, "not detected")
}
