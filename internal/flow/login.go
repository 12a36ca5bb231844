package flow

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/locator"
	"github.com/rmaia-dev/lotobot/internal/observability"
)

const stepLogin = "login"

var (
	reLoginNext   = regexp.MustCompile(`(?i)pr[oó]ximo`)
	reLoginSubmit = regexp.MustCompile(`(?i)entrar|acessar|continuar`)
	reOTPSubmit   = regexp.MustCompile(`(?i)enviar|confirmar|validar`)
	reRequestCode = regexp.MustCompile(`(?i)receber\s+c[oó]digo`)
	reGreeting    = regexp.MustCompile(`(?i)\bol[aá]\b`)
)

func (e *Env) usernameCandidates() []locator.Query {
	return []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginUsername),
		locator.BySelector(`input[name='username']`),
		locator.BySelector(`input[autocomplete='username']`),
		locator.BySelector(`input[name*='cpf' i]`),
		locator.BySelector(`input[id*='cpf' i]`),
		locator.BySelector(`input[placeholder*='cpf' i]`),
		locator.BySelector(`input[aria-label*='cpf' i]`),
		locator.BySelector(`input[type='text']`),
		locator.BySelector(`input[type='email']`),
	}
}

func (e *Env) passwordCandidates() []locator.Query {
	return []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginPassword),
		locator.BySelector(`input[name='password']`),
		locator.BySelector(`input[autocomplete='current-password']`),
		locator.BySelector(`input[name*='senha' i]`),
		locator.BySelector(`input[id*='senha' i]`),
		locator.BySelector(`input[placeholder*='senha' i]`),
		locator.BySelector(`input[type='password']`),
	}
}

func (e *Env) loginOTPCandidates() []locator.Query {
	return []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginOTPInput),
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

// clearInterstitials dismisses the cookie banner, the age gate, the
// enter-site splash and the login call to action. Up to three passes, since
// dismissing one overlay can reveal the next.
func (e *Env) clearInterstitials(ctx context.Context, page locator.Page) error {
	for pass := 0; pass < 3; pass++ {
		changed := false

		cookie := []locator.Query{
			locator.BySelector(e.Config.Selectors.CookieAccept),
			locator.ByTextLiteral(e.Config.Purchase.CookieAcceptText),
		}
		if ok, err := e.Resolver.ClickFirst(ctx, page, cookie, e.t.ProbeTiny); err != nil {
			return wrapFatal(stepLogin, err)
		} else if ok {
			e.Logger.Debug("Accepted cookie banner.")
			changed = true
		}

		prompted, err := e.textExists(ctx, page, e.Config.Purchase.AgeGatePromptText, e.t.ProbeTiny)
		if err != nil {
			return wrapFatal(stepLogin, err)
		}
		if prompted {
			ageGate := []locator.Query{
				locator.BySelector(e.Config.Selectors.AgeGateConfirm),
				locator.ByTextLiteral(e.Config.Purchase.AgeGateConfirmText),
			}
			if ok, err := e.Resolver.ClickFirst(ctx, page, ageGate, e.t.ProbeTiny); err != nil {
				return wrapFatal(stepLogin, err)
			} else if ok {
				e.Logger.Debug("Confirmed age gate.")
				changed = true
			}
		}

		enter := []locator.Query{
			locator.BySelector(e.Config.Selectors.EnterSite),
			locator.ByTextLiteral(e.Config.Purchase.EnterSiteText),
		}
		if ok, err := e.Resolver.ClickFirst(ctx, page, enter, e.t.ProbeTiny); err != nil {
			return wrapFatal(stepLogin, err)
		} else if ok {
			e.Logger.Debug("Clicked site entry action.")
			changed = true
		}

		access := []locator.Query{
			locator.BySelector(e.Config.Selectors.AccessLogin),
			locator.ByTextLiteral(e.Config.Purchase.AccessLoginText),
		}
		if ok, err := e.Resolver.ClickFirst(ctx, page, access, e.t.ProbeTiny); err != nil {
			return wrapFatal(stepLogin, err)
		} else if ok {
			e.Logger.Debug("Clicked login call to action.")
			changed = true
		}

		if !changed {
			return nil
		}
		if err := e.pause(ctx, e.t.SettleLong); err != nil {
			return err
		}
	}
	return nil
}

// isLoggedInSession detects a persisted session restored from the browser
// profile: no login inputs, off the auth host, and a logged-in marker on the
// page without the login call-to-action.
func (e *Env) isLoggedInSession(ctx context.Context, page locator.Page) (bool, error) {
	inputs := append(e.usernameCandidates(), e.passwordCandidates()...)
	if visible, err := e.Resolver.AnyVisible(ctx, page, inputs, 0); err != nil {
		return false, err
	} else if visible {
		return false, nil
	}
	if e.onLoginDomain(ctx, page) {
		return false, nil
	}

	marker, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.BySelector(e.Config.Selectors.AccountMenu),
		locator.ByTextLiteral(e.Config.Purchase.AccountMenuText),
		locator.ByText(reGreeting),
	}, e.t.ProbeTiny)
	if err != nil {
		return false, err
	}
	if !marker {
		return false, nil
	}

	// A visible login CTA means the marker was a false positive.
	cta, err := e.Resolver.AnyVisible(ctx, page, []locator.Query{
		locator.ByTextLiteral(e.Config.Purchase.AccessLoginText),
	}, 0)
	if err != nil {
		return false, err
	}
	return !cta, nil
}

// prepareLoginPage drives the page until the username field is visible,
// retrying the interstitial sweep and entry click between attempts.
func (e *Env) prepareLoginPage(ctx context.Context, page locator.Page) error {
	for attempt := 0; attempt < 4; attempt++ {
		visible, err := e.Resolver.AnyVisible(ctx, page, e.usernameCandidates(), e.t.ProbeShort)
		if err != nil {
			return wrapFatal(stepLogin, err)
		}
		if visible {
			return nil
		}
		if err := e.clearInterstitials(ctx, page); err != nil {
			return err
		}
		if err := e.pause(ctx, e.t.SettleShort); err != nil {
			return err
		}
	}
	e.capture(ctx, page, "login_form_not_visible")
	return failf(stepLogin, "login form did not become visible")
}

func (e *Env) clickLoginNext(ctx context.Context, page locator.Page) (bool, error) {
	nextText := e.Config.Purchase.LoginNextText
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginNext),
		locator.ByRoleLiteral("button", nextText),
		locator.ByRole("button", reLoginNext),
		locator.ByTextLiteral(nextText),
		locator.BySelector(`input[type='submit'][value*='` + nextText + `']`),
	}
	return e.Resolver.ClickFirst(ctx, page, candidates, e.t.ClickBudget)
}

func (e *Env) clickLoginSubmit(ctx context.Context, page locator.Page) (bool, error) {
	candidates := []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginSubmit),
		locator.ByRole("button", reLoginSubmit),
		locator.ByTextLiteral("Entrar"),
		locator.ByTextLiteral("Acessar"),
		locator.ByTextLiteral("Continuar"),
	}
	return e.Resolver.ClickFirst(ctx, page, candidates, e.t.ClickBudget)
}

func (e *Env) submitLoginOTP(ctx context.Context, page locator.Page) error {
	if err := e.pause(ctx, e.t.SettleShort); err != nil {
		return err
	}
	if done, err := e.loginOTPResolved(ctx, page); err != nil || done {
		return err
	}
	ok, err := e.Resolver.ClickFirst(ctx, page, []locator.Query{
		locator.BySelector(e.Config.Selectors.LoginOTPSubmit),
		locator.ByRole("button", reOTPSubmit),
		locator.ByText(reOTPSubmit),
	}, e.t.ClickBudget)
	if err != nil {
		return wrapFatal(stepLogin, err)
	}
	if ok {
		return nil
	}

	// Last resort: submit with Enter on the code field itself.
	el, found, err := e.Resolver.Resolve(ctx, page, e.loginOTPCandidates(), e.t.ProbeTiny)
	if err != nil {
		return wrapFatal(stepLogin, err)
	}
	if found {
		if err := el.PressEnter(ctx); err == nil {
			return nil
		}
	}
	return failf(stepLogin, "could not submit the login code")
}

// loginOTPResolved reports whether the code screen already moved on, either
// to the password step or off the auth host entirely.
func (e *Env) loginOTPResolved(ctx context.Context, page locator.Page) (bool, error) {
	visible, err := e.Resolver.AnyVisible(ctx, page, e.passwordCandidates(), 0)
	if err != nil {
		return false, wrapFatal(stepLogin, err)
	}
	if visible {
		return true, nil
	}
	if !e.onLoginDomain(ctx, page) {
		return true, nil
	}
	return false, nil
}

// waitForLoginStep polls until the password or code field shows up. A
// "receber código" action is clicked at most once along the way, since some
// accounts require requesting the email code explicitly.
func (e *Env) waitForLoginStep(ctx context.Context, page locator.Page) (string, error) {
	requested := false
	outcome := ""
	_, err := locator.WaitUntil(ctx, e.t.LoginStep, e.t.Poll, func(ctx context.Context) (bool, error) {
		if visible, err := e.Resolver.AnyVisible(ctx, page, e.passwordCandidates(), 0); err != nil {
			return false, err
		} else if visible {
			outcome = "password"
			return true, nil
		}
		if visible, err := e.Resolver.AnyVisible(ctx, page, e.loginOTPCandidates(), 0); err != nil {
			return false, err
		} else if visible {
			outcome = "otp"
			return true, nil
		}
		if !requested {
			ok, err := e.Resolver.ClickFirst(ctx, page, []locator.Query{locator.ByText(reRequestCode)}, 0)
			if err != nil {
				return false, err
			}
			if ok {
				requested = true
				e.Logger.Info("Requested the login code.")
				if err := e.pause(ctx, e.t.SettleLong); err != nil {
					return false, err
				}
			}
		}
		return false, nil
	})
	if err != nil {
		return "", wrapFatal(stepLogin, err)
	}
	return outcome, nil
}

// waitForPasswordOrCompletion handles the tail after a login code: either a
// password field appears or the auth host hands the session back.
func (e *Env) waitForPasswordOrCompletion(ctx context.Context, page locator.Page) (locator.Page, error) {
	var password bool
	_, err := locator.WaitUntil(ctx, e.t.LoginStep, e.t.Poll, func(ctx context.Context) (bool, error) {
		if page.IsClosed() || !e.onLoginDomain(ctx, page) {
			return true, nil
		}
		visible, err := e.Resolver.AnyVisible(ctx, page, e.passwordCandidates(), 0)
		if err != nil {
			return false, err
		}
		password = visible
		return visible, nil
	})
	if err != nil {
		return page, wrapFatal(stepLogin, err)
	}
	if !password {
		return e.resolveActivePage(ctx, page, stepLogin)
	}

	if ok, err := e.Resolver.FillFirst(ctx, page, e.Config.Account.Password, e.passwordCandidates(), e.t.FillBudget); err != nil {
		return page, wrapFatal(stepLogin, err)
	} else if !ok {
		return page, failf(stepLogin, "password field disappeared before it could be filled")
	}
	if page.IsClosed() || !e.onLoginDomain(ctx, page) {
		return e.resolveActivePage(ctx, page, stepLogin)
	}
	if ok, err := e.clickLoginSubmit(ctx, page); err != nil {
		return page, wrapFatal(stepLogin, err)
	} else if !ok {
		return page, failf(stepLogin, "could not submit the password form")
	}
	e.capture(ctx, page, "login_submitted")
	return e.resolveActivePage(ctx, page, stepLogin)
}

func (e *Env) promptLoginCode(ctx context.Context) (string, error) {
	code, err := e.Prompter.Prompt(ctx, "Enter login email code")
	if err != nil {
		return "", wrapFatal(stepLogin, err)
	}
	if code == "" {
		return "", failf(stepLogin, "no login code was provided")
	}
	return code, nil
}

// Login drives the full sign-in sequence and returns the page the purchase
// flow should continue on, which may be a different tab than it started on.
func (e *Env) Login(ctx context.Context, page locator.Page) (locator.Page, error) {
	e.Logger.Info("Opening home page.", zap.String("url", e.Config.Site.BaseURL))
	if err := page.Navigate(ctx, e.Config.Site.BaseURL); err != nil {
		return page, wrapFatal(stepLogin, err)
	}
	e.capture(ctx, page, "home_loaded")

	if err := e.clearInterstitials(ctx, page); err != nil {
		return page, err
	}

	if active, err := e.isLoggedInSession(ctx, page); err != nil {
		return page, wrapFatal(stepLogin, err)
	} else if active {
		e.Logger.Info("Existing session detected, skipping login.")
		e.capture(ctx, page, "login_skipped_session_active")
		return page, nil
	}

	if err := e.prepareLoginPage(ctx, page); err != nil {
		return page, err
	}
	e.capture(ctx, page, "login_ready")

	e.Logger.Info("Filling username.",
		zap.String("username", observability.MaskSecret(e.Config.Account.Username)))
	if ok, err := e.Resolver.FillFirst(ctx, page, e.Config.Account.Username, e.usernameCandidates(), e.t.FillBudget); err != nil {
		return page, wrapFatal(stepLogin, err)
	} else if !ok {
		return page, failf(stepLogin, "username field disappeared before it could be filled")
	}

	passwordVisible, err := e.Resolver.AnyVisible(ctx, page, e.passwordCandidates(), 0)
	if err != nil {
		return page, wrapFatal(stepLogin, err)
	}
	step := "password"
	if !passwordVisible {
		// Two-step form: advance past the username screen first.
		if el, found, err := e.Resolver.Resolve(ctx, page, e.usernameCandidates(), 0); err != nil {
			return page, wrapFatal(stepLogin, err)
		} else if found {
			_ = el.PressEnter(ctx)
		}
		if ok, err := e.clickLoginNext(ctx, page); err != nil {
			return page, wrapFatal(stepLogin, err)
		} else if !ok {
			e.Logger.Debug("No explicit next action found after username.")
		}
		step, err = e.waitForLoginStep(ctx, page)
		if err != nil {
			return page, err
		}
		e.capture(ctx, page, "login_after_next")
		if step == "" {
			return page, failf(stepLogin, "neither password nor code field appeared after username")
		}
	}

	if step == "otp" {
		code, err := e.promptLoginCode(ctx)
		if err != nil {
			return page, err
		}
		if ok, err := e.Resolver.FillFirst(ctx, page, code, e.loginOTPCandidates(), e.t.FillBudget); err != nil {
			return page, wrapFatal(stepLogin, err)
		} else if !ok {
			return page, failf(stepLogin, "login code field disappeared before it could be filled")
		}
		if err := e.submitLoginOTP(ctx, page); err != nil {
			return page, err
		}
		e.capture(ctx, page, "login_otp_submitted")
		page, err = e.waitForPasswordOrCompletion(ctx, page)
		if err != nil {
			return page, err
		}
	} else {
		if ok, err := e.Resolver.FillFirst(ctx, page, e.Config.Account.Password, e.passwordCandidates(), e.t.FillBudget); err != nil {
			return page, wrapFatal(stepLogin, err)
		} else if !ok {
			return page, failf(stepLogin, "password field disappeared before it could be filled")
		}
		if !page.IsClosed() {
			if ok, err := e.clickLoginSubmit(ctx, page); err != nil {
				return page, wrapFatal(stepLogin, err)
			} else if !ok {
				return page, failf(stepLogin, "could not submit the password form")
			}
		}
		e.capture(ctx, page, "login_submitted")
		page, err = e.resolveActivePage(ctx, page, stepLogin)
		if err != nil {
			return page, err
		}

		// The auth host may still ask for an email code after the password.
		otpVisible, err := e.Resolver.AnyVisible(ctx, page, e.loginOTPCandidates(), e.t.ProbeShort)
		if err != nil {
			return page, wrapFatal(stepLogin, err)
		}
		if otpVisible && e.onLoginDomain(ctx, page) {
			code, err := e.promptLoginCode(ctx)
			if err != nil {
				return page, err
			}
			if ok, err := e.Resolver.FillFirst(ctx, page, code, e.loginOTPCandidates(), e.t.FillBudget); err != nil {
				return page, wrapFatal(stepLogin, err)
			} else if !ok {
				return page, failf(stepLogin, "login code field disappeared before it could be filled")
			}
			if err := e.submitLoginOTP(ctx, page); err != nil {
				return page, err
			}
			e.capture(ctx, page, "login_otp_submitted")
			page, err = e.resolveActivePage(ctx, page, stepLogin)
			if err != nil {
				return page, err
			}
		}
	}

	url := e.currentURL(ctx, page)
	if url == e.Config.Site.BaseURL {
		e.Logger.Info("Login complete.")
		return page, nil
	}
	if strings.Contains(strings.ToLower(url), "login") {
		e.capture(ctx, page, "login_not_completed")
		return page, failf(stepLogin, "still on the login page after submitting credentials")
	}
	e.Logger.Info("Login complete.", zap.String("url", url))
	return page, nil
}
