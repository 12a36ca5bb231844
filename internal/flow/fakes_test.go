package flow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/config"
	"github.com/rmaia-dev/lotobot/internal/locator"
)

// fakeEl is a scriptable element. Child lookups are keyed by Query.Key().
type fakeEl struct {
	text     string
	attrs    map[string]string
	visible  bool
	clicks   int
	presses  int
	fills    []string
	children map[string][]locator.Element
	onClick  func()
	clickErr error
}

func newFakeEl(text string) *fakeEl {
	return &fakeEl{
		text:     text,
		visible:  true,
		attrs:    map[string]string{},
		children: map[string][]locator.Element{},
	}
}

func (f *fakeEl) add(q locator.Query, els ...locator.Element) {
	f.children[q.Key()] = els
}

func (f *fakeEl) Find(ctx context.Context, q locator.Query) ([]locator.Element, error) {
	return f.children[q.Key()], nil
}

func (f *fakeEl) Click(ctx context.Context) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks++
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

func (f *fakeEl) Fill(ctx context.Context, value string) error {
	f.fills = append(f.fills, value)
	return nil
}

func (f *fakeEl) PressEnter(ctx context.Context) error {
	f.presses++
	return nil
}

func (f *fakeEl) Text(ctx context.Context) (string, error) {
	return f.text, nil
}

func (f *fakeEl) Attr(ctx context.Context, name string) (string, bool, error) {
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeEl) Visible(ctx context.Context) (bool, error) {
	return f.visible, nil
}

func (f *fakeEl) ScrollIntoView(ctx context.Context) error {
	return nil
}

// fakePage is a scriptable page. Results are keyed by Query.Key().
type fakePage struct {
	results     map[string][]locator.Element
	url         string
	closed      bool
	navigations []string
	onNavigate  func(url string)
	onFind      func(q locator.Query)
	scrolls     int
}

func newFakePage(url string) *fakePage {
	return &fakePage{results: map[string][]locator.Element{}, url: url}
}

func (p *fakePage) add(q locator.Query, els ...locator.Element) {
	p.results[q.Key()] = els
}

func (p *fakePage) remove(q locator.Query) {
	delete(p.results, q.Key())
}

func (p *fakePage) Find(ctx context.Context, q locator.Query) ([]locator.Element, error) {
	if p.closed {
		return nil, locator.ErrPageClosed
	}
	if p.onFind != nil {
		p.onFind(q)
	}
	return p.results[q.Key()], nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.closed {
		return locator.ErrPageClosed
	}
	p.navigations = append(p.navigations, url)
	p.url = url
	if p.onNavigate != nil {
		p.onNavigate(url)
	}
	return nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	if p.closed {
		return "", locator.ErrPageClosed
	}
	return p.url, nil
}

func (p *fakePage) IsClosed() bool {
	return p.closed
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.closed {
		return nil, locator.ErrPageClosed
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (p *fakePage) ScrollBy(ctx context.Context, dx, dy float64) error {
	if p.closed {
		return locator.ErrPageClosed
	}
	p.scrolls++
	return nil
}

type fakeLister struct {
	pages []locator.Page
}

func (l *fakeLister) Pages(ctx context.Context) ([]locator.Page, error) {
	return l.pages, nil
}

type fakePrompter struct {
	response string
	err      error
	labels   []string
}

func (p *fakePrompter) Prompt(ctx context.Context, label string) (string, error) {
	p.labels = append(p.labels, label)
	return p.response, p.err
}

const (
	testBaseURL     = "https://store.example/#/home"
	testLoginDomain = "login.example"
)

func testConfig() *config.Config {
	return &config.Config{
		Site:    config.SiteConfig{BaseURL: testBaseURL, LoginDomain: testLoginDomain},
		Account: config.AccountConfig{Username: "11122233344", Password: "hunter2"},
		Purchase: config.PurchaseConfig{
			FavoriteItemName:   "Mega-Sena",
			ExpectedTotal:      "17,50",
			CookieAcceptText:   "Aceitar",
			AgeGatePromptText:  "Você tem mais de 18 anos?",
			AgeGateConfirmText: "Sim",
			AccessLoginText:    "Acessar",
			LoginNextText:      "Próximo",
			FavoritesEntryText: "Carrinhos favoritos",
			AddButtonText:      "Adicionar",
			CartEntryText:      "Carrinho",
			CheckoutButtonText: "Finalizar",
			AccountMenuText:    "Minha Conta",
			SuccessText:        "Pagamento realizado",
			FailureText:        "Pagamento recusado",
		},
		Payment: config.PaymentConfig{
			UseSavedCard:  true,
			SavedCardHint: "Visa final 1234",
			CVV:           "321",
			PaySubmitText: "Pagar",
		},
	}
}

func newTestEnv(cfg *config.Config, prompter Prompter, pages ...locator.Page) *Env {
	logger := zap.NewNop()
	env := NewEnv(logger, cfg, locator.NewResolverWithPoll(logger, time.Millisecond), nil, prompter, &fakeLister{pages: pages})
	env.t = testTimings()
	return env
}
