package locator

import (
	"context"
)

// fakeElement is a scriptable Element for resolver and classifier tests.
type fakeElement struct {
	text      string
	attrs     map[string]string
	visible   bool
	clickErr  error
	fillErr   error
	clicks    int
	fills     []string
	children  map[string][]Element
	findErr   error
	visErr    error
	textErr   error
	attrErr   error
	scrolls   int
	pressures int
}

func newFakeElement(text string) *fakeElement {
	return &fakeElement{text: text, visible: true, attrs: map[string]string{}}
}

func (f *fakeElement) Find(ctx context.Context, q Query) ([]Element, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.children[q.Key()], nil
}

func (f *fakeElement) Click(ctx context.Context) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks++
	return nil
}

func (f *fakeElement) Fill(ctx context.Context, value string) error {
	if f.fillErr != nil {
		return f.fillErr
	}
	f.fills = append(f.fills, value)
	return nil
}

func (f *fakeElement) PressEnter(ctx context.Context) error {
	f.pressures++
	return nil
}

func (f *fakeElement) Text(ctx context.Context) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text, nil
}

func (f *fakeElement) Attr(ctx context.Context, name string) (string, bool, error) {
	if f.attrErr != nil {
		return "", false, f.attrErr
	}
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeElement) Visible(ctx context.Context) (bool, error) {
	if f.visErr != nil {
		return false, f.visErr
	}
	return f.visible, nil
}

func (f *fakeElement) ScrollIntoView(ctx context.Context) error {
	f.scrolls++
	return nil
}

// fakeScope maps Query.Key() strings to canned results.
type fakeScope struct {
	results map[string][]Element
	errs    map[string]error
	queries []string
}

func newFakeScope() *fakeScope {
	return &fakeScope{results: map[string][]Element{}, errs: map[string]error{}}
}

func (s *fakeScope) Find(ctx context.Context, q Query) ([]Element, error) {
	key := q.Key()
	s.queries = append(s.queries, key)
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	return s.results[key], nil
}

func (s *fakeScope) add(q Query, els ...Element) {
	s.results[q.Key()] = els
}

func (s *fakeScope) queried(key string) bool {
	for _, q := range s.queries {
		if q == key {
			return true
		}
	}
	return false
}
