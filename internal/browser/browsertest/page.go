// Package browsertest provides an in-memory schemas.BrowsingContext for
// exercising resolver and workflow logic without a browser.
//
// A Page holds a tree of Elements. Elements may carry an open shadow root and
// iframes carry their own document, so the same frame switching rules apply
// as in a real browser: FindElements only sees the current document's light
// tree, never the inside of shadow roots or frames.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PNG is the screenshot payload every Page returns.
var PNG = []byte("\x89PNG\r\n\x1a\nbrowsertest")

// Element is a node of the fake DOM.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Value    string
	Children []*Element

	// Shadow is the open shadow root; its Children form the shadow tree.
	Shadow *Element
	// Document is the content document of an iframe.
	Document *Element

	// NotInteractable makes pointer clicks fail, as when something covers it.
	NotInteractable bool
	// AppearAfter hides the element from the given number of queries that
	// would otherwise match it, simulating asynchronous rendering.
	AppearAfter int
	// OnClick runs after every successful click of either kind.
	OnClick func(el *Element)
}

// E builds an element. attrs are alternating name, value pairs.
func E(tag string, attrs ...string) *Element {
	e := &Element{Tag: strings.ToUpper(tag), Attrs: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attrs[attrs[i]] = attrs[i+1]
	}
	return e
}

// Doc builds a document root holding children.
func Doc(children ...*Element) *Element {
	return &Element{Tag: "#document", Attrs: map[string]string{}, Children: children}
}

// Button builds an <input type="button"> with an id and a value label.
func Button(id, label string) *Element {
	return E("input", "type", "button", "id", id).WithValue(label)
}

// IFrame builds an iframe whose document body holds content.
func IFrame(name string, content ...*Element) *Element {
	f := E("iframe", "name", name)
	f.Document = Doc(E("body").Add(content...))
	return f
}

// Host builds a custom element whose shadow tree holds children.
func Host(tag string, children ...*Element) *Element {
	h := E(tag)
	h.Shadow = &Element{Tag: "#shadow-root", Attrs: map[string]string{}, Children: children}
	return h
}

// Add appends children and returns e.
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// WithText sets the text content and returns e.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// WithValue sets the value property and returns e.
func (e *Element) WithValue(v string) *Element {
	e.Value = v
	return e
}

// Disable sets the disabled attribute and returns e.
func (e *Element) Disable() *Element {
	e.Attrs["disabled"] = ""
	return e
}

// DisableOnClick makes the first click disable the element, the way the
// attendance widget reacts to a successful punch.
func (e *Element) DisableOnClick() *Element {
	e.OnClick = func(el *Element) { el.Attrs["disabled"] = "" }
	return e
}

func (e *Element) ref() schemas.ElementRef {
	attrs := make(map[string]string, len(e.Attrs))
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	return schemas.ElementRef{Tag: e.Tag, Attributes: attrs, Text: strings.TrimSpace(e.Text), Value: strings.TrimSpace(e.Value), Handle: e}
}

// Action is one recorded interaction.
type Action struct {
	Kind    string
	Element *Element
	Text    string
	// Depth is the frame depth the context was at when the action happened.
	Depth int
}

// Page is an in-memory browsing context. The zero value is not usable; use New.
type Page struct {
	mu sync.Mutex

	doc    *Element
	frames []*Element

	// Sites maps URLs to the document Navigate loads for them.
	Sites map[string]*Element
	// OnNavigate runs after each navigation with the page lock released.
	OnNavigate func(p *Page, url string)
	// OnScript answers ExecuteScript calls. The result is JSON-encoded into res.
	OnScript func(script string, depth int) (interface{}, error)

	// Injected failures.
	NavigateErr    error
	FindErr        error
	ScreenshotErr  error
	ClickErr       error
	ScriptClickErr error

	actions     []Action
	navigations []string
	finds       int
	closeCount  int
}

var _ schemas.BrowsingContext = (*Page)(nil)

// New returns a page showing doc.
func New(doc *Element) *Page {
	if doc == nil {
		doc = Doc()
	}
	return &Page{doc: doc, Sites: map[string]*Element{}}
}

// SetDocument replaces the top-level document and resets the context.
func (p *Page) SetDocument(doc *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.frames = nil
}

func (p *Page) record(kind string, el *Element, text string) {
	p.actions = append(p.actions, Action{Kind: kind, Element: el, Text: text, Depth: len(p.frames)})
}

func (p *Page) current() *Element {
	if n := len(p.frames); n > 0 {
		return p.frames[n-1].Document
	}
	return p.doc
}

func element(el schemas.ElementRef) (*Element, error) {
	e, ok := el.Handle.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("%w: %s", browser.ErrStaleElement, el.Describe())
	}
	return e, nil
}

// -- schemas.BrowsingContext --

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	if p.NavigateErr != nil {
		err := p.NavigateErr
		p.mu.Unlock()
		return err
	}
	if doc, ok := p.Sites[url]; ok {
		p.doc = doc
	}
	p.frames = nil
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) FindElements(ctx context.Context, scope *schemas.ElementRef, selector string) ([]schemas.ElementRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.FindErr != nil {
		return nil, p.FindErr
	}

	root := p.current()
	if scope != nil {
		e, err := element(*scope)
		if err != nil {
			return nil, err
		}
		root = e
	}

	sel, err := compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	q := mirror(sel, root)

	var refs []schemas.ElementRef
	var walk func(e *Element)
	walk = func(e *Element) {
		for _, c := range e.Children {
			if q.matches(c) {
				if c.AppearAfter > 0 {
					c.AppearAfter--
				} else {
					refs = append(refs, c.ref())
				}
			}
			walk(c)
		}
	}
	walk(root)
	return refs, nil
}

func (p *Page) ShadowRoot(_ context.Context, host schemas.ElementRef) (*schemas.ElementRef, error) {
	e, err := element(host)
	if err != nil {
		return nil, err
	}
	if e.Shadow == nil {
		return nil, nil
	}
	ref := e.Shadow.ref()
	return &ref, nil
}

func (p *Page) SwitchToFrame(_ context.Context, frame schemas.ElementRef) error {
	e, err := element(frame)
	if err != nil {
		return err
	}
	if (e.Tag != "IFRAME" && e.Tag != "FRAME") || e.Document == nil {
		return fmt.Errorf("%w: %s", browser.ErrFrameUnavailable, frame.Describe())
	}
	p.mu.Lock()
	p.frames = append(p.frames, e)
	p.mu.Unlock()
	return nil
}

func (p *Page) SwitchToTopDocument(_ context.Context) error {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
	return nil
}

func (p *Page) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnScript
	depth := len(p.frames)
	p.record("script", nil, script)
	p.mu.Unlock()

	if hook == nil {
		return nil
	}
	out, err := hook(script, depth)
	if err != nil || res == nil || out == nil {
		return err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

func (p *Page) Click(_ context.Context, el schemas.ElementRef) error {
	e, err := element(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.ClickErr != nil {
		err := p.ClickErr
		p.mu.Unlock()
		return err
	}
	if e.NotInteractable {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", browser.ErrNotInteractable, el.Describe())
	}
	p.record("click", e, "")
	p.mu.Unlock()

	if e.OnClick != nil {
		e.OnClick(e)
	}
	return nil
}

func (p *Page) ScriptClick(_ context.Context, el schemas.ElementRef) error {
	e, err := element(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.ScriptClickErr != nil {
		err := p.ScriptClickErr
		p.mu.Unlock()
		return err
	}
	p.record("script-click", e, "")
	p.mu.Unlock()

	if e.OnClick != nil {
		e.OnClick(e)
	}
	return nil
}

func (p *Page) Type(_ context.Context, el schemas.ElementRef, text string) error {
	e, err := element(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e.Value = text
	p.record("type", e, text)
	return nil
}

func (p *Page) ReadAttribute(_ context.Context, el schemas.ElementRef, name string) (string, bool, error) {
	e, err := element(el)
	if err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return append([]byte(nil), PNG...), nil
}

func (p *Page) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return nil
}

// -- Inspection --

// Actions returns the recorded interactions of the given kinds, or all of
// them when no kind is given.
func (p *Page) Actions(kinds ...string) []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Action
	for _, a := range p.actions {
		if len(kinds) == 0 || contains(kinds, a.Kind) {
			out = append(out, a)
		}
	}
	return out
}

// Clicks returns the pointer and script clicks in order.
func (p *Page) Clicks() []Action {
	return p.Actions("click", "script-click")
}

// Navigations returns the URLs navigated to.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// FrameDepth is the number of frames the context is currently inside.
func (p *Page) FrameDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// FindCount is the number of FindElements calls so far.
func (p *Page) FindCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

// CloseCount is the number of Close calls so far.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Launcher hands out a fixed Page, or fails with Err.
type Launcher struct {
	Page *Page
	Err  error

	mu       sync.Mutex
	launches int
}

var _ schemas.Launcher = (*Launcher)(nil)

// ErrNoPage is returned by a Launcher without a Page.
var ErrNoPage = errors.New("browsertest: launcher has no page")

func (l *Launcher) Launch(ctx context.Context) (schemas.BrowsingContext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Page == nil {
		return nil, ErrNoPage
	}
	return l.Page, nil
}

// Launches is the number of Launch calls so far.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}
