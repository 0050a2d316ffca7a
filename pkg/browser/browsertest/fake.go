// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
)

// ErrEndpointClosed is wrapped in every error a FakePage returns once it is
// unreachable.
var ErrEndpointClosed = errors.New("endpoint closed")

// FakeElement is a scriptable element. Zero values describe an enabled,
// unchecked element without attributes.
type FakeElement struct {
	Name  string
	Attrs map[string]string
	Label string

	IsChecked  bool
	IsDisabled bool

	// ClickErr fails native clicks; ScriptClickErr fails script clicks
	ClickErr       error
	ScriptClickErr error

	// OnClick runs after every successful click of either kind
	OnClick func()

	// ToggleOnClick flips IsChecked on every successful click
	ToggleOnClick bool

	page         *FakePage
	nativeClicks int
	scriptClicks int
	scrolls      int
}

// NewElement returns an element named name.
func NewElement(name string) *FakeElement {
	return &FakeElement{Name: name, Attrs: map[string]string{}}
}

// Clicks returns the number of successful clicks of either kind.
func (e *FakeElement) Clicks() int {
	e.lock()
	defer e.unlock()
	return e.nativeClicks + e.scriptClicks
}

// NativeClicks returns the number of successful native clicks.
func (e *FakeElement) NativeClicks() int {
	e.lock()
	defer e.unlock()
	return e.nativeClicks
}

// ScriptClicks returns the number of successful script clicks.
func (e *FakeElement) ScriptClicks() int {
	e.lock()
	defer e.unlock()
	return e.scriptClicks
}

// Scrolls returns how often the element was scrolled into view.
func (e *FakeElement) Scrolls() int {
	e.lock()
	defer e.unlock()
	return e.scrolls
}

func (e *FakeElement) lock() {
	if e.page != nil {
		e.page.mu.Lock()
	}
}

func (e *FakeElement) unlock() {
	if e.page != nil {
		e.page.mu.Unlock()
	}
}

func (e *FakeElement) reachable(op string) error {
	if e.page != nil && e.page.unreachable {
		return browser.NewError(browser.KindUnreachable, op, ErrEndpointClosed)
	}
	return nil
}

func (e *FakeElement) clicked(native bool) {
	if native {
		e.nativeClicks++
	} else {
		e.scriptClicks++
	}
	if e.ToggleOnClick {
		e.IsChecked = !e.IsChecked
	}
}

// Click implements browser.Element.
func (e *FakeElement) Click(ctx context.Context, timeout time.Duration) error {
	e.lock()
	if err := e.reachable("click"); err != nil {
		e.unlock()
		return err
	}
	if e.ClickErr != nil {
		err := e.ClickErr
		e.unlock()
		return browser.NewError(browser.KindBlocked, "click", err)
	}
	e.clicked(true)
	hook := e.OnClick
	e.unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// ScriptClick implements browser.Element.
func (e *FakeElement) ScriptClick(ctx context.Context) error {
	e.lock()
	if err := e.reachable("script click"); err != nil {
		e.unlock()
		return err
	}
	if e.ScriptClickErr != nil {
		err := e.ScriptClickErr
		e.unlock()
		return browser.NewError(browser.KindBlocked, "script click", err)
	}
	e.clicked(false)
	hook := e.OnClick
	e.unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// ScrollIntoView implements browser.Element.
func (e *FakeElement) ScrollIntoView(ctx context.Context) error {
	e.lock()
	defer e.unlock()
	if err := e.reachable("scroll"); err != nil {
		return err
	}
	e.scrolls++
	return nil
}

// Attribute implements browser.Element.
func (e *FakeElement) Attribute(ctx context.Context, name string) (string, error) {
	e.lock()
	defer e.unlock()
	if err := e.reachable("attribute"); err != nil {
		return "", err
	}
	return e.Attrs[name], nil
}

// Text implements browser.Element.
func (e *FakeElement) Text(ctx context.Context) (string, error) {
	e.lock()
	defer e.unlock()
	if err := e.reachable("text"); err != nil {
		return "", err
	}
	return e.Label, nil
}

// Checked implements browser.Element.
func (e *FakeElement) Checked(ctx context.Context) (bool, error) {
	e.lock()
	defer e.unlock()
	if err := e.reachable("checked"); err != nil {
		return false, err
	}
	return e.IsChecked, nil
}

// Disabled implements browser.Element.
func (e *FakeElement) Disabled(ctx context.Context) (bool, error) {
	e.lock()
	defer e.unlock()
	if err := e.reachable("disabled"); err != nil {
		return false, err
	}
	return e.IsDisabled, nil
}

// FakePage is an in-memory browser.Page. Elements are registered per locator
// value in the top-level document or inside a named frame. Lookups never
// wait: a missing element fails immediately with a locate-timeout.
type FakePage struct {
	mu sync.Mutex

	location    string
	unreachable bool

	// scope ("" for the top level, else the frame locator value) -> locator value -> elements
	elements map[string]map[string][]*FakeElement
	frame    string

	navigateErrs   []error
	navigateResult string
	navigations    []string

	evalResults map[string]interface{}
	evals       []string

	finds      map[string]int
	frameVisit int
	detached   bool
	shutdown   bool
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage returns a reachable page showing location.
func NewFakePage(location string) *FakePage {
	return &FakePage{
		location:    location,
		elements:    map[string]map[string][]*FakeElement{"": {}},
		evalResults: map[string]interface{}{},
		finds:       map[string]int{},
	}
}

// Add registers elements for loc in the top-level document and returns the
// first one (a new element when none is given).
func (p *FakePage) Add(loc browser.Locator, els ...*FakeElement) *FakeElement {
	return p.add("", loc, els...)
}

// AddInFrame registers elements for loc inside the frame matched by frame.
// The frame element itself is registered in the top-level document.
func (p *FakePage) AddInFrame(frame, loc browser.Locator, els ...*FakeElement) *FakeElement {
	p.mu.Lock()
	if len(p.elements[""][frame.Value]) == 0 {
		p.elements[""][frame.Value] = []*FakeElement{{Name: "frame", page: p}}
	}
	p.mu.Unlock()
	return p.add(frame.Value, loc, els...)
}

func (p *FakePage) add(scope string, loc browser.Locator, els ...*FakeElement) *FakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(els) == 0 {
		els = []*FakeElement{NewElement(loc.String())}
	}
	if p.elements[scope] == nil {
		p.elements[scope] = map[string][]*FakeElement{}
	}
	for _, el := range els {
		el.page = p
		if el.Attrs == nil {
			el.Attrs = map[string]string{}
		}
	}
	p.elements[scope][loc.Value] = append(p.elements[scope][loc.Value], els...)
	return els[0]
}

// Remove drops every element registered for loc in the top-level document.
func (p *FakePage) Remove(loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements[""], loc.Value)
}

// RemoveInFrame drops every element registered for loc inside frame.
func (p *FakePage) RemoveInFrame(frame, loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements[frame.Value], loc.Value)
}

// SetLocation changes the current location.
func (p *FakePage) SetLocation(location string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = location
}

// SetUnreachable makes every subsequent call fail as if the endpoint died.
func (p *FakePage) SetUnreachable(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unreachable = v
}

// FailNavigations queues errors returned by the next Navigate calls, one per call.
func (p *FakePage) FailNavigations(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigateErrs = append(p.navigateErrs, errs...)
}

// NavigateTo sets the location a successful Navigate lands on. By default
// the page lands on the requested url.
func (p *FakePage) NavigateTo(location string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigateResult = location
}

// SetEvalResult fixes the result of a script.
func (p *FakePage) SetEvalResult(script string, v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evalResults[script] = v
}

// Navigations returns every url passed to Navigate.
func (p *FakePage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Evals returns every script passed to Eval.
func (p *FakePage) Evals() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evals...)
}

// FindCount returns how often loc was looked up, in any scope.
func (p *FakePage) FindCount(loc browser.Locator) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds[loc.Value]
}

// InFrame reports whether the current context is a frame.
func (p *FakePage) InFrame() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame != ""
}

// FrameVisits returns how many times a frame was entered.
func (p *FakePage) FrameVisits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameVisit
}

// Detached reports whether Detach was called.
func (p *FakePage) Detached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detached
}

// ShutDown reports whether Shutdown was called.
func (p *FakePage) ShutDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

func (p *FakePage) reachable(op string) error {
	if p.unreachable {
		return browser.NewError(browser.KindUnreachable, op, ErrEndpointClosed)
	}
	return nil
}

// Location implements browser.Page.
func (p *FakePage) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("location"); err != nil {
		return "", err
	}
	return p.location, nil
}

// Navigate implements browser.Page.
func (p *FakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("navigate"); err != nil {
		return err
	}
	p.frame = ""
	p.navigations = append(p.navigations, url)
	if len(p.navigateErrs) > 0 {
		err := p.navigateErrs[0]
		p.navigateErrs = p.navigateErrs[1:]
		if err != nil {
			return err
		}
	}
	if p.navigateResult != "" {
		p.location = p.navigateResult
	} else {
		p.location = url
	}
	return nil
}

// Find implements browser.Page.
func (p *FakePage) Find(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("find"); err != nil {
		return nil, err
	}
	p.finds[loc.Value]++
	els := p.elements[p.frame][loc.Value]
	if len(els) == 0 {
		return nil, browser.NewError(browser.KindLocateTimeout, "find "+loc.String(), errors.New("no element matches"))
	}
	return els[0], nil
}

// FindAll implements browser.Page.
func (p *FakePage) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("find all"); err != nil {
		return nil, err
	}
	p.finds[loc.Value]++
	els := p.elements[p.frame][loc.Value]
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

// Eval implements browser.Page.
func (p *FakePage) Eval(ctx context.Context, script string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("eval"); err != nil {
		return nil, err
	}
	p.evals = append(p.evals, script)
	if v, ok := p.evalResults[script]; ok {
		return v, nil
	}
	return true, nil
}

// SwitchToFrame implements browser.Page.
func (p *FakePage) SwitchToFrame(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("frame"); err != nil {
		return err
	}
	if len(p.elements[""][loc.Value]) == 0 {
		return browser.NewError(browser.KindLocateTimeout, "frame "+loc.String(), errors.New("no frame matches"))
	}
	p.frame = loc.Value
	p.frameVisit++
	return nil
}

// SwitchToTop implements browser.Page.
func (p *FakePage) SwitchToTop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = ""
}

// Detach implements browser.Page.
func (p *FakePage) Detach() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached = true
	return nil
}

// Shutdown implements browser.Page. The page is unreachable afterwards.
func (p *FakePage) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reachable("shutdown"); err != nil {
		return err
	}
	p.shutdown = true
	p.unreachable = true
	return nil
}
