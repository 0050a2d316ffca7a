package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultConnectTimeout bounds attaching to an endpoint over its control port.
const DefaultConnectTimeout = 10 * time.Second

// readTimeout bounds element reads so a detached element cannot stall a step.
const readTimeout = 5 * time.Second

// errNotFound is wrapped in locate-timeout errors for single probes.
var errNotFound = errors.New("no element matches")

// PlaywrightConnector attaches to endpoints through the Playwright driver.
// The driver process is started on first use and shared by every page it
// returns.
type PlaywrightConnector struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool

	connectTimeout time.Duration
	output         io.Writer
}

// NewPlaywrightConnector creates a connector. Driver output is discarded.
func NewPlaywrightConnector() *PlaywrightConnector {
	return &PlaywrightConnector{
		connectTimeout: DefaultConnectTimeout,
		output:         io.Discard,
	}
}

// SetOutput sends driver installer output to w.
func (c *PlaywrightConnector) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = w
}

func (c *PlaywrightConnector) runOptions(browsers ...string) *playwright.RunOptions {
	return &playwright.RunOptions{
		Browsers:            browsers,
		SkipInstallBrowsers: len(browsers) == 0,
		Verbose:             false,
		Stdout:              c.output,
		Stderr:              c.output,
	}
}

// driver installs and starts the Playwright driver once.
func (c *PlaywrightConnector) driver() (*playwright.Playwright, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.playwright, nil
	}

	opts := c.runOptions()
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	c.playwright = pw
	c.initialized = true
	return pw, nil
}

// InstallChromium downloads the driver-managed Chromium build and returns the
// path of its executable.
func (c *PlaywrightConnector) InstallChromium(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := playwright.Install(c.runOptions("chromium")); err != nil {
		return "", fmt.Errorf("failed to install chromium: %w", err)
	}
	pw, err := c.driver()
	if err != nil {
		return "", err
	}
	path := pw.Chromium.ExecutablePath()
	if path == "" {
		return "", fmt.Errorf("driver reported no chromium executable")
	}
	return path, nil
}

// Connect implements Connector.
func (c *PlaywrightConnector) Connect(ctx context.Context, address string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := c.driver()
	if err != nil {
		return nil, err
	}

	b, err := pw.Chromium.ConnectOverCDP(address, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: millis(c.connectTimeout),
	})
	if err != nil {
		return nil, classify("connect", err, KindUnreachable)
	}

	page, err := activePage(b)
	if err != nil {
		_ = b.Close()
		return nil, classify("connect", err, KindUnreachable)
	}

	return &playwrightPage{browser: b, page: page}, nil
}

// Stop shuts the driver down. Endpoints stay alive.
func (c *PlaywrightConnector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized && c.playwright != nil {
		if err := c.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		c.initialized = false
		c.playwright = nil
	}
	return nil
}

// activePage returns the first regular tab of the endpoint, opening one if
// the endpoint has none.
func activePage(b playwright.Browser) (playwright.Page, error) {
	contexts := b.Contexts()
	for _, bc := range contexts {
		for _, pg := range bc.Pages() {
			if !strings.HasPrefix(pg.URL(), "devtools://") {
				return pg, nil
			}
		}
	}
	if len(contexts) > 0 {
		return contexts[0].NewPage()
	}
	return b.NewPage()
}

// playwrightPage implements Page over a CDP-attached Playwright browser.
type playwrightPage struct {
	mu      sync.Mutex
	browser playwright.Browser
	page    playwright.Page
	frame   playwright.Frame
}

func (p *playwrightPage) locator(selector string) playwright.Locator {
	p.mu.Lock()
	frame := p.frame
	p.mu.Unlock()

	if frame != nil {
		return frame.Locator(selector)
	}
	return p.page.Locator(selector)
}

func (p *playwrightPage) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := p.page.Evaluate("() => window.location.href")
	if err != nil {
		return "", classify("location", err, KindUnreachable)
	}
	href, ok := v.(string)
	if !ok {
		return "", NewError(KindUnknown, "location", fmt.Errorf("unexpected location value %T", v))
	}
	return href, nil
}

func (p *playwrightPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SwitchToTop()

	waitUntil := playwright.WaitUntilState("load")
	opts := playwright.PageGotoOptions{WaitUntil: &waitUntil}
	if timeout > 0 {
		opts.Timeout = millis(timeout)
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return classify("navigate", err, KindNavigation)
	}
	return nil
}

func (p *playwrightPage) Find(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := "find " + loc.String()
	l := p.locator(loc.Selector()).First()

	if timeout <= 0 {
		n, err := l.Count()
		if err != nil {
			return nil, classify(op, err, KindLocateTimeout)
		}
		if n == 0 {
			return nil, NewError(KindLocateTimeout, op, errNotFound)
		}
		return &playwrightElement{loc: l}, nil
	}

	state := playwright.WaitForSelectorState("attached")
	if err := l.WaitFor(playwright.LocatorWaitForOptions{
		State:   &state,
		Timeout: millis(timeout),
	}); err != nil {
		return nil, classify(op, err, KindLocateTimeout)
	}
	return &playwrightElement{loc: l}, nil
}

func (p *playwrightPage) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.locator(loc.Selector()).All()
	if err != nil {
		return nil, classify("find all "+loc.String(), err, KindLocateTimeout)
	}
	elements := make([]Element, 0, len(all))
	for _, l := range all {
		elements = append(elements, &playwrightElement{loc: l})
	}
	return elements, nil
}

func (p *playwrightPage) Eval(ctx context.Context, script string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	frame := p.frame
	p.mu.Unlock()

	var (
		v   interface{}
		err error
	)
	if frame != nil {
		v, err = frame.Evaluate(script)
	} else {
		v, err = p.page.Evaluate(script)
	}
	if err != nil {
		return nil, classify("eval", err, KindUnknown)
	}
	return v, nil
}

func (p *playwrightPage) SwitchToFrame(ctx context.Context, loc Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op := "frame " + loc.String()
	l := p.locator(loc.Selector()).First()

	state := playwright.WaitForSelectorState("attached")
	if err := l.WaitFor(playwright.LocatorWaitForOptions{
		State:   &state,
		Timeout: millis(timeout),
	}); err != nil {
		return classify(op, err, KindLocateTimeout)
	}

	handle, err := l.ElementHandle()
	if err != nil {
		return classify(op, err, KindLocateTimeout)
	}
	frame, err := handle.ContentFrame()
	if err != nil {
		return classify(op, err, KindUnknown)
	}
	if frame == nil {
		return NewError(KindLocateTimeout, op, fmt.Errorf("element is not a frame"))
	}

	p.mu.Lock()
	p.frame = frame
	p.mu.Unlock()
	return nil
}

func (p *playwrightPage) SwitchToTop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = nil
}

func (p *playwrightPage) Detach() error {
	// Closing a CDP-attached browser only drops the connection
	if err := p.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

func (p *playwrightPage) Shutdown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session, err := p.browser.NewBrowserCDPSession()
	if err != nil {
		return classify("shutdown", err, KindUnreachable)
	}
	if _, err := session.Send("Browser.close", nil); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return classify("shutdown", err, KindUnknown)
	}
	_ = p.browser.Close()
	return nil
}

// playwrightElement implements Element. It wraps a locator, so each action
// re-resolves the element against the live document.
type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Click(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Click(playwright.LocatorClickOptions{Timeout: millis(timeout)}); err != nil {
		return classify("click", err, KindBlocked)
	}
	return nil
}

func (e *playwrightElement) ScriptClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.loc.Evaluate("el => el.click()", nil); err != nil {
		return classify("script click", err, KindBlocked)
	}
	return nil
}

func (e *playwrightElement) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.loc.Evaluate("el => el.scrollIntoView({block: 'center'})", nil); err != nil {
		return classify("scroll", err, KindBlocked)
	}
	return nil
}

func (e *playwrightElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: millis(readTimeout)})
	if err != nil {
		return "", classify("attribute "+name, err, KindLocateTimeout)
	}
	return v, nil
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: millis(readTimeout)})
	if err != nil {
		return "", classify("text", err, KindLocateTimeout)
	}
	return v, nil
}

func (e *playwrightElement) Checked(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.loc.IsChecked(playwright.LocatorIsCheckedOptions{Timeout: millis(readTimeout)})
	if err != nil {
		return false, classify("checked", err, KindLocateTimeout)
	}
	return v, nil
}

func (e *playwrightElement) Disabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.loc.IsDisabled(playwright.LocatorIsDisabledOptions{Timeout: millis(readTimeout)})
	if err != nil {
		return false, classify("disabled", err, KindLocateTimeout)
	}
	return v, nil
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// unreachableMarkers are driver messages meaning the endpoint went away.
var unreachableMarkers = []string{
	"target page, context or browser has been closed",
	"browser has been closed",
	"browser has disconnected",
	"connection refused",
	"econnrefused",
	"websocket",
	"session closed",
}

// classify maps a driver error to a Kind. timeoutKind is the kind a driver
// timeout means for this operation.
func classify(op string, err error, timeoutKind Kind) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, playwright.ErrTargetClosed):
		return NewError(KindUnreachable, op, err)
	case errors.Is(err, playwright.ErrTimeout):
		return NewError(timeoutKind, op, err)
	case strings.Contains(msg, "net::err_"), strings.Contains(msg, "execution context was destroyed"):
		return NewError(KindNavigation, op, err)
	}
	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return NewError(KindUnreachable, op, err)
		}
	}
	if strings.Contains(msg, "intercepts pointer events") || strings.Contains(msg, "not visible") || strings.Contains(msg, "not enabled") {
		return NewError(KindBlocked, op, err)
	}
	if timeoutKind == KindUnreachable {
		// Connection-level operations have no other failure mode worth separating
		return NewError(KindUnreachable, op, err)
	}
	return NewError(KindUnknown, op, err)
}
