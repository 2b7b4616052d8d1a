// pkg/driver/drivertest/drivertest.go

// Package drivertest provides an in-memory browser implementing the driver
// capability sets, for unit testing page objects without a real browser.
//
// Selectors are not parsed. A node matches the selectors it was added with,
// and lookups walk the tree in document order:
//
//	b := drivertest.NewBrowser()
//	login := b.AddPage("https://site.test/login")
//	login.Add(drivertest.NewNode("input"), "input[name=username]")
//	login.Add(drivertest.NewNode("button").WithText("Sign in").OnClick(func() {
//		b.SetURL("https://site.test/home?welcome=1")
//	}), "#submit", "button")
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Browser is a fake driver session holding a set of pages keyed by URL (query stripped).
type Browser struct {
	mu      sync.Mutex
	pages   map[string]*Page
	current *Page
	url     string
	history []string
	closed  bool

	// NavigateErr, when set, is returned by every Navigate call.
	NavigateErr error
}

var _ driver.Driver = (*Browser)(nil)

// NewBrowser returns an empty browser at about:blank.
func NewBrowser() *Browser {
	b := &Browser{pages: make(map[string]*Page), url: "about:blank"}
	b.current = b.newPage("about:blank", true)
	return b
}

// AddPage registers a page served at url. The page starts with an empty body.
func (b *Browser) AddPage(url string) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.newPage(url, true)
	b.pages[stripQuery(url)] = p
	return p
}

// AddPageWithoutBody registers a page that never renders a body element.
func (b *Browser) AddPageWithoutBody(url string) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.newPage(url, false)
	b.pages[stripQuery(url)] = p
	return p
}

func (b *Browser) newPage(url string, withBody bool) *Page {
	p := &Page{browser: b, URL: url}
	p.root = &Node{tag: "#document", displayed: true, attrs: map[string]string{}}
	p.root.attach(b, p)
	if withBody {
		p.Body = NewNode("body")
		p.root.addChild(p.Body, []string{"body"})
	}
	return p
}

// Page returns the registered page for url, or nil.
func (b *Browser) Page(url string) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[stripQuery(url)]
}

// Current returns the page currently displayed.
func (b *Browser) Current() *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// SetURL simulates an in-page transition (link, form post, client router) to url.
// A registered page becomes current; otherwise the current document stays.
func (b *Browser) SetURL(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
	if p, ok := b.pages[stripQuery(url)]; ok {
		b.current = p
	}
}

// History returns every URL passed to Navigate, in order.
func (b *Browser) History() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.history...)
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("drivertest: browser closed")
	}
	b.history = append(b.history, url)
	if b.NavigateErr != nil {
		return b.NavigateErr
	}
	p, ok := b.pages[stripQuery(url)]
	if !ok {
		p = b.newPage(url, true)
		b.pages[stripQuery(url)] = p
	}
	b.url = url
	b.current = p
	return nil
}

func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url, nil
}

func (b *Browser) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return b.Current().root.FindElement(ctx, by, value)
}

func (b *Browser) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	return b.Current().root.FindElements(ctx, by, value)
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Page is one document served by the fake browser.
type Page struct {
	browser *Browser
	URL     string
	// Body is nil for pages created with AddPageWithoutBody.
	Body *Node
	root *Node
}

// Add appends n to the page body (or the document when there is no body).
func (p *Page) Add(n *Node, selectors ...string) *Node {
	parent := p.Body
	if parent == nil {
		parent = p.root
	}
	return parent.Add(n, selectors...)
}

// Node is a fake element. Its builder methods are meant for test setup; the
// mutators (SetDisplayed, SetText, Remove) are safe to call while a wait is polling.
type Node struct {
	browser *Browser
	page    *Page

	tag       string
	text      string
	value     string
	attrs     map[string]string
	displayed bool
	readOnly  bool
	removed   bool
	selectors []string
	children  []*Node
	onClick   func()

	dropKeys    int
	staleOnRead bool

	clicks   int
	sendKeys int
	clears   int
}

var (
	_ driver.Element  = (*Node)(nil)
	_ driver.Searcher = (*Node)(nil)
)

// NewNode returns a displayed element with the given tag.
func NewNode(tag string) *Node {
	return &Node{tag: strings.ToLower(tag), displayed: true, attrs: map[string]string{}}
}

func (n *Node) WithText(text string) *Node   { n.text = text; return n }
func (n *Node) WithValue(value string) *Node { n.value = value; return n }
func (n *Node) WithAttr(name, value string) *Node {
	n.attrs[name] = value
	return n
}

// Hidden makes the node present but not displayed.
func (n *Node) Hidden() *Node { n.displayed = false; return n }

// ReadOnly makes Clear fail with driver.ErrInvalidElementState and SendKeys a no-op.
func (n *Node) ReadOnly() *Node { n.readOnly = true; return n }

// OnClick runs fn after each click, without the browser lock held.
func (n *Node) OnClick(fn func()) *Node { n.onClick = fn; return n }

// DropKeys makes the next count SendKeys calls lose their final character.
func (n *Node) DropKeys(count int) *Node { n.dropKeys = count; return n }

// StaleOnRead makes attribute and text reads fail as if the node was detached.
func (n *Node) StaleOnRead() *Node { n.staleOnRead = true; return n }

// Add appends child under n, matching the given selectors.
func (n *Node) Add(child *Node, selectors ...string) *Node {
	n.lock()
	defer n.unlock()
	n.addChild(child, selectors)
	return child
}

func (n *Node) addChild(child *Node, selectors []string) {
	child.selectors = append(child.selectors, selectors...)
	n.children = append(n.children, child)
	child.attach(n.browser, n.page)
}

func (n *Node) attach(b *Browser, p *Page) {
	n.browser, n.page = b, p
	for _, c := range n.children {
		c.attach(b, p)
	}
}

func (n *Node) lock() {
	if n.browser != nil {
		n.browser.mu.Lock()
	}
}

func (n *Node) unlock() {
	if n.browser != nil {
		n.browser.mu.Unlock()
	}
}

// SetDisplayed toggles visibility.
func (n *Node) SetDisplayed(displayed bool) {
	n.lock()
	defer n.unlock()
	n.displayed = displayed
}

// SetText replaces the node text.
func (n *Node) SetText(text string) {
	n.lock()
	defer n.unlock()
	n.text = text
}

// Remove detaches the node; existing handles go stale and lookups stop matching it.
func (n *Node) Remove() {
	n.lock()
	defer n.unlock()
	n.removed = true
}

// Value returns the current input value.
func (n *Node) Value() string {
	n.lock()
	defer n.unlock()
	return n.value
}

// Clicks, SendKeysCalls and Clears count driver calls received by the node.
func (n *Node) Clicks() int {
	n.lock()
	defer n.unlock()
	return n.clicks
}

func (n *Node) SendKeysCalls() int {
	n.lock()
	defer n.unlock()
	return n.sendKeys
}

func (n *Node) Clears() int {
	n.lock()
	defer n.unlock()
	return n.clears
}

func (n *Node) String() string {
	return fmt.Sprintf("<%s %v>", n.tag, n.selectors)
}

// stale must be called with the lock held.
func (n *Node) stale() bool {
	if n.removed {
		return true
	}
	return n.browser != nil && n.page != n.browser.current
}

func (n *Node) isInput() bool {
	return n.tag == "input" || n.tag == "textarea" || n.tag == "select"
}

func (n *Node) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.lock()
	if n.stale() {
		n.unlock()
		return driver.ErrStaleElement
	}
	if !n.displayed {
		n.unlock()
		return fmt.Errorf("%w: %s is not displayed", driver.ErrInvalidElementState, n)
	}
	n.clicks++
	fn := n.onClick
	n.unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (n *Node) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.lock()
	defer n.unlock()
	if n.stale() {
		return driver.ErrStaleElement
	}
	n.sendKeys++
	if n.readOnly {
		return nil
	}
	if n.dropKeys > 0 && text != "" {
		n.dropKeys--
		_, size := utf8.DecodeLastRuneInString(text)
		text = text[:len(text)-size]
	}
	if n.isInput() {
		n.value += text
	} else {
		n.text += text
	}
	return nil
}

func (n *Node) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.lock()
	defer n.unlock()
	if n.stale() || n.staleOnRead {
		return "", driver.ErrStaleElement
	}
	return n.collectText(), nil
}

func (n *Node) collectText() string {
	if n.removed {
		return ""
	}
	parts := []string{}
	if n.text != "" {
		parts = append(parts, n.text)
	}
	for _, c := range n.children {
		if t := c.collectText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (n *Node) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	n.lock()
	defer n.unlock()
	if n.stale() || n.staleOnRead {
		return "", false, driver.ErrStaleElement
	}
	if name == "value" && n.isInput() {
		return n.value, true, nil
	}
	v, ok := n.attrs[name]
	return v, ok, nil
}

func (n *Node) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n.lock()
	defer n.unlock()
	if n.stale() {
		return false, driver.ErrStaleElement
	}
	return n.displayed, nil
}

func (n *Node) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.lock()
	defer n.unlock()
	if n.stale() {
		return driver.ErrStaleElement
	}
	n.clears++
	if n.readOnly {
		return fmt.Errorf("%w: %s is read-only", driver.ErrInvalidElementState, n)
	}
	if n.isInput() {
		n.value = ""
	} else {
		n.text = ""
	}
	return nil
}

func (n *Node) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	found, err := n.FindElements(ctx, by, value)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %q", driver.ErrNoSuchElement, by, value)
	}
	return found[0], nil
}

func (n *Node) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.lock()
	defer n.unlock()
	if n.stale() {
		return nil, driver.ErrStaleElement
	}
	var out []driver.Element
	n.walk(func(c *Node) {
		if c.matches(by, value) {
			out = append(out, c)
		}
	})
	return out, nil
}

// walk visits live descendants in document order.
func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		if c.removed {
			continue
		}
		fn(c)
		c.walk(fn)
	}
}

func (n *Node) matches(by driver.By, value string) bool {
	switch by {
	case driver.ByLinkText:
		return n.tag == "a" && strings.TrimSpace(n.collectText()) == value
	default:
		for _, s := range n.selectors {
			if s == value {
				return true
			}
		}
		return false
	}
}

func stripQuery(url string) string {
	base, _, _ := strings.Cut(url, "?")
	return base
}
