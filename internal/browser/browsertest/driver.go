package browsertest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
)

// Driver is a browser.Driver over an in-memory document. It is not a
// browser: scripts only run if a hook is registered for them.
type Driver struct {
	mu sync.Mutex

	Root *Node

	title string
	url   string

	console []browser.LogEntry

	// Navigations and Evals record calls in order
	Navigations []string
	Evals       []string
	Keystrokes  []string
	Submits     int

	// OnNavigate runs after the URL changes
	OnNavigate func(url string)
	// Scripts maps an Eval script to its effect
	Scripts map[string]func()

	calls   int
	pending []deferred
	faults  []fault
	closed  bool
}

type deferred struct {
	at int
	fn func()
}

// fault makes matching operations fail a number of times
type fault struct {
	op    string
	match string
	left  int
	err   error
}

// New returns a driver with an empty <html><body> document
func New(title string) *Driver {
	root := El("html")
	root.Append(El("body"))
	return &Driver{Root: root, title: title, Scripts: map[string]func(){}}
}

// Body returns the <body> node
func (d *Driver) Body() *Node {
	return d.Root.children[0]
}

func (d *Driver) SetTitle(t string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = t
}

// Log appends a console entry
func (d *Driver) Log(level, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.console = append(d.console, browser.LogEntry{Time: time.Now(), Level: level, Message: message})
}

// After runs fn once n more driver or element calls have been made.
// This stands in for the server updating the page between polls.
func (d *Driver) After(n int, fn func()) {
	d.pending = append(d.pending, deferred{at: d.calls + n, fn: fn})
}

// Fail makes the next n operations named op whose subject contains match
// fail with err. Ops are named after the methods: "find", "click",
// "clickable", "type", "clear", "submit", "title", "navigate", "eval",
// "attribute", "style", "html", "bounds". Find matches on the lookup value,
// element ops on "id classes tag".
func (d *Driver) Fail(op, match string, n int, err error) {
	d.faults = append(d.faults, fault{op: op, match: match, left: n, err: err})
}

// Calls returns the number of operations made so far
func (d *Driver) Calls() int {
	return d.calls
}

// tick advances the operation counter and fires due deferred work
func (d *Driver) tick() {
	d.calls++
	var due []func()
	rest := d.pending[:0]
	for _, p := range d.pending {
		if p.at <= d.calls {
			due = append(due, p.fn)
		} else {
			rest = append(rest, p)
		}
	}
	d.pending = rest
	for _, fn := range due {
		fn()
	}
}

func (d *Driver) fault(op, subject string) error {
	for i := range d.faults {
		f := &d.faults[i]
		if f.op == op && f.left > 0 && strings.Contains(subject, f.match) {
			f.left--
			return f.err
		}
	}
	return nil
}

func (d *Driver) enter(op, subject string) error {
	if d.closed {
		return browser.ErrSessionLost
	}
	d.tick()
	return d.fault(op, subject)
}

func (d *Driver) Navigate(url string) error {
	if err := d.enter("navigate", url); err != nil {
		return err
	}
	d.url = url
	d.Navigations = append(d.Navigations, url)
	if d.OnNavigate != nil {
		d.OnNavigate(url)
	}
	return nil
}

func (d *Driver) URL() (string, error) {
	if d.closed {
		return "", browser.ErrSessionLost
	}
	return d.url, nil
}

func (d *Driver) Title() (string, error) {
	if err := d.enter("title", ""); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) Find(by browser.By, value string) (browser.Element, error) {
	return d.findIn(d.Root, by, value)
}

func (d *Driver) FindAll(by browser.By, value string) ([]browser.Element, error) {
	return d.findAllIn(d.Root, by, value)
}

func (d *Driver) findIn(n *Node, by browser.By, value string) (browser.Element, error) {
	if err := d.enter("find", value); err != nil {
		return nil, err
	}
	if !d.attached(n) {
		return nil, browser.ErrStale
	}
	found := n.find(by, value)
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %q", browser.ErrNotFound, by, value)
	}
	return &Element{d: d, n: found[0]}, nil
}

func (d *Driver) findAllIn(n *Node, by browser.By, value string) ([]browser.Element, error) {
	if err := d.enter("find", value); err != nil {
		return nil, err
	}
	if !d.attached(n) {
		return nil, browser.ErrStale
	}
	found := n.find(by, value)
	out := make([]browser.Element, len(found))
	for i, f := range found {
		out[i] = &Element{d: d, n: f}
	}
	return out, nil
}

func (d *Driver) attached(n *Node) bool {
	for c := n; c != nil; c = c.parent {
		if c.detached {
			return false
		}
		if c == d.Root {
			return true
		}
	}
	return false
}

func (d *Driver) Eval(script string) error {
	if err := d.enter("eval", script); err != nil {
		return err
	}
	d.Evals = append(d.Evals, script)
	if fn, ok := d.Scripts[script]; ok {
		fn()
	}
	return nil
}

func (d *Driver) ConsoleLog() ([]browser.LogEntry, error) {
	if d.closed {
		return nil, browser.ErrSessionLost
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.console
	d.console = nil
	return out, nil
}

// Screenshot renders a flat gray PNG the size of the viewport
func (d *Driver) Screenshot() ([]byte, error) {
	if d.closed {
		return nil, browser.ErrSessionLost
	}
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Driver) Close() error {
	d.closed = true
	return nil
}

// Closed reports whether Close was called
func (d *Driver) Closed() bool {
	return d.closed
}

// Element is a handle to a Node; it goes stale when the node is detached
type Element struct {
	d *Driver
	n *Node
}

// Node exposes the underlying node to tests
func (e *Element) Node() *Node {
	return e.n
}

func (e *Element) subject() string {
	return e.n.ID + " " + strings.Join(e.n.Classes, " ") + " " + e.n.Tag
}

func (e *Element) check(op string) error {
	if err := e.d.enter(op, e.subject()); err != nil {
		return err
	}
	if !e.d.attached(e.n) {
		return fmt.Errorf("%w: %s", browser.ErrStale, e.subject())
	}
	return nil
}

func (e *Element) Find(by browser.By, value string) (browser.Element, error) {
	return e.d.findIn(e.n, by, value)
}

func (e *Element) FindAll(by browser.By, value string) ([]browser.Element, error) {
	return e.d.findAllIn(e.n, by, value)
}

func (e *Element) Attribute(name string) (string, error) {
	if err := e.check("attribute"); err != nil {
		return "", err
	}
	return e.n.attr(name), nil
}

func (e *Element) ComputedStyle(property string) (string, error) {
	if err := e.check("style"); err != nil {
		return "", err
	}
	if v, ok := e.n.Style[property]; ok {
		return v, nil
	}
	if property == "display" {
		return "block", nil
	}
	return "", nil
}

func (e *Element) OuterHTML() (string, error) {
	if err := e.check("html"); err != nil {
		return "", err
	}
	return e.n.HTML(), nil
}

func (e *Element) Clickable() (bool, error) {
	if err := e.check("clickable"); err != nil {
		return false, err
	}
	return !e.n.Hidden && !e.n.Disabled && !e.n.Covered && e.n.Style["display"] != "none", nil
}

func (e *Element) Click() error {
	if err := e.check("click"); err != nil {
		return err
	}
	e.n.Clicks++
	if e.n.OnClick != nil {
		e.n.OnClick(e.n)
	}
	return nil
}

func (e *Element) Clear() error {
	if err := e.check("clear"); err != nil {
		return err
	}
	e.n.Value = ""
	return nil
}

func (e *Element) Type(text string) error {
	if err := e.check("type"); err != nil {
		return err
	}
	e.n.Value += text
	e.d.Keystrokes = append(e.d.Keystrokes, text)
	return nil
}

func (e *Element) Submit() error {
	if err := e.check("submit"); err != nil {
		return err
	}
	e.d.Submits++
	return nil
}

func (e *Element) Bounds() (image.Rectangle, error) {
	if err := e.check("bounds"); err != nil {
		return image.Rectangle{}, err
	}
	return e.n.Box, nil
}
