package browser

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// cdpDriver drives a browser through chromedp. The session context carries
// the target; every call runs through chromedp.Run on a child of it bounded
// by the action timeout.
type cdpDriver struct {
	ctx     context.Context
	cancels []context.CancelFunc
	console *consoleBuffer
	timeout time.Duration
}

func openChromedp(opts Options) (_ *cdpDriver, err error) {
	d := &cdpDriver{console: newConsoleBuffer(consoleLimit), timeout: opts.ActionTimeout}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	var allocCtx context.Context
	var cancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.WindowSize(opts.Width, opts.Height),
		)
		if opts.ProfileDir != "" {
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}
	d.cancels = append(d.cancels, cancel)

	logger := opts.Logger
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...), "backend", BackendChromedp)
		}),
	)
	d.cancels = append(d.cancels, cancel)
	d.ctx = ctx

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, 0, len(ev.Args))
			for _, arg := range ev.Args {
				if len(arg.Value) == 0 {
					args = append(args, arg.Description)
					continue
				}
				args = append(args, string(arg.Value))
			}
			d.console.add(string(ev.Type), formatConsoleArgs(args))
		case *runtime.EventExceptionThrown:
			msg := ev.ExceptionDetails.Text
			if ev.ExceptionDetails.Exception != nil {
				msg += " " + ev.ExceptionDetails.Exception.Description
			}
			d.console.add("exception", msg)
		}
	})

	// An empty Run starts the browser and attaches to the first tab
	if err = chromedp.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}
	return d, nil
}

// Close cancels the tab context and then the allocator
func (d *cdpDriver) Close() error {
	for i := len(d.cancels) - 1; i >= 0; i-- {
		d.cancels[i]()
	}
	d.cancels = nil
	return nil
}

func (d *cdpDriver) bounded(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (d *cdpDriver) run(actions ...chromedp.Action) error {
	return Classify(d.bounded(actions...))
}

// classifyQuery maps the error of a bounded lookup. chromedp keeps retrying
// a query under a node that has left the document until its context ends,
// so a deadline on a scoped lookup means the scope went stale.
func classifyQuery(err error, scoped bool) error {
	if scoped && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStale, err)
	}
	return Classify(err)
}

// callOn runs a function declaration with `this` bound to node
func callOn(ctx context.Context, node *cdp.Node, fn string, res interface{}, args ...interface{}) error {
	obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return err
	}
	err = chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(obj.ObjectID)
	}, args...).Do(ctx)
	_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
	return err
}

func (d *cdpDriver) Navigate(url string) error {
	return d.run(chromedp.Navigate(url))
}

func (d *cdpDriver) URL() (string, error) {
	var u string
	err := d.run(chromedp.Location(&u))
	return u, err
}

func (d *cdpDriver) Title() (string, error) {
	var t string
	err := d.run(chromedp.Title(&t))
	return t, err
}

func (d *cdpDriver) query(by By, value string, from *cdp.Node) ([]*cdp.Node, error) {
	sel := Selector(by, value)
	var nodes []*cdp.Node
	if from == nil {
		if err := d.bounded(chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
			return nil, classifyQuery(err, false)
		}
		return nodes, nil
	}
	// A scoped lookup issues one querySelectorAll so that a detached scope
	// fails once instead of being retried by the selector machinery.
	err := d.bounded(chromedp.ActionFunc(func(ctx context.Context) error {
		if err := callOn(ctx, from, connectedJS, nil); err != nil {
			return err
		}
		ids, err := dom.QuerySelectorAll(from.NodeID, sel).Do(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			nodes = append(nodes, &cdp.Node{NodeID: id})
		}
		return nil
	}))
	if err != nil {
		return nil, classifyQuery(err, true)
	}
	return nodes, nil
}

func (d *cdpDriver) first(by By, value string, from *cdp.Node) (Element, error) {
	nodes, err := d.query(by, value, from)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, by, value)
	}
	return &cdpElement{d: d, node: nodes[0]}, nil
}

func (d *cdpDriver) all(by By, value string, from *cdp.Node) ([]Element, error) {
	nodes, err := d.query(by, value, from)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = &cdpElement{d: d, node: n}
	}
	return out, nil
}

func (d *cdpDriver) Find(by By, value string) (Element, error) {
	return d.first(by, value, nil)
}

func (d *cdpDriver) FindAll(by By, value string) ([]Element, error) {
	return d.all(by, value, nil)
}

func (d *cdpDriver) Eval(script string) error {
	return d.run(chromedp.Evaluate(script, nil))
}

func (d *cdpDriver) ConsoleLog() ([]LogEntry, error) {
	return d.console.drain(), nil
}

func (d *cdpDriver) Screenshot() ([]byte, error) {
	var buf []byte
	err := d.run(chromedp.CaptureScreenshot(&buf))
	return buf, err
}

type cdpElement struct {
	d    *cdpDriver
	node *cdp.Node
}

func (e *cdpElement) call(fn string, res interface{}, args ...interface{}) error {
	return e.d.run(chromedp.ActionFunc(func(ctx context.Context) error {
		return callOn(ctx, e.node, fn, res, args...)
	}))
}

func (e *cdpElement) Find(by By, value string) (Element, error) {
	return e.d.first(by, value, e.node)
}

func (e *cdpElement) FindAll(by By, value string) ([]Element, error) {
	return e.d.all(by, value, e.node)
}

func (e *cdpElement) Attribute(name string) (string, error) {
	var v string
	err := e.call(attributeJS, &v, name)
	return v, err
}

func (e *cdpElement) ComputedStyle(property string) (string, error) {
	var v string
	err := e.call(computedStyleJS, &v, property)
	return v, err
}

func (e *cdpElement) OuterHTML() (string, error) {
	var v string
	err := e.call(outerHTMLJS, &v)
	return v, err
}

func (e *cdpElement) Clickable() (bool, error) {
	var ok bool
	err := e.call(clickableJS, &ok)
	return ok, err
}

func (e *cdpElement) Click() error {
	return e.d.run(chromedp.MouseClickNode(e.node))
}

func (e *cdpElement) Clear() error {
	return e.call(clearJS, nil)
}

func (e *cdpElement) Type(text string) error {
	return e.d.run(chromedp.KeyEventNode(e.node, text))
}

func (e *cdpElement) Submit() error {
	return e.d.run(chromedp.KeyEventNode(e.node, kb.Enter))
}

func (e *cdpElement) Bounds() (image.Rectangle, error) {
	var v []int
	if err := e.call(boundsJS, &v); err != nil {
		return image.Rectangle{}, err
	}
	if len(v) != 4 {
		return image.Rectangle{}, fmt.Errorf("element has no shape")
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}
