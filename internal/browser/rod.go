package browser

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const consoleLimit = 10000

// rodDriver wraps the Rod browser and page
type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	console  *consoleBuffer
	timeout  time.Duration
}

func openRod(opts Options) (_ *rodDriver, err error) {
	d := &rodDriver{console: newConsoleBuffer(consoleLimit), timeout: opts.ActionTimeout}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	var u string
	if opts.RemoteURL != "" {
		u, err = launcher.ResolveURL(opts.RemoteURL)
		if err != nil {
			return nil, fmt.Errorf("resolve remote browser %s: %w", opts.RemoteURL, err)
		}
	} else {
		path, _ := launcher.LookPath()
		l := launcher.New().Bin(path).Headless(opts.Headless)
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}
		u, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch Chrome: %w", err)
		}
		d.launcher = l
	}

	d.browser = rod.New().ControlURL(u)
	if err = d.browser.Connect(); err != nil {
		d.browser = nil
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	d.page, err = d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	err = d.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err = (proto.RuntimeEnable{}).Call(d.page); err != nil {
		return nil, fmt.Errorf("failed to enable console capture: %w", err)
	}
	go d.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			if a.Value.Nil() {
				args = append(args, a.Description)
				continue
			}
			args = append(args, a.Value.JSON("", ""))
		}
		d.console.add(string(e.Type), formatConsoleArgs(args))
	}, func(e *proto.RuntimeExceptionThrown) {
		msg := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil {
			msg += " " + e.ExceptionDetails.Exception.Description
		}
		d.console.add("exception", msg)
	})()

	return d, nil
}

// Close cleans up browser resources
func (d *rodDriver) Close() error {
	var err error
	if d.page != nil {
		d.page.Close()
	}
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return err
}

func (d *rodDriver) Navigate(url string) error {
	return Classify(d.page.Navigate(url))
}

func (d *rodDriver) URL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", Classify(err)
	}
	return info.URL, nil
}

func (d *rodDriver) Title() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", Classify(err)
	}
	return info.Title, nil
}

func (d *rodDriver) Find(by By, value string) (Element, error) {
	els, err := d.page.Elements(Selector(by, value))
	return firstRod(els, err, by, value, d.timeout)
}

func (d *rodDriver) FindAll(by By, value string) ([]Element, error) {
	els, err := d.page.Elements(Selector(by, value))
	return allRod(els, err, d.timeout)
}

func (d *rodDriver) Eval(script string) error {
	_, err := d.page.Eval("() => { " + script + " }")
	return Classify(err)
}

func (d *rodDriver) ConsoleLog() ([]LogEntry, error) {
	return d.console.drain(), nil
}

func (d *rodDriver) Screenshot() ([]byte, error) {
	data, err := d.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	return data, Classify(err)
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func firstRod(els rod.Elements, err error, by By, value string, timeout time.Duration) (Element, error) {
	if err != nil {
		return nil, Classify(err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, by, value)
	}
	return &rodElement{el: els[0], timeout: timeout}, nil
}

func allRod(els rod.Elements, err error, timeout time.Duration) ([]Element, error) {
	if err != nil {
		return nil, Classify(err)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el, timeout: timeout}
	}
	return out, nil
}

// elements queries under e. querySelectorAll happily runs on a detached
// node, so the scope is checked first and a detached one reports ErrStale.
func (e *rodElement) elements(by By, value string) (rod.Elements, error) {
	if _, err := e.call(connectedJS); err != nil {
		return nil, err
	}
	return e.el.Elements(Selector(by, value))
}

func (e *rodElement) Find(by By, value string) (Element, error) {
	els, err := e.elements(by, value)
	return firstRod(els, err, by, value, e.timeout)
}

func (e *rodElement) FindAll(by By, value string) ([]Element, error) {
	els, err := e.elements(by, value)
	return allRod(els, err, e.timeout)
}

// call invokes an element-scoped function declaration with `this` bound to the node
func (e *rodElement) call(fn string, params ...interface{}) (*proto.RuntimeRemoteObject, error) {
	res, err := e.el.Eval(fn, params...)
	return res, Classify(err)
}

func (e *rodElement) Attribute(name string) (string, error) {
	res, err := e.call(attributeJS, name)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) ComputedStyle(property string) (string, error) {
	res, err := e.call(computedStyleJS, property)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) OuterHTML() (string, error) {
	res, err := e.call(outerHTMLJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) Clickable() (bool, error) {
	res, err := e.call(clickableJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Click waits for the node to become interactable, for at most the action
// timeout. rod retries a covered node with no deadline of its own.
func (e *rodElement) Click() error {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	return classifyClick(el.Click(proto.InputMouseButtonLeft, 1), e.timeout)
}

func classifyClick(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("click did not land within %s: %w", timeout, err)
	}
	return Classify(err)
}

func (e *rodElement) Clear() error {
	_, err := e.call(clearJS)
	return err
}

func (e *rodElement) Type(text string) error {
	return Classify(e.el.Input(text))
}

func (e *rodElement) Submit() error {
	return Classify(e.el.Type(input.Enter))
}

func (e *rodElement) Bounds() (image.Rectangle, error) {
	res, err := e.call(boundsJS)
	if err != nil {
		return image.Rectangle{}, err
	}
	v := res.Value.Arr()
	if len(v) != 4 {
		return image.Rectangle{}, fmt.Errorf("element has no shape")
	}
	return image.Rect(v[0].Int(), v[1].Int(), v[2].Int(), v[3].Int()), nil
}
