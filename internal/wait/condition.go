package wait

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
)

// Kind tags the variant of a Condition
type Kind int

const (
	KindTitleContains Kind = iota
	KindStyleEquals
	KindCount
	KindInactive
	KindHidden
	KindClickable
	KindPresent
)

func (k Kind) String() string {
	switch k {
	case KindTitleContains:
		return "title-contains"
	case KindStyleEquals:
		return "style-equals"
	case KindCount:
		return "count"
	case KindInactive:
		return "inactive"
	case KindHidden:
		return "hidden"
	case KindClickable:
		return "clickable"
	case KindPresent:
		return "present"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ActiveClass marks expanded panels and blocking overlays
const ActiveClass = "active"

// Condition is a predicate over browser state. Zero Timeout or Interval
// means the Poller's defaults apply. Conditions are values; the With*
// methods return modified copies.
type Condition struct {
	Kind     Kind
	Timeout  time.Duration
	Interval time.Duration

	desc string
	eval func(d browser.Driver) (bool, error)
	// stop reports errors that end the wait at once instead of counting as "not yet"
	stop func(err error) bool
}

func (c Condition) String() string { return c.desc }

// Within returns c with its own timeout
func (c Condition) Within(timeout time.Duration) Condition {
	c.Timeout = timeout
	return c
}

// Every returns c with its own poll interval
func (c Condition) Every(interval time.Duration) Condition {
	c.Interval = interval
	return c
}

// Check evaluates the predicate once
func (c Condition) Check(d browser.Driver) (bool, error) {
	return c.eval(d)
}

// TitleContains waits for the document title to contain s
func TitleContains(s string) Condition {
	return Condition{
		Kind: KindTitleContains,
		desc: fmt.Sprintf("title to contain %q", s),
		eval: func(d browser.Driver) (bool, error) {
			t, err := d.Title()
			if err != nil {
				return false, err
			}
			return strings.Contains(t, s), nil
		},
	}
}

// StyleEquals waits for the computed style property of the element with
// the given id to equal want
func StyleEquals(id, property, want string) Condition {
	return Condition{
		Kind: KindStyleEquals,
		desc: fmt.Sprintf("%s of #%s to be %q", property, id, want),
		eval: func(d browser.Driver) (bool, error) {
			el, err := d.Find(browser.ByID, id)
			if err != nil {
				return false, err
			}
			v, err := el.ComputedStyle(property)
			if err != nil {
				return false, err
			}
			return strings.TrimSpace(v) == want, nil
		},
	}
}

// CountEquals waits until exactly n elements match
func CountEquals(by browser.By, value string, n int) Condition {
	return count(by, value, fmt.Sprintf("exactly %d", n), func(got int) bool { return got == n })
}

// CountAtLeast waits until at least n elements match
func CountAtLeast(by browser.By, value string, n int) Condition {
	return count(by, value, fmt.Sprintf("at least %d", n), func(got int) bool { return got >= n })
}

func count(by browser.By, value, what string, ok func(int) bool) Condition {
	return Condition{
		Kind: KindCount,
		desc: fmt.Sprintf("%s elements with %s %q", what, by, value),
		eval: func(d browser.Driver) (bool, error) {
			els, err := d.FindAll(by, value)
			if err != nil {
				return false, err
			}
			return ok(len(els)), nil
		},
	}
}

// Inactive waits until the element with the given id is missing or lacks
// the "active" class
func Inactive(id string) Condition {
	return Condition{
		Kind: KindInactive,
		desc: fmt.Sprintf("#%s to be inactive", id),
		eval: func(d browser.Driver) (bool, error) {
			el, err := d.Find(browser.ByID, id)
			if errors.Is(err, browser.ErrNotFound) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			class, err := el.Attribute("class")
			if err != nil {
				return false, err
			}
			return !browser.HasClass(class, ActiveClass), nil
		},
	}
}

// Hidden waits until no element matches or the first match is not displayed
func Hidden(by browser.By, value string) Condition {
	return Condition{
		Kind: KindHidden,
		desc: fmt.Sprintf("%s %q to be invisible", by, value),
		eval: func(d browser.Driver) (bool, error) {
			el, err := d.Find(by, value)
			if errors.Is(err, browser.ErrNotFound) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			display, err := el.ComputedStyle("display")
			if err != nil {
				return false, err
			}
			if display == "none" {
				return true, nil
			}
			visibility, err := el.ComputedStyle("visibility")
			if err != nil {
				return false, err
			}
			return visibility == "hidden", nil
		},
	}
}

// Clickable waits for a resolved element to become clickable. A stale
// handle never recovers, so staleness ends the wait immediately.
func Clickable(el browser.Element, what string) Condition {
	return Condition{
		Kind: KindClickable,
		desc: fmt.Sprintf("%s to be clickable", what),
		eval: func(browser.Driver) (bool, error) {
			return el.Clickable()
		},
		stop: func(err error) bool { return errors.Is(err, browser.ErrStale) },
	}
}

// Present waits until scope resolves and contains a match for (by, value),
// storing the match in *out. scope is re-run on every poll so the
// enclosing element may be rebuilt in between.
func Present(scope func() (browser.Element, error), by browser.By, value string, what string, out *browser.Element) Condition {
	return Condition{
		Kind: KindPresent,
		desc: fmt.Sprintf("%s %q to appear in %s", by, value, what),
		eval: func(browser.Driver) (bool, error) {
			parent, err := scope()
			if err != nil {
				return false, err
			}
			el, err := parent.Find(by, value)
			if err != nil {
				return false, err
			}
			*out = el
			return true, nil
		},
	}
}
