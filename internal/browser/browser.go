package browser

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// By selects how a lookup value is interpreted
type By int

const (
	ByID By = iota
	ByClass
	ByTag
	ByCSS
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByClass:
		return "class"
	case ByTag:
		return "tag"
	case ByCSS:
		return "css"
	default:
		return fmt.Sprintf("By(%d)", int(b))
	}
}

// Selector converts a lookup into a CSS selector understood by both backends.
// Attribute selectors are used for ids and classes so that values such as
// "r@7b8ee7884f773afa" need no escaping.
func Selector(by By, value string) string {
	switch by {
	case ByID:
		return `[id="` + quote(value) + `"]`
	case ByClass:
		return `[class~="` + quote(value) + `"]`
	default:
		return value
	}
}

func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Element is a live DOM node. Any method may fail with ErrStale once the
// node has been detached from the document.
type Element interface {
	// Find returns the first descendant matching the lookup, or ErrNotFound
	Find(by By, value string) (Element, error)
	FindAll(by By, value string) ([]Element, error)

	Attribute(name string) (string, error)
	ComputedStyle(property string) (string, error)
	OuterHTML() (string, error)

	// Clickable reports whether the node is visible, enabled and not covered
	// by another node at its center point.
	Clickable() (bool, error)
	Click() error
	Clear() error
	Type(text string) error
	Submit() error

	// Bounds returns the node's box in viewport pixels
	Bounds() (image.Rectangle, error)
}

// Driver is one browser session showing one page
type Driver interface {
	Navigate(url string) error
	URL() (string, error)
	Title() (string, error)

	Find(by By, value string) (Element, error)
	FindAll(by By, value string) ([]Element, error)

	// Eval runs a script in page context. Only used where simulated UI
	// actions cannot reach the handler.
	Eval(script string) error

	// ConsoleLog returns browser console entries captured since the last call
	ConsoleLog() ([]LogEntry, error)

	Screenshot() ([]byte, error)
	Close() error
}

// LogEntry is one browser console message
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format(time.RFC3339), e.Level, e.Message)
}

// CountContaining returns how many entries contain substr
func CountContaining(entries []LogEntry, substr string) int {
	n := 0
	for _, e := range entries {
		if strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

// HasClass reports whether a class attribute value contains the class name
func HasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == name {
			return true
		}
	}
	return false
}
