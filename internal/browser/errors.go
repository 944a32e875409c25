package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrStale means a node reference is no longer attached to the document
	ErrStale = errors.New("stale element reference")

	// ErrNotFound means a lookup matched nothing
	ErrNotFound = errors.New("no such element")

	// ErrSessionLost means the browser session itself is unusable
	ErrSessionLost = errors.New("browser session lost")
)

// Protocol error messages that indicate a detached node. Both rod and
// chromedp surface these verbatim from the DevTools protocol.
var staleMarkers = []string{
	"Could not find node with given id",
	"does not belong to the document",
	"Node is detached from document",
	"Cannot find context with specified id",
	"Cannot find object with id",
	"No node with given id found",
	"Execution context was destroyed",
}

var sessionMarkers = []string{
	"use of closed network connection",
	"websocket: close",
	"connection reset by peer",
	"broken pipe",
	"target closed",
	"Target closed",
	"browser has disconnected",
	"No target with given id found",
}

// Classify maps a backend error onto ErrStale, ErrNotFound or ErrSessionLost
// where it recognises the failure, keeping the original error in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStale) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrSessionLost) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	msg := err.Error()
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrStale, err)
		}
	}
	for _, m := range sessionMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrSessionLost, err)
		}
	}
	return err
}

// IsTransient reports whether err is expected to clear up by re-resolving
func IsTransient(err error) bool {
	return errors.Is(err, ErrStale) || errors.Is(err, ErrNotFound)
}

// IsSessionLost reports whether err means the session cannot be used anymore
func IsSessionLost(err error) bool {
	return errors.Is(err, ErrSessionLost)
}
