// internal/browser/errors.go
package browser

import "errors"

var (
	// ErrFrameUnavailable is returned when a frame's document cannot be reached,
	// for example when it lives in another process.
	ErrFrameUnavailable = errors.New("frame document unavailable")
	// ErrNotInteractable is returned when a pointer click cannot land on an element.
	ErrNotInteractable = errors.New("element not interactable")
	// ErrStaleElement is returned for element references this session did not produce.
	ErrStaleElement = errors.New("element reference is not usable")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("browser session closed")
)
