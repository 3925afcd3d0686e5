package schemas

import (
	"context"
)

// -- Browser Interfaces --

// BrowsingContext abstracts "the current browser tab or frame". All element
// queries, scripts and clicks operate inside the current context, which starts
// at the top-level document and changes only through SwitchToFrame and
// SwitchToTopDocument. Implementations are not safe for concurrent use.
type BrowsingContext interface {
	// Navigate loads url in the top-level document and resets the context to it.
	Navigate(ctx context.Context, url string) error
	// FindElements returns the elements matching a CSS selector. When scope is
	// nil the current document is searched; otherwise scope must be a shadow
	// root returned by ShadowRoot. An empty result is not an error.
	FindElements(ctx context.Context, scope *ElementRef, selector string) ([]ElementRef, error)
	// ShadowRoot returns the open shadow root of host, or nil when it has none.
	ShadowRoot(ctx context.Context, host ElementRef) (*ElementRef, error)
	// SwitchToFrame makes the document of the given frame element current.
	SwitchToFrame(ctx context.Context, frame ElementRef) error
	// SwitchToTopDocument makes the top-level document current.
	SwitchToTopDocument(ctx context.Context) error
	// ExecuteScript calls a JavaScript function declaration with `this` bound
	// to the current document and decodes its JSON result into res (may be nil).
	ExecuteScript(ctx context.Context, script string, res interface{}) error
	// Click performs a real pointer click on the element.
	Click(ctx context.Context, el ElementRef) error
	// ScriptClick invokes the element's click() method from script.
	ScriptClick(ctx context.Context, el ElementRef) error
	// Type replaces the value of an input element with text.
	Type(ctx context.Context, el ElementRef, text string) error
	// ReadAttribute reads the live value of an attribute. ok is false when
	// the attribute is absent.
	ReadAttribute(ctx context.Context, el ElementRef, name string) (value string, ok bool, err error)
	// Screenshot captures the page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the browser resources behind the context.
	Close(ctx context.Context) error
}

// Launcher acquires a fresh BrowsingContext.
type Launcher interface {
	Launch(ctx context.Context) (BrowsingContext, error)
}

// DiagnosticSink records a best-effort snapshot of the browser state tagged
// with an outcome kind. It returns the location of what was written.
type DiagnosticSink interface {
	Capture(ctx context.Context, bc BrowsingContext, action Action, tag string) (string, error)
}
