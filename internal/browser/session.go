// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	shadowRootTag            = "#shadow-root"
	isolatedWorldName        = "kintai"
)

// Session drives one Chrome tab through the DevTools protocol and implements
// schemas.BrowsingContext.
//
// Elements are addressed by their runtime remote object IDs rather than DOM
// node IDs, so references stay valid across shadow roots and frames without
// tracking the DOM domain. The current browsing context is a stack of frame
// elements; an empty stack is the top-level document.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         config.BrowserConfig

	mu     sync.Mutex
	frames []runtime.RemoteObjectID
	// worlds holds the isolated-world document of each frame on the stack
	// that does not expose contentDocument.
	worlds worldCache

	closeOnce sync.Once
	closed    bool
}

var _ schemas.BrowsingContext = (*Session)(nil)

// NewSession wraps an initialized chromedp tab context. cancel releases the
// tab and allocCancel the browser process.
func NewSession(ctx context.Context, cancel, allocCancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("session_id", id)),
		cfg:         cfg,
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// run executes fn against the tab, bounded by both the session lifetime and ctx.
func (s *Session) run(ctx context.Context, fn func(c context.Context) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(fn))
}

// callOn calls a function declaration with `this` bound to obj.
func callOn(c context.Context, obj runtime.RemoteObjectID, fn string, byValue bool) (*runtime.RemoteObject, error) {
	res, exp, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj).
		WithReturnByValue(byValue).
		WithAwaitPromise(true).
		Do(c)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		return nil, exp
	}
	return res, nil
}

// decode unmarshals a by-value result. Undefined and null leave res untouched.
func decode(obj *runtime.RemoteObject, res interface{}) error {
	if res == nil || obj == nil || len(obj.Value) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(obj.Value), res)
}

func handleOf(el schemas.ElementRef) (runtime.RemoteObjectID, error) {
	id, ok := el.Handle.(runtime.RemoteObjectID)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s", ErrStaleElement, el.Describe())
	}
	return id, nil
}

// -- Browsing context --

// currentDocument resolves the document of the innermost selected frame.
// The frame's document is looked up on every call because frames replace
// their initial about:blank document once they load.
func (s *Session) currentDocument(c context.Context) (runtime.RemoteObjectID, error) {
	s.mu.Lock()
	var frame runtime.RemoteObjectID
	if n := len(s.frames); n > 0 {
		frame = s.frames[n-1]
	}
	s.mu.Unlock()

	if frame == "" {
		obj, exp, err := runtime.Evaluate("document").Do(c)
		if err != nil {
			return "", err
		}
		if exp != nil {
			return "", exp
		}
		return obj.ObjectID, nil
	}
	return s.frameDocument(c, frame)
}

// frameDocument returns the document inside a frame element. Same-origin
// frames expose contentDocument directly. Otherwise the frame gets one
// isolated world, reused until its document goes away or the context returns
// to the top document.
func (s *Session) frameDocument(c context.Context, frame runtime.RemoteObjectID) (runtime.RemoteObjectID, error) {
	if obj, err := callOn(c, frame, contentDocumentJS, false); err == nil && obj.ObjectID != "" {
		return obj.ObjectID, nil
	}

	if doc, ok := s.worlds.get(frame); ok {
		if _, err := callOn(c, doc, documentAliveJS, true); err == nil {
			return doc, nil
		}
		s.worlds.drop(frame)
	}
	doc, err := isolatedDocument(c, frame)
	if err != nil {
		return "", err
	}
	s.worlds.put(frame, doc)
	return doc, nil
}

// isolatedDocument creates an isolated world in the frame and returns its
// document. It works as long as the frame is in-process.
func isolatedDocument(c context.Context, frame runtime.RemoteObjectID) (runtime.RemoteObjectID, error) {

	node, err := dom.DescribeNode().WithObjectID(frame).Do(c)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	if node.FrameID == "" {
		return "", fmt.Errorf("%w: element owns no frame", ErrFrameUnavailable)
	}

	execCtx, err := page.CreateIsolatedWorld(node.FrameID).WithWorldName(isolatedWorldName).Do(c)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	obj, exp, err := runtime.Evaluate("document").WithContextID(execCtx).Do(c)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	if exp != nil || obj.ObjectID == "" {
		return "", fmt.Errorf("%w: frame has no document", ErrFrameUnavailable)
	}
	return obj.ObjectID, nil
}

// SwitchToFrame makes the document of frame the current context.
func (s *Session) SwitchToFrame(ctx context.Context, frame schemas.ElementRef) error {
	id, err := handleOf(frame)
	if err != nil {
		return err
	}
	if tag := strings.ToUpper(frame.Tag); tag != "IFRAME" && tag != "FRAME" {
		return fmt.Errorf("%w: %s is not a frame", ErrFrameUnavailable, frame.Describe())
	}

	if err := s.run(ctx, func(c context.Context) error {
		_, err := s.frameDocument(c, id)
		return err
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.frames = append(s.frames, id)
	depth := len(s.frames)
	s.mu.Unlock()

	s.logger.Debug("Switched into frame.", zap.String("frame", frame.Describe()), zap.Int("depth", depth))
	return nil
}

// SwitchToTopDocument makes the top-level document current.
func (s *Session) SwitchToTopDocument(_ context.Context) error {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
	s.worlds.reset()
	return nil
}

// FindElements returns every element under scope (or the current document)
// matching selector.
func (s *Session) FindElements(ctx context.Context, scope *schemas.ElementRef, selector string) ([]schemas.ElementRef, error) {
	var root runtime.RemoteObjectID
	if scope != nil {
		id, err := handleOf(*scope)
		if err != nil {
			return nil, err
		}
		root = id
	}

	var refs []schemas.ElementRef
	err := s.run(ctx, func(c context.Context) error {
		if root == "" {
			doc, err := s.currentDocument(c)
			if err != nil {
				return err
			}
			root = doc
		}

		arr, err := callOn(c, root, querySelectorAllJS(selector), false)
		if err != nil {
			return fmt.Errorf("query %q: %w", selector, err)
		}
		defer func() { _ = runtime.ReleaseObject(arr.ObjectID).Do(c) }()

		descObj, err := callOn(c, arr.ObjectID, describeElementsJS, true)
		if err != nil {
			return fmt.Errorf("describe %q: %w", selector, err)
		}
		var descs []elementDescription
		if err := decode(descObj, &descs); err != nil {
			return fmt.Errorf("decode %q: %w", selector, err)
		}

		refs = make([]schemas.ElementRef, 0, len(descs))
		for i, d := range descs {
			el, err := callOn(c, arr.ObjectID, indexJS(i), false)
			if err != nil {
				return err
			}
			if el.ObjectID == "" {
				continue
			}
			refs = append(refs, d.ref(el.ObjectID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ShadowRoot returns the open shadow root of host, or nil when it has none.
func (s *Session) ShadowRoot(ctx context.Context, host schemas.ElementRef) (*schemas.ElementRef, error) {
	id, err := handleOf(host)
	if err != nil {
		return nil, err
	}

	var root *schemas.ElementRef
	err = s.run(ctx, func(c context.Context) error {
		obj, err := callOn(c, id, shadowRootJS, false)
		if err != nil {
			return err
		}
		if obj.ObjectID != "" {
			root = &schemas.ElementRef{Tag: shadowRootTag, Handle: obj.ObjectID}
		}
		return nil
	})
	return root, err
}

// ExecuteScript calls a function declaration with `this` bound to the current
// document and decodes its result into res.
func (s *Session) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, func(c context.Context) error {
		doc, err := s.currentDocument(c)
		if err != nil {
			return err
		}
		obj, err := callOn(c, doc, script, true)
		if err != nil {
			return err
		}
		return decode(obj, res)
	})
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")

		// chromedp.Cancel waits for the browser to exit gracefully.
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		s.mu.Lock()
		s.closed = true
		s.frames = nil
		s.mu.Unlock()
		s.worlds.reset()

		if s.cancel != nil {
			s.cancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}

// worldCache maps frame elements to the document object of the isolated world
// created for them.
type worldCache struct {
	mu   sync.Mutex
	docs map[runtime.RemoteObjectID]runtime.RemoteObjectID
}

func (w *worldCache) get(frame runtime.RemoteObjectID) (runtime.RemoteObjectID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[frame]
	return doc, ok
}

func (w *worldCache) put(frame, doc runtime.RemoteObjectID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.docs == nil {
		w.docs = make(map[runtime.RemoteObjectID]runtime.RemoteObjectID)
	}
	w.docs[frame] = doc
}

func (w *worldCache) drop(frame runtime.RemoteObjectID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, frame)
}

func (w *worldCache) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs = nil
}
