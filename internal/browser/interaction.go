// internal/browser/interaction.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
)

// Navigate loads url in the top-level document and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))
	_ = s.SwitchToTopDocument(ctx)

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	if err := s.run(navCtx, func(c context.Context) error {
		return chromedp.Navigate(url).Do(c)
	}); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// quadCenter returns the center of a content quad (four x,y points).
func quadCenter(q dom.Quad) (x, y float64, ok bool) {
	if len(q) != 8 {
		return 0, 0, false
	}
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4, true
}

// Click scrolls the element into view and dispatches a real mouse click at its
// center. It fails with ErrNotInteractable when the click would land elsewhere.
func (s *Session) Click(ctx context.Context, el schemas.ElementRef) error {
	id, err := handleOf(el)
	if err != nil {
		return err
	}

	return s.run(ctx, func(c context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithObjectID(id).Do(c); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotInteractable, el.Describe(), err)
		}

		obj, err := callOn(c, id, hitTestJS, true)
		if err != nil {
			return err
		}
		var reason string
		if err := decode(obj, &reason); err != nil {
			return err
		}
		if reason != "" {
			return fmt.Errorf("%w: %s: %s", ErrNotInteractable, el.Describe(), reason)
		}

		quads, err := dom.GetContentQuads().WithObjectID(id).Do(c)
		if err != nil || len(quads) == 0 {
			return fmt.Errorf("%w: %s has no layout", ErrNotInteractable, el.Describe())
		}
		x, y, ok := quadCenter(quads[0])
		if !ok {
			return fmt.Errorf("%w: %s has a malformed box", ErrNotInteractable, el.Describe())
		}
		return chromedp.MouseClickXY(x, y).Do(c)
	})
}

// ScriptClick invokes the element's click method from script. It fires the
// element's handlers even when something is painted on top of it.
func (s *Session) ScriptClick(ctx context.Context, el schemas.ElementRef) error {
	id, err := handleOf(el)
	if err != nil {
		return err
	}
	return s.run(ctx, func(c context.Context) error {
		_, err := callOn(c, id, scriptClickJS, true)
		return err
	})
}

// Type focuses an input, clears it, and inserts text as keyboard input.
func (s *Session) Type(ctx context.Context, el schemas.ElementRef, text string) error {
	id, err := handleOf(el)
	if err != nil {
		return err
	}
	return s.run(ctx, func(c context.Context) error {
		if _, err := callOn(c, id, focusAndClearJS, true); err != nil {
			return fmt.Errorf("focus %s: %w", el.Describe(), err)
		}
		if err := input.InsertText(text).Do(c); err != nil {
			return fmt.Errorf("type into %s: %w", el.Describe(), err)
		}
		_, err := callOn(c, id, setValueJS(text), true)
		return err
	})
}

// ReadAttribute reads the live value of an attribute.
func (s *Session) ReadAttribute(ctx context.Context, el schemas.ElementRef, name string) (string, bool, error) {
	id, err := handleOf(el)
	if err != nil {
		return "", false, err
	}

	var value *string
	err = s.run(ctx, func(c context.Context) error {
		obj, err := callOn(c, id, readAttributeJS(name), true)
		if err != nil {
			return err
		}
		return decode(obj, &value)
	})
	if err != nil || value == nil {
		return "", false, err
	}
	return *value, true, nil
}

// Screenshot captures the full top-level page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, func(c context.Context) error {
		// Quality 100 selects PNG encoding.
		return chromedp.FullScreenshot(&buf, 100).Do(c)
	})
	return buf, err
}
