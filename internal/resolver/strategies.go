package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/poll"
)

func control(el schemas.ElementRef, path schemas.ContextPath, st strategy, how string) *schemas.ResolvedControl {
	return &schemas.ResolvedControl{Ref: el, Path: path, Strategy: st.Name() + "/" + how}
}

// -- Shadow host --

// shadowHostStrategy reaches into the frame the widget host renders inside
// its shadow root. That frame is invisible to top-level queries.
type shadowHostStrategy struct {
	r *Resolver
}

func (s *shadowHostStrategy) Name() string          { return "shadow-host" }
func (s *shadowHostStrategy) budget() time.Duration { return s.r.cfg.ShadowTimeout }

func (s *shadowHostStrategy) resolve(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	if s.r.widget.HostSelector == "" {
		return nil, nil
	}

	var ctl *schemas.ResolvedControl
	var lastErr error
	found, err := poll.Until(ctx, s.r.cfg.PollInterval, s.r.cfg.ShadowTimeout, func(ctx context.Context) (bool, error) {
		c, err := s.attempt(ctx, spec)
		ctl, lastErr = c, err
		return c != nil, err
	})
	if found {
		return ctl, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, lastErr
}

// attempt walks host, shadow root and frame afresh; references from an
// earlier attempt may have been replaced by a re-render.
func (s *shadowHostStrategy) attempt(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	path, err := s.r.WidgetFrame(ctx)
	if path == nil {
		return nil, err
	}
	if err := Enter(ctx, s.r.bc, path); err != nil {
		return nil, fmt.Errorf("enter widget frame: %w", err)
	}
	el, how, ok, err := findInScope(ctx, s.r.bc, nil, spec)
	if !ok {
		return nil, err
	}
	return control(el, path, s, how), nil
}

// -- Main document --

// mainDocumentStrategy matches among the top-level document's controls, then
// waits briefly for a direct selector hit.
type mainDocumentStrategy struct {
	r *Resolver
}

func (s *mainDocumentStrategy) Name() string          { return "main-document" }
func (s *mainDocumentStrategy) budget() time.Duration { return s.r.cfg.MainTimeout }

func (s *mainDocumentStrategy) resolve(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	bc := s.r.bc
	if err := bc.SwitchToTopDocument(ctx); err != nil {
		return nil, err
	}

	candidates, err := bc.FindElements(ctx, nil, candidateSelector)
	if err == nil {
		if el, how, ok := matchControl(candidates, spec); ok {
			return control(el, nil, s, how), nil
		}
	}

	sel := directSelector(spec)
	if sel == "" {
		return nil, err
	}
	var el schemas.ElementRef
	found, pollErr := poll.Until(ctx, s.r.cfg.PollInterval, s.r.cfg.DirectWait, func(ctx context.Context) (bool, error) {
		e, ok, err := first(ctx, bc, nil, sel)
		el = e
		return ok, err
	})
	if found {
		return control(el, nil, s, bySelector), nil
	}
	return nil, pollErr
}

// -- Sibling frames --

// siblingFrameStrategy visits every frame of the top-level document in turn.
// It is the most expensive strategy and runs last.
type siblingFrameStrategy struct {
	r *Resolver
}

func (s *siblingFrameStrategy) Name() string          { return "sibling-frame" }
func (s *siblingFrameStrategy) budget() time.Duration { return 0 }

func (s *siblingFrameStrategy) resolve(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	bc := s.r.bc
	if err := bc.SwitchToTopDocument(ctx); err != nil {
		return nil, err
	}
	frames, err := bc.FindElements(ctx, nil, frameSelector)
	if err != nil {
		return nil, err
	}

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctl, err := s.searchFrame(ctx, f, spec)
		if ctl != nil {
			return ctl, nil
		}
		s.r.logger.Debug("Frame searched without a match.",
			zap.Int("index", i),
			zap.String("frame", f.Describe()),
			zap.Error(err),
		)
	}
	return nil, nil
}

func (s *siblingFrameStrategy) searchFrame(ctx context.Context, frame schemas.ElementRef, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	bc := s.r.bc
	cfg := s.r.cfg
	defer s.r.restore(ctx)

	path := schemas.ContextPath{{Kind: schemas.StepFrame, Ref: frame}}
	if err := Enter(ctx, bc, path); err != nil {
		return nil, err
	}

	hasBody, err := poll.Until(ctx, cfg.PollInterval, cfg.FrameBodyWait, func(ctx context.Context) (bool, error) {
		_, ok, err := first(ctx, bc, nil, "body")
		return ok, err
	})
	if !hasBody {
		return nil, err
	}

	var el schemas.ElementRef
	var how string
	found, err := poll.Until(ctx, cfg.FramePollInterval, cfg.FramePollTimeout, func(ctx context.Context) (bool, error) {
		candidates, err := bc.FindElements(ctx, nil, candidateSelector)
		if err != nil {
			return false, err
		}
		var ok bool
		el, how, ok = matchControl(candidates, spec)
		return ok, nil
	})
	if found {
		return control(el, path, s, how), nil
	}
	if err != nil {
		return nil, err
	}

	if e, ok, err := first(ctx, bc, nil, directSelector(spec)); ok {
		return control(e, path, s, bySelector), nil
	} else if err != nil {
		return nil, err
	}
	return nil, nil
}
