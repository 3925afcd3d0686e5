// Package resolver locates attendance controls across the shadow-DOM widget
// frame, the main document and sibling frames.
package resolver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

// maxFrameDepth bounds how deep the identifier fallback descends into nested frames.
const maxFrameDepth = 3

// strategy searches one region of the page. A strategy reports ordinary
// absence as (nil, nil); errors are logged and the next strategy runs.
type strategy interface {
	Name() string
	// budget caps the whole strategy. Zero leaves it bounded by its own steps.
	budget() time.Duration
	resolve(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error)
}

// Resolver runs the search strategies in order against one browsing context.
type Resolver struct {
	bc         schemas.BrowsingContext
	cfg        config.ResolverConfig
	widget     config.WidgetConfig
	logger     *zap.Logger
	strategies []strategy
}

// New creates a resolver whose strategies run in the order: shadow-host
// frame, main document, sibling frames.
func New(bc schemas.BrowsingContext, cfg config.ResolverConfig, widget config.WidgetConfig, logger *zap.Logger) *Resolver {
	r := &Resolver{
		bc:     bc,
		cfg:    cfg,
		widget: widget,
		logger: logger.Named("resolver"),
	}
	r.strategies = []strategy{
		&shadowHostStrategy{r: r},
		&mainDocumentStrategy{r: r},
		&siblingFrameStrategy{r: r},
	}
	return r
}

// Resolve returns the control described by spec, or nil when no strategy
// finds it within its budget. An error is returned only when ctx ends.
// The browsing context is at the top-level document when Resolve returns.
func (r *Resolver) Resolve(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	defer r.restore(ctx)
	log := r.logger.With(zap.String("target", spec.Name))

	for _, st := range r.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sctx, cancel := ctx, context.CancelFunc(func() {})
		if b := st.budget(); b > 0 {
			sctx, cancel = context.WithTimeout(ctx, b)
		}
		start := time.Now()
		ctl, err := st.resolve(sctx, spec)
		cancel()
		r.restore(ctx)

		if ctl != nil {
			log.Info("Control resolved.",
				zap.String("strategy", ctl.Strategy),
				zap.String("element", ctl.Ref.Describe()),
				zap.Stringer("path", ctl.Path),
				zap.Duration("elapsed", time.Since(start)),
			)
			return ctl, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields := []zap.Field{zap.String("strategy", st.Name()), zap.Duration("elapsed", time.Since(start))}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Debug("Strategy found nothing.", fields...)
	}

	log.Warn("Control not found by any strategy.",
		zap.String("label", spec.Label),
		zap.String("id", spec.ID),
	)
	return nil, nil
}

// ResolveByIdentifier is the last-resort search by fallback identifier over
// the top document, the widget's shadow trees and frames, and every frame
// reachable from the top document. It does not poll.
func (r *Resolver) ResolveByIdentifier(ctx context.Context, spec schemas.TargetSpecifier) (*schemas.ResolvedControl, error) {
	if spec.ID == "" {
		return nil, nil
	}
	defer r.restore(ctx)
	log := r.logger.With(zap.String("target", spec.Name), zap.String("id", spec.ID))
	sel := idSelector(spec.ID)

	found := func(el schemas.ElementRef, path schemas.ContextPath, where string) *schemas.ResolvedControl {
		ctl := &schemas.ResolvedControl{Ref: el, Path: path, Strategy: "identifier/" + where}
		log.Info("Control resolved by identifier.", zap.Stringer("path", path))
		return ctl
	}

	r.restore(ctx)
	if el, ok, _ := first(ctx, r.bc, nil, sel); ok {
		return found(el, nil, "top"), nil
	}

	if r.widget.HostSelector != "" {
		hosts, _ := r.bc.FindElements(ctx, nil, r.widget.HostSelector)
		for _, host := range hosts {
			root, err := r.bc.ShadowRoot(ctx, host)
			if err != nil || root == nil {
				continue
			}
			hostPath := schemas.ContextPath{{Kind: schemas.StepShadowHost, Ref: host}}
			if el, ok, _ := first(ctx, r.bc, root, sel); ok {
				return found(el, hostPath, "shadow"), nil
			}
			frames, _ := r.bc.FindElements(ctx, root, frameSelector)
			for _, f := range frames {
				if ctl := r.searchFrameTree(ctx, extend(hostPath, f), sel, 1, found); ctl != nil {
					return ctl, nil
				}
			}
			r.restore(ctx)
		}
	}

	if ctl := r.searchFrames(ctx, nil, sel, 1, found); ctl != nil {
		return ctl, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Warn("Control not found by identifier.")
	return nil, nil
}

// WidgetFrame finds the widget host, its open shadow root and the frame in
// that root whose name carries the configured prefix. It returns the path to
// the frame, or nil when any link is missing yet. The browsing context is
// left at the top-level document.
func (r *Resolver) WidgetFrame(ctx context.Context) (schemas.ContextPath, error) {
	if r.widget.HostSelector == "" {
		return nil, nil
	}
	if err := r.bc.SwitchToTopDocument(ctx); err != nil {
		return nil, err
	}
	host, ok, err := first(ctx, r.bc, nil, r.widget.HostSelector)
	if !ok {
		return nil, err
	}
	root, err := r.bc.ShadowRoot(ctx, host)
	if root == nil {
		return nil, err
	}
	frames, err := r.bc.FindElements(ctx, root, frameSelector)
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if strings.HasPrefix(f.Name(), r.widget.FrameNamePrefix) {
			return schemas.ContextPath{
				{Kind: schemas.StepShadowHost, Ref: host},
				{Kind: schemas.StepFrame, Ref: f},
			}, nil
		}
	}
	return nil, nil
}

type foundFunc func(el schemas.ElementRef, path schemas.ContextPath, where string) *schemas.ResolvedControl

// searchFrames looks into every frame of the document at path.
func (r *Resolver) searchFrames(ctx context.Context, path schemas.ContextPath, sel string, depth int, found foundFunc) *schemas.ResolvedControl {
	if depth > maxFrameDepth || ctx.Err() != nil {
		return nil
	}
	if err := Enter(ctx, r.bc, path); err != nil {
		return nil
	}
	frames, err := r.bc.FindElements(ctx, nil, frameSelector)
	if err != nil {
		return nil
	}
	for _, f := range frames {
		if ctl := r.searchFrameTree(ctx, extend(path, f), sel, depth, found); ctl != nil {
			return ctl
		}
	}
	return nil
}

// searchFrameTree looks for sel inside the frame at the end of path, then in
// the frames nested in it.
func (r *Resolver) searchFrameTree(ctx context.Context, path schemas.ContextPath, sel string, depth int, found foundFunc) *schemas.ResolvedControl {
	if err := Enter(ctx, r.bc, path); err != nil {
		r.logger.Debug("Frame unavailable.", zap.Stringer("path", path), zap.Error(err))
		return nil
	}
	if el, ok, _ := first(ctx, r.bc, nil, sel); ok {
		return found(el, path, "frame")
	}
	return r.searchFrames(ctx, path, sel, depth+1, found)
}

// extend returns a copy of path with a frame step appended.
func extend(path schemas.ContextPath, frame schemas.ElementRef) schemas.ContextPath {
	out := make(schemas.ContextPath, 0, len(path)+1)
	out = append(out, path...)
	return append(out, schemas.PathStep{Kind: schemas.StepFrame, Ref: frame})
}

func (r *Resolver) restore(ctx context.Context) {
	if err := r.bc.SwitchToTopDocument(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("Failed to restore top-level document.", zap.Error(err))
	}
}

// Enter switches bc from the top-level document along the frame steps of path.
func Enter(ctx context.Context, bc schemas.BrowsingContext, path schemas.ContextPath) error {
	if err := bc.SwitchToTopDocument(ctx); err != nil {
		return err
	}
	for _, step := range path {
		if step.Kind != schemas.StepFrame {
			continue
		}
		if err := bc.SwitchToFrame(ctx, step.Ref); err != nil {
			return err
		}
	}
	return nil
}

// Within enters the control's context, runs fn and switches back to the
// top-level document whatever happens.
func Within(ctx context.Context, bc schemas.BrowsingContext, ctl *schemas.ResolvedControl, fn func(ctx context.Context, el schemas.ElementRef) error) error {
	defer func() { _ = bc.SwitchToTopDocument(context.WithoutCancel(ctx)) }()
	if err := Enter(ctx, bc, ctl.Path); err != nil {
		return err
	}
	return fn(ctx, ctl.Ref)
}
