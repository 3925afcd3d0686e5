package attendance

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/poll"
	"github.com/xkilldash9x/kintai-cli/internal/resolver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tabSelectors are tried in order for the work location tabs. The widget
// renders them as links or list items depending on its version.
var tabSelectors = []string{
	`[role="tab"]`,
	`a, li, span`,
	`label, input[type="radio"]`,
	`button, input[type="button"]`,
}

// locationScanJS walks the document, open shadow roots and same-origin frames
// for the innermost element whose trimmed text is the location, and clicks it.
const locationScanJS = `function(label) {
	const visit = (root) => {
		let hit = null;
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) {
				hit = visit(el.shadowRoot);
				if (hit) return hit;
			}
			if ((el.tagName === 'IFRAME' || el.tagName === 'FRAME') && el.contentDocument) {
				try { hit = visit(el.contentDocument); } catch (e) {}
				if (hit) return hit;
			}
			if ((el.textContent || '').trim() === label && el.children.length === 0) return el;
		}
		return null;
	};
	const el = visit(this);
	if (!el) return false;
	el.click();
	return true;
}`

// SelectLocation picks the work location tab labelled location. It looks in
// the widget frame first, then among tab-like elements of the top document,
// and finally scans the whole page from script. Failing to select is not
// fatal; selected reports the outcome.
func SelectLocation(ctx context.Context, x *Execution, r *resolver.Resolver, location string) (selected bool, err error) {
	logger := x.Logger.Named("location").With(zap.String("location", location))
	bc := x.Browser
	defer func() { _ = bc.SwitchToTopDocument(context.WithoutCancel(ctx)) }()

	var how string
	found, err := poll.Until(ctx, x.Config.Resolver.PollInterval, x.Config.Workflow.LocationTimeout, func(ctx context.Context) (bool, error) {
		if path, _ := r.WidgetFrame(ctx); path != nil {
			if ok, err := clickTab(ctx, bc, path, `[role="tab"], a, li, span, label, button`, location, logger); ok || err != nil {
				how = "widget-frame"
				return ok, err
			}
		}
		for _, sel := range tabSelectors {
			ok, err := clickTab(ctx, bc, nil, sel, location, logger)
			if ok {
				how = "tab:" + sel
				return true, nil
			}
			if err != nil {
				return false, err
			}
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}

	if !found {
		if err := bc.SwitchToTopDocument(ctx); err != nil {
			return false, err
		}
		arg, err := json.Marshal(location)
		if err != nil {
			return false, err
		}
		var clicked bool
		script := fmt.Sprintf("function() { return (%s).call(this, %s); }", locationScanJS, arg)
		if err := bc.ExecuteScript(ctx, script, &clicked); err != nil {
			logger.Warn("Location scan failed.", zap.Error(err))
		}
		found, how = clicked, "script-scan"
	}

	if !found {
		logger.Warn("Location tab not found; continuing without it.")
		return false, nil
	}
	logger.Info("Location selected.", zap.String("via", how))
	if err := poll.Sleep(ctx, x.Config.Workflow.LocationSettle); err != nil {
		return true, err
	}
	return true, nil
}

// clickTab clicks the first element under path matching selector whose label
// is exactly location.
func clickTab(ctx context.Context, bc schemas.BrowsingContext, path schemas.ContextPath, selector, location string, logger *zap.Logger) (bool, error) {
	if err := resolver.Enter(ctx, bc, path); err != nil {
		return false, nil
	}
	candidates, err := bc.FindElements(ctx, nil, selector)
	if err != nil {
		return false, nil
	}
	for _, el := range candidates {
		if !resolver.LabelMatches(el, location) {
			continue
		}
		if err := click(ctx, bc, el, logger); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
