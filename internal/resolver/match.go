package resolver

import (
	"context"
	"strings"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
)

// candidateSelector enumerates input- and button-like controls.
const candidateSelector = `input[type="button"], input[type="submit"], button, [role="button"]`

// frameSelector enumerates embedded frames.
const frameSelector = "iframe, frame"

// How a control was matched.
const (
	byID       = "id"
	byLabel    = "label"
	bySelector = "selector"
)

var idEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// idSelector builds an attribute selector for an id, which unlike "#id" needs
// no escaping for ids that start with a digit or contain punctuation.
func idSelector(id string) string {
	return `[id="` + idEscaper.Replace(id) + `"]`
}

// directSelector is the selector used for a last-resort direct lookup: the
// configured selector, or the identifier when none is configured.
func directSelector(spec schemas.TargetSpecifier) string {
	if spec.Selector != "" {
		return spec.Selector
	}
	if spec.ID != "" {
		return idSelector(spec.ID)
	}
	return ""
}

// LabelMatches reports whether the element's visible text or value equals
// label exactly once surrounding whitespace is removed. Substrings never
// match: "出勤する" is not "出勤".
func LabelMatches(el schemas.ElementRef, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	return strings.TrimSpace(el.Text) == label || strings.TrimSpace(el.Value) == label
}

// matchControl picks the target among candidates: an identifier match wins,
// then an exact label match. Document order breaks ties.
func matchControl(candidates []schemas.ElementRef, spec schemas.TargetSpecifier) (schemas.ElementRef, string, bool) {
	if spec.ID != "" {
		for _, c := range candidates {
			if c.ID() == spec.ID {
				return c, byID, true
			}
		}
	}
	for _, c := range candidates {
		if LabelMatches(c, spec.Label) {
			return c, byLabel, true
		}
	}
	return schemas.ElementRef{}, "", false
}

// first returns the first element matching selector under scope.
func first(ctx context.Context, bc schemas.BrowsingContext, scope *schemas.ElementRef, selector string) (schemas.ElementRef, bool, error) {
	if selector == "" {
		return schemas.ElementRef{}, false, nil
	}
	found, err := bc.FindElements(ctx, scope, selector)
	if err != nil || len(found) == 0 {
		return schemas.ElementRef{}, false, err
	}
	return found[0], true, nil
}

// findInScope looks for the target inside the current document, or inside
// scope when given: identifier first, then exact label among the candidate
// controls, then the configured selector.
func findInScope(ctx context.Context, bc schemas.BrowsingContext, scope *schemas.ElementRef, spec schemas.TargetSpecifier) (schemas.ElementRef, string, bool, error) {
	if spec.ID != "" {
		if el, ok, err := first(ctx, bc, scope, idSelector(spec.ID)); err != nil || ok {
			return el, byID, ok, err
		}
	}

	if spec.Label != "" {
		candidates, err := bc.FindElements(ctx, scope, candidateSelector)
		if err != nil {
			return schemas.ElementRef{}, "", false, err
		}
		if el, how, ok := matchControl(candidates, schemas.TargetSpecifier{Label: spec.Label}); ok {
			return el, how, true, nil
		}
	}

	if spec.Selector != "" {
		if el, ok, err := first(ctx, bc, scope, spec.Selector); err != nil || ok {
			return el, bySelector, ok, err
		}
	}
	return schemas.ElementRef{}, "", false, nil
}
