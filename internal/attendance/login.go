package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/poll"
)

const readyStateJS = `function() { return this.readyState; }`

// Login opens the target URL, fills in the credentials and submits the form,
// then waits for the landing page to settle. Every failure wraps ErrLoginFailed.
func Login(ctx context.Context, x *Execution) error {
	cfg := x.Config
	bc := x.Browser
	logger := x.Logger.Named("login")

	logger.Info("Opening login page.", zap.String("url", cfg.Target.URL))
	if err := bc.Navigate(ctx, cfg.Target.URL); err != nil {
		return fmt.Errorf("%w: navigate: %w", ErrLoginFailed, err)
	}
	if err := poll.Sleep(ctx, cfg.Login.LoadDelay); err != nil {
		return err
	}

	var username schemas.ElementRef
	found, err := poll.Until(ctx, cfg.Resolver.PollInterval, cfg.Login.FieldTimeout, func(ctx context.Context) (bool, error) {
		el, ok, err := firstElement(ctx, bc, cfg.Login.UsernameSelector)
		username = el
		return ok, err
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: username field %q did not appear within %s", ErrLoginFailed, cfg.Login.UsernameSelector, cfg.Login.FieldTimeout)
	}

	logger.Info("Entering username.")
	if err := bc.Type(ctx, username, cfg.Target.Username); err != nil {
		return fmt.Errorf("%w: type username: %w", ErrLoginFailed, err)
	}

	password, err := requireElement(ctx, bc, cfg.Login.PasswordSelector, "password field")
	if err != nil {
		return err
	}
	logger.Info("Entering password.")
	if err := bc.Type(ctx, password, cfg.Target.Password); err != nil {
		return fmt.Errorf("%w: type password: %w", ErrLoginFailed, err)
	}

	submit, err := requireElement(ctx, bc, cfg.Login.SubmitSelector, "submit control")
	if err != nil {
		return err
	}
	logger.Info("Submitting credentials.")
	if err := click(ctx, bc, submit, logger); err != nil {
		return fmt.Errorf("%w: submit: %w", ErrLoginFailed, err)
	}

	ready, err := poll.Until(ctx, cfg.Resolver.PollInterval, cfg.Login.ReadyTimeout, func(ctx context.Context) (bool, error) {
		var state string
		if err := bc.ExecuteScript(ctx, readyStateJS, &state); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
	if err != nil {
		return err
	}
	if !ready {
		logger.Warn("Landing page did not report complete; continuing.", zap.Duration("waited", cfg.Login.ReadyTimeout))
	}
	if err := poll.Sleep(ctx, cfg.Login.SettleDelay); err != nil {
		return err
	}

	logger.Info("Login completed.")
	return nil
}

func firstElement(ctx context.Context, bc schemas.BrowsingContext, selector string) (schemas.ElementRef, bool, error) {
	found, err := bc.FindElements(ctx, nil, selector)
	if err != nil || len(found) == 0 {
		return schemas.ElementRef{}, false, err
	}
	return found[0], true, nil
}

func requireElement(ctx context.Context, bc schemas.BrowsingContext, selector, what string) (schemas.ElementRef, error) {
	el, ok, err := firstElement(ctx, bc, selector)
	if err != nil {
		return el, fmt.Errorf("%w: find %s: %w", ErrLoginFailed, what, err)
	}
	if !ok {
		return el, fmt.Errorf("%w: %s %q not found", ErrLoginFailed, what, selector)
	}
	return el, nil
}

// click tries a pointer click and retries once from script when the pointer
// click is rejected. The current browsing context must contain el.
func click(ctx context.Context, bc schemas.BrowsingContext, el schemas.ElementRef, logger *zap.Logger) error {
	err := bc.Click(ctx, el)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Warn("Click rejected; retrying with a script click.",
		zap.String("element", el.Describe()),
		zap.Error(err),
	)
	if scriptErr := bc.ScriptClick(ctx, el); scriptErr != nil {
		return fmt.Errorf("%w: %w", ErrInteractionRejected, errors.Join(err, scriptErr))
	}
	return nil
}
