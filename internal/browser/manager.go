// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser/stealth"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

// Manager launches Chrome processes and hands out sessions. It implements
// schemas.Launcher.
type Manager struct {
	cfg     config.BrowserConfig
	logger  *zap.Logger
	persona stealth.Persona
}

var _ schemas.Launcher = (*Manager)(nil)

// NewManager creates a new browser manager. No browser is started until Launch.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger.Named("browser_manager"),
		persona: stealth.DefaultPersona,
	}
}

// Launch starts a browser process with one tab and returns a session bound to it.
//
// The browser is tied to a detached context so it outlives ctx; Close on the
// returned session is the only way it is torn down.
func (m *Manager) Launch(ctx context.Context) (schemas.BrowsingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logger.Info("Launching browser.",
		zap.Bool("headless", m.cfg.Headless),
		zap.Bool("stealth", m.cfg.Stealth),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), DefaultAllocatorOptions(m.cfg)...)

	sugar := m.logger.Sugar()
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	cleanup := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run allocates the browser. It must receive the tab context
	// itself; a derived context would take the browser down with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if m.cfg.Stealth {
		runCtx, cancel := CombineContext(tabCtx, ctx)
		err := chromedp.Run(runCtx, stealth.Apply(m.persona, m.logger))
		cancel()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
		}
	}

	session := NewSession(tabCtx, tabCancel, allocCancel, m.cfg, m.logger)
	m.logger.Info("Browser ready.", zap.String("session_id", session.ID()))
	return session, nil
}
