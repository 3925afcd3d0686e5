// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/kintai-cli/internal/config"
)

const (
	defaultWindowWidth  = 1280
	defaultWindowHeight = 900
)

// allocatorFlag is a single Chrome command-line switch.
type allocatorFlag struct {
	Name  string
	Value interface{}
}

// allocatorFlags computes the Chrome switches for a browser config.
func allocatorFlags(cfg config.BrowserConfig) []allocatorFlag {
	flags := []allocatorFlag{
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"disable-gpu", cfg.Headless},
		{"start-maximized", true},
		{"disable-popup-blocking", true},
		{"disable-blink-features", "AutomationControlled"},
		{"enable-automation", false},
		// Out-of-process iframes are reachable only through separate targets.
		// Keeping frames in-process lets one tab reach every frame document.
		{"disable-site-isolation-trials", true},
		{"disable-features", "IsolateOrigins,site-per-process,Translate"},
	}

	if cfg.DisableCache {
		flags = append(flags,
			allocatorFlag{"disk-cache-size", "0"},
			allocatorFlag{"media-cache-size", "0"},
			allocatorFlag{"disable-cache", true},
			allocatorFlag{"disable-application-cache", true},
		)
	}

	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			allocatorFlag{"ignore-certificate-errors", true},
			allocatorFlag{"allow-insecure-localhost", true},
		)
	}

	// Custom args arrive as "--name" or "--name=value".
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags = append(flags, allocatorFlag{name, value})
		} else {
			flags = append(flags, allocatorFlag{name, true})
		}
	}
	return flags
}

// windowSize returns the configured viewport, falling back to the defaults
// for missing or non-positive dimensions.
func windowSize(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = defaultWindowWidth
	}
	if h <= 0 {
		h = defaultWindowHeight
	}
	return w, h
}

// DefaultAllocatorOptions builds the exec allocator options for a browser config.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(windowSize(cfg)),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	return opts
}
