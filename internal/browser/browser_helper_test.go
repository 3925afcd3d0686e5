// internal/browser/browser_helper_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

// maxTestConcurrency limits the number of Chrome processes tests run at once.
const maxTestConcurrency = 2

const (
	defaultBrowserTestTimeout = 90 * time.Second
	semaphoreAcquireTimeout   = 30 * time.Second
)

var (
	processSemaphore     *semaphore.Weighted
	processSemaphoreOnce sync.Once
)

func getProcessSemaphore() *semaphore.Weighted {
	processSemaphoreOnce.Do(func() {
		processSemaphore = semaphore.NewWeighted(maxTestConcurrency)
	})
	return processSemaphore
}

// chromeAvailable reports whether a Chrome binary chromedp can start is on PATH.
func chromeAvailable() bool {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// attendanceSite serves a page whose button sits in an iframe inside the
// shadow root of a custom element, the way the real widget is built.
func attendanceSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><head><title>Attendance</title></head><body>
<input id="note" type="text">
<aloha-widget></aloha-widget>
<script>
customElements.define("aloha-widget", class extends HTMLElement {
	constructor() {
		super();
		this.attachShadow({ mode: "open" }).innerHTML = '<iframe name="vfFrameId_1" src="/frame" width="400" height="200"></iframe>';
	}
});
</script>
</body></html>`)
	})
	mux.HandleFunc("/frame", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><body>
<input type="button" id="btnStInput" value="出勤" onclick="this.setAttribute('disabled', '')">
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestSession launches a headless browser for one test.
func newTestSession(t *testing.T) (context.Context, schemas.BrowsingContext) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if !chromeAvailable() {
		t.Skip("no Chrome binary on PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultBrowserTestTimeout)
	t.Cleanup(cancel)

	sem := getProcessSemaphore()
	acquireCtx, acquireCancel := context.WithTimeout(ctx, semaphoreAcquireTimeout)
	err := sem.Acquire(acquireCtx, 1)
	acquireCancel()
	require.NoError(t, err, "failed to acquire browser slot")
	t.Cleanup(func() { sem.Release(1) })

	cfg := config.NewDefaultConfig().Browser
	cfg.Headless = true
	cfg.Stealth = true
	cfg.UserDataDir = t.TempDir()
	cfg.NavigationTimeout = 30 * time.Second

	bc, err := NewManager(cfg, zaptest.NewLogger(t)).Launch(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer closeCancel()
		_ = bc.Close(closeCtx)
	})
	return ctx, bc
}
