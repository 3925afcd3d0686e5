package attendance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

const siteURL = "https://login.example.test/"

// testConfig is the default configuration with every wait shrunk.
func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.URL = siteURL
	cfg.Target.Username = "taro@example.com"
	cfg.Target.Password = "hunter2"

	cfg.Login.FieldTimeout = 100 * time.Millisecond
	cfg.Login.LoadDelay = 0
	cfg.Login.SettleDelay = 0
	cfg.Login.ReadyTimeout = 50 * time.Millisecond

	cfg.Resolver = config.ResolverConfig{
		ShadowTimeout:     150 * time.Millisecond,
		MainTimeout:       150 * time.Millisecond,
		DirectWait:        40 * time.Millisecond,
		FrameBodyWait:     40 * time.Millisecond,
		FramePollTimeout:  100 * time.Millisecond,
		FramePollInterval: 10 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
	}
	cfg.Workflow = config.WorkflowConfig{
		ClickSettle:     0,
		LocationTimeout: 100 * time.Millisecond,
		LocationSettle:  0,
	}
	cfg.Diagnostics.Enabled = true
	return cfg
}

// site is a fake attendance system: a login form whose submit button swaps
// in the attendance document.
type site struct {
	page     *browsertest.Page
	login    *browsertest.Element
	submit   *browsertest.Element
	username *browsertest.Element
	password *browsertest.Element
}

func newSite(attendance *browsertest.Element) *site {
	s := &site{
		username: browsertest.E("input", "id", "username", "type", "email"),
		password: browsertest.E("input", "id", "password", "type", "password"),
		submit:   browsertest.E("input", "id", "Login", "type", "submit"),
	}
	s.login = browsertest.Doc(browsertest.E("form").Add(s.username, s.password, s.submit))
	s.page = browsertest.New(browsertest.Doc())
	s.page.Sites[siteURL] = s.login
	s.submit.OnClick = func(*browsertest.Element) { s.page.SetDocument(attendance) }
	s.page.OnScript = func(script string, _ int) (interface{}, error) {
		if strings.Contains(script, "readyState") {
			return "complete", nil
		}
		return nil, nil
	}
	return s
}

// widgetDoc renders controls inside the widget's shadow-root frame.
func widgetDoc(controls ...*browsertest.Element) *browsertest.Element {
	return browsertest.Doc(
		browsertest.E("header").WithText("Home"),
		browsertest.Host("force-aloha-page", browsertest.IFrame("vfFrameId_1", controls...)),
	)
}

func checkInButton() *browsertest.Element  { return browsertest.Button("btnStInput", "出勤") }
func checkOutButton() *browsertest.Element { return browsertest.Button("btnEtInput", "退勤") }

func newExecution(t *testing.T, page *browsertest.Page, action schemas.Action) *Execution {
	t.Helper()
	return &Execution{
		RunID:   "test-run",
		Action:  action,
		Config:  testConfig(),
		Browser: page,
		Logger:  zaptest.NewLogger(t),
	}
}

func clicksOn(page *browsertest.Page, el *browsertest.Element) int {
	n := 0
	for _, a := range page.Clicks() {
		if a.Element == el {
			n++
		}
	}
	return n
}

// recordingSink remembers the outcome tags it was asked to capture.
type recordingSink struct {
	mu   sync.Mutex
	tags []string
}

func (s *recordingSink) Capture(_ context.Context, _ schemas.BrowsingContext, action schemas.Action, tag string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tag)
	return "screenshots/" + action.String() + "_" + tag + ".png", nil
}

func (s *recordingSink) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tags...)
}
