package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/kintai-cli/internal/config"
	"github.com/xkilldash9x/kintai-cli/internal/observability"
)

const testURL = "https://login.example.test/"

// resetForTest silences the global logger and restores the swappable hooks.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"}, zapcore.AddSync(io.Discard))

	launcher, wait := newLauncher, waitForRelease
	t.Cleanup(func() {
		newLauncher, waitForRelease = launcher, wait
		observability.ResetForTest()
	})
}

// writeConfig writes a config with every wait shrunk and returns its path
// and the diagnostics directory.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	shots := filepath.Join(dir, "screenshots")
	content := `
logger:
  log_file: ""
target:
  url: "` + testURL + `"
  username: "taro@example.com"
  password: "hunter2"
login:
  field_timeout: 100ms
  load_delay: 0s
  settle_delay: 0s
  ready_timeout: 20ms
resolver:
  shadow_timeout: 100ms
  main_timeout: 100ms
  direct_wait: 20ms
  frame_body_wait: 20ms
  frame_poll_timeout: 50ms
  frame_poll_interval: 10ms
  poll_interval: 10ms
workflow:
  click_settle: 0s
  location_timeout: 50ms
  location_settle: 0s
diagnostics:
  screenshot_dir: "` + filepath.ToSlash(shots) + `"
` + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, shots
}

// fakeSite serves a login form that leads to the attendance widget.
func fakeSite(controls ...*browsertest.Element) *browsertest.Page {
	submit := browsertest.E("input", "id", "Login", "type", "submit")
	login := browsertest.Doc(
		browsertest.E("input", "id", "username"),
		browsertest.E("input", "id", "password"),
		submit,
	)
	attendance := browsertest.Doc(
		browsertest.Host("force-aloha-page", browsertest.IFrame("vfFrameId_1", controls...)),
	)

	page := browsertest.New(browsertest.Doc())
	page.Sites[testURL] = login
	submit.OnClick = func(*browsertest.Element) { page.SetDocument(attendance) }
	return page
}

func usePage(page *browsertest.Page) *config.Config {
	var captured config.Config
	newLauncher = func(cfg *config.Config, _ *zap.Logger) schemas.Launcher {
		captured = *cfg
		return &browsertest.Launcher{Page: page}
	}
	return &captured
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// -- Commands --

func TestVersion(t *testing.T) {
	resetForTest(t)

	out, err := execute(t, "version")
	require.NoError(t, err, "version needs no configuration")
	assert.True(t, strings.HasPrefix(out, "kintai "+Version))

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestClockIn(t *testing.T) {
	resetForTest(t)
	btn := browsertest.Button("btnStInput", "出勤")
	page := fakeSite(btn, browsertest.Button("btnEtInput", "退勤"))
	usePage(page)
	cfgPath, shots := writeConfig(t, "")

	out, err := execute(t, "--config", cfgPath, "in")
	require.NoError(t, err)

	assert.Contains(t, out, "checkin: SUCCESS")
	assert.Contains(t, out, "diagnostics: ")
	assert.Len(t, page.Actions("click"), 2, "login submit and the check-in control")
	assert.Equal(t, 1, page.CloseCount())

	matches, err := filepath.Glob(filepath.Join(shots, "checkin_success_*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestClockInJapaneseAlias(t *testing.T) {
	resetForTest(t)
	usePage(fakeSite(browsertest.Button("btnStInput", "出勤").Disable()))
	cfgPath, _ := writeConfig(t, "")

	out, err := execute(t, "--config", cfgPath, "出勤")
	require.NoError(t, err)
	assert.Contains(t, out, "checkin: ALREADY_DONE")
}

func TestClockOutBeforeClockIn(t *testing.T) {
	resetForTest(t)
	page := fakeSite(browsertest.Button("btnStInput", "出勤"), browsertest.Button("btnEtInput", "退勤"))
	usePage(page)
	cfgPath, _ := writeConfig(t, "")

	out, err := execute(t, "--config", cfgPath, "退勤")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowFailed)
	assert.Contains(t, err.Error(), "NOT_CHECKED_IN")
	assert.Contains(t, out, "checkout: NOT_CHECKED_IN")
	assert.Len(t, page.Actions("click"), 1, "only the login submit")
}

func TestLoginFailureExitsWithError(t *testing.T) {
	resetForTest(t)
	page := fakeSite()
	page.Sites[testURL] = browsertest.Doc()
	usePage(page)
	cfgPath, _ := writeConfig(t, "")

	out, err := execute(t, "--config", cfgPath, "in")
	assert.ErrorIs(t, err, ErrWorkflowFailed)
	assert.Contains(t, out, "checkin: LOGIN_FAILED")
}

// -- Flags --

func TestFlagOverrides(t *testing.T) {
	resetForTest(t)
	page := fakeSite(browsertest.Button("btnStInput", "出勤"))
	captured := usePage(page)
	released := false
	waitForRelease = func(context.Context) { released = true }
	cfgPath, _ := writeConfig(t, "browser:\n  headless: false\n")

	out, err := execute(t, "--config", cfgPath, "--headless", "--keep-open", "in")
	require.NoError(t, err)

	assert.True(t, captured.Browser.Headless)
	assert.False(t, captured.Browser.AutoClose)
	assert.True(t, released)
	assert.Contains(t, out, "Browser left open")
	assert.Equal(t, 1, page.CloseCount(), "closed by the command after release")
}

func TestLocationFlag(t *testing.T) {
	resetForTest(t)
	tab := browsertest.E("li", "role", "tab").WithText("在宅")
	page := fakeSite(tab, browsertest.Button("btnStInput", "出勤"))
	usePage(page)
	cfgPath, _ := writeConfig(t, "")

	_, err := execute(t, "--config", cfgPath, "in", "--location", "在宅")
	require.NoError(t, err)

	clicks := page.Clicks()
	require.Len(t, clicks, 3)
	assert.Same(t, tab, clicks[1].Element)
}

// -- Configuration Errors --

func TestMissingCredentials(t *testing.T) {
	resetForTest(t)
	usePage(fakeSite())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  url: https://x\n"), 0o644))

	_, err := execute(t, "--config", path, "in")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
	assert.Contains(t, err.Error(), "target.username is required")
}

func TestMissingConfigFile(t *testing.T) {
	resetForTest(t)
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "in")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestRejectsArguments(t *testing.T) {
	resetForTest(t)
	cfgPath, _ := writeConfig(t, "")
	_, err := execute(t, "--config", cfgPath, "in", "now")
	assert.Error(t, err)
}
