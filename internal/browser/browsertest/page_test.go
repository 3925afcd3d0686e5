package browsertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser"
)

func TestSelectorMatching(t *testing.T) {
	ctx := context.Background()
	btn := E("input", "type", "button", "id", "btnStInput", "class", "slds-button primary", "name", "vfFrameId_17")
	p := New(Doc(E("div", "class", "slds").Add(E("span").Add(btn))))

	testCases := []struct {
		selector string
		match    bool
	}{
		{"input", true},
		{"INPUT", true},
		{"button", false},
		{"#btnStInput", true},
		{"input#btnStInput", true},
		{"#other", false},
		{".primary", true},
		{".slds-button.primary", true},
		{"[type]", true},
		{`[type="button"]`, true},
		{`input[type='submit']`, false},
		{`[name^="vfFrameId"]`, true},
		{`[name*="Frame"]`, true},
		{`[name$="_17"]`, true},
		{`button, input[type="button"]`, true},
		{"*", true},
		{"div.slds input", true},
		{"div > input", false},
		{"span > input", true},
		{"input:not([disabled])", true},
		{"input[disabled]", false},
	}
	for _, tc := range testCases {
		t.Run(tc.selector, func(t *testing.T) {
			found, err := p.FindElements(ctx, nil, tc.selector)
			require.NoError(t, err)
			var hit bool
			for _, el := range found {
				hit = hit || el.Handle == btn
			}
			assert.Equal(t, tc.match, hit)
		})
	}

	t.Run("CommaInsideQuotes", func(t *testing.T) {
		page := New(Doc(Button("a,b", "x"), Button("a", "y")))
		found, err := page.FindElements(ctx, nil, `[id="a,b"]`)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "a,b", found[0].ID())
	})

	for _, bad := range []string{"[type", "a,,b", "input:bogus-pseudo"} {
		_, err := p.FindElements(ctx, nil, bad)
		assert.Error(t, err, bad)
	}
}

func TestFindElementsRespectsBoundaries(t *testing.T) {
	ctx := context.Background()
	inner := Button("btnStInput", "出勤")
	frame := IFrame("vfFrameId_1", inner)
	host := Host("force-aloha-page", frame)
	top := Button("top", "Top")
	p := New(Doc(E("div").Add(top), host))

	found, err := p.FindElements(ctx, nil, "input")
	require.NoError(t, err)
	require.Len(t, found, 1, "shadow and frame content are not part of the light tree")
	assert.Equal(t, "top", found[0].ID())

	root, err := p.ShadowRoot(ctx, mustFind(t, p, "force-aloha-page"))
	require.NoError(t, err)
	require.NotNil(t, root)

	frames, err := p.FindElements(ctx, root, "iframe")
	require.NoError(t, err)
	require.Len(t, frames, 1)

	require.NoError(t, p.SwitchToFrame(ctx, frames[0]))
	assert.Equal(t, 1, p.FrameDepth())

	found, err = p.FindElements(ctx, nil, "#btnStInput")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "出勤", found[0].Value)

	require.NoError(t, p.SwitchToTopDocument(ctx))
	assert.Equal(t, 0, p.FrameDepth())
}

func TestAppearAfter(t *testing.T) {
	ctx := context.Background()
	btn := Button("late", "Late")
	btn.AppearAfter = 2
	p := New(Doc(btn))

	for i := 0; i < 2; i++ {
		found, err := p.FindElements(ctx, nil, "#late")
		require.NoError(t, err)
		assert.Empty(t, found)
	}
	found, err := p.FindElements(ctx, nil, "#late")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestInteractions(t *testing.T) {
	ctx := context.Background()
	btn := Button("go", "Go").DisableOnClick()
	covered := Button("covered", "Covered")
	covered.NotInteractable = true
	field := E("input", "id", "username")
	p := New(Doc(btn, covered, field))

	require.NoError(t, p.Click(ctx, mustFind(t, p, "#go")))
	_, disabled, err := p.ReadAttribute(ctx, mustFind(t, p, "#go"), "disabled")
	require.NoError(t, err)
	assert.True(t, disabled)

	err = p.Click(ctx, mustFind(t, p, "#covered"))
	assert.ErrorIs(t, err, browser.ErrNotInteractable)
	require.NoError(t, p.ScriptClick(ctx, mustFind(t, p, "#covered")))

	require.NoError(t, p.Type(ctx, mustFind(t, p, "#username"), "taro"))
	assert.Equal(t, "taro", field.Value)

	clicks := p.Clicks()
	require.Len(t, clicks, 2)
	assert.Equal(t, "click", clicks[0].Kind)
	assert.Equal(t, "script-click", clicks[1].Kind)
	assert.Len(t, p.Actions("type"), 1)
}

func TestSwitchToFrameRejectsNonFrames(t *testing.T) {
	p := New(Doc(E("div", "id", "x")))
	err := p.SwitchToFrame(context.Background(), mustFind(t, p, "#x"))
	assert.ErrorIs(t, err, browser.ErrFrameUnavailable)
}

func TestNavigateAndScripts(t *testing.T) {
	ctx := context.Background()
	login := Doc(E("input", "id", "username"))
	p := New(nil)
	p.Sites["https://example.com/login"] = login
	p.OnScript = func(script string, depth int) (interface{}, error) {
		return map[string]interface{}{"state": "complete", "depth": depth}, nil
	}

	require.NoError(t, p.Navigate(ctx, "https://example.com/login"))
	assert.Equal(t, []string{"https://example.com/login"}, p.Navigations())
	mustFind(t, p, "#username")

	var res struct {
		State string `json:"state"`
		Depth int    `json:"depth"`
	}
	require.NoError(t, p.ExecuteScript(ctx, "function() {}", &res))
	assert.Equal(t, "complete", res.State)
	assert.Equal(t, 0, res.Depth)

	shot, err := p.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, PNG, shot)
}

func TestLauncher(t *testing.T) {
	p := New(nil)
	l := &Launcher{Page: p}
	bc, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Same(t, p, bc)
	assert.Equal(t, 1, l.Launches())

	_, err = (&Launcher{}).Launch(context.Background())
	assert.ErrorIs(t, err, ErrNoPage)
}

func mustFind(t *testing.T, p *Page, selector string) schemas.ElementRef {
	t.Helper()
	found, err := p.FindElements(context.Background(), nil, selector)
	require.NoError(t, err)
	require.NotEmpty(t, found, selector)
	return found[0]
}

func TestRefsCarryTrimmedText(t *testing.T) {
	p := New(Doc(E("button").WithText("\n 出勤 "), E("input").WithValue(" 退勤\t")))
	found, err := p.FindElements(context.Background(), nil, "button, input")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "出勤", found[0].Text)
	assert.Equal(t, "退勤", found[1].Value)
}
