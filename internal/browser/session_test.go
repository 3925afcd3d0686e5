// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

func TestQuadCenter(t *testing.T) {
	x, y, ok := quadCenter(dom.Quad{10, 20, 30, 20, 30, 40, 10, 40})
	require.True(t, ok)
	assert.Equal(t, 20.0, x)
	assert.Equal(t, 30.0, y)

	_, _, ok = quadCenter(dom.Quad{1, 2, 3})
	assert.False(t, ok)
}

func TestHandleOf(t *testing.T) {
	id, err := handleOf(schemas.ElementRef{Tag: "INPUT", Handle: runtime.RemoteObjectID("obj-1")})
	require.NoError(t, err)
	assert.Equal(t, runtime.RemoteObjectID("obj-1"), id)

	_, err = handleOf(schemas.ElementRef{Tag: "INPUT", Handle: "obj-1"})
	assert.ErrorIs(t, err, ErrStaleElement)

	_, err = handleOf(schemas.ElementRef{Tag: "INPUT"})
	assert.ErrorIs(t, err, ErrStaleElement)
}

func TestScriptBuilders(t *testing.T) {
	assert.Equal(t, `"a\"b"`, jsonEncode(`a"b`))
	assert.Contains(t, querySelectorAllJS(`input[value="出勤"]`), `this.querySelectorAll("input[value=\"出勤\"]")`)
	assert.Contains(t, indexJS(3), "this[3]")
	assert.Contains(t, readAttributeJS("disabled"), `this.hasAttribute("disabled")`)
	assert.Contains(t, setValueJS("taro"), `this.value = "taro"`)
}

func TestDecode(t *testing.T) {
	var descs []elementDescription
	obj := &runtime.RemoteObject{Value: []byte(`[{"tag":"INPUT","attrs":{"id":"btnStInput"},"text":"","value":"出勤"}]`)}
	require.NoError(t, decode(obj, &descs))
	require.Len(t, descs, 1)
	assert.Equal(t, "btnStInput", descs[0].Attrs["id"])
	assert.Equal(t, "出勤", descs[0].Value)

	var untouched = "keep"
	require.NoError(t, decode(&runtime.RemoteObject{}, &untouched))
	assert.Equal(t, "keep", untouched)
	require.NoError(t, decode(nil, &untouched))
	require.NoError(t, decode(obj, nil))
}

func TestElementDescriptionRef(t *testing.T) {
	d := elementDescription{Tag: "BUTTON", Attrs: map[string]string{"id": "x"}, Text: "\n  出勤 \t", Value: " 出勤 "}
	ref := d.ref("obj-7")
	assert.Equal(t, "出勤", ref.Text)
	assert.Equal(t, "出勤", ref.Value)
	assert.Equal(t, runtime.RemoteObjectID("obj-7"), ref.Handle)
	assert.Contains(t, describeElementsJS, "text.trim()")
}

func TestWorldCache(t *testing.T) {
	var w worldCache
	_, ok := w.get("frame-1")
	assert.False(t, ok, "the zero value is empty")

	w.put("frame-1", "doc-1")
	w.put("frame-2", "doc-2")
	doc, ok := w.get("frame-1")
	require.True(t, ok)
	assert.Equal(t, runtime.RemoteObjectID("doc-1"), doc)

	w.drop("frame-1")
	_, ok = w.get("frame-1")
	assert.False(t, ok)
	_, ok = w.get("frame-2")
	assert.True(t, ok)

	w.reset()
	_, ok = w.get("frame-2")
	assert.False(t, ok)
}

func TestSwitchToTopDocumentForgetsFrameWorlds(t *testing.T) {
	s := NewSession(context.Background(), nil, nil, config.BrowserConfig{}, zaptest.NewLogger(t))
	s.worlds.put("frame-1", "doc-1")
	s.frames = append(s.frames, "frame-1")

	require.NoError(t, s.SwitchToTopDocument(context.Background()))
	_, ok := s.worlds.get("frame-1")
	assert.False(t, ok)
	assert.Empty(t, s.frames)
}

func TestSessionRejectsForeignRefs(t *testing.T) {
	s := NewSession(context.Background(), nil, nil, config.BrowserConfig{}, zaptest.NewLogger(t))
	foreign := schemas.ElementRef{Tag: "IFRAME", Handle: 42}

	assert.ErrorIs(t, s.SwitchToFrame(context.Background(), foreign), ErrStaleElement)
	assert.ErrorIs(t, s.Click(context.Background(), foreign), ErrStaleElement)
	_, err := s.ShadowRoot(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrStaleElement)
	_, _, err = s.ReadAttribute(context.Background(), foreign, "disabled")
	assert.ErrorIs(t, err, ErrStaleElement)
	_, err = s.FindElements(context.Background(), &foreign, "input")
	assert.ErrorIs(t, err, ErrStaleElement)
}

func TestSwitchToFrameRequiresFrameElement(t *testing.T) {
	s := NewSession(context.Background(), nil, nil, config.BrowserConfig{}, zaptest.NewLogger(t))
	div := schemas.ElementRef{Tag: "DIV", Handle: runtime.RemoteObjectID("obj-1")}
	assert.ErrorIs(t, s.SwitchToFrame(context.Background(), div), ErrFrameUnavailable)
}
