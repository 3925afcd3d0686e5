package resolver

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/browser/browsertest"
)

func ref(id, text, value string) schemas.ElementRef {
	return schemas.ElementRef{Tag: "INPUT", Attributes: map[string]string{"id": id}, Text: text, Value: value}
}

func TestLabelMatches(t *testing.T) {
	testCases := []struct {
		name  string
		el    schemas.ElementRef
		label string
		want  bool
	}{
		{"ValueExact", ref("", "", "出勤"), "出勤", true},
		{"TextExact", ref("", "出勤", ""), "出勤", true},
		{"TrimmedText", ref("", "\n 出勤\t", ""), "出勤", true},
		{"TrimmedLabel", ref("", "出勤", ""), " 出勤 ", true},
		{"Superstring", ref("", "出勤する", ""), "出勤", false},
		{"Substring", ref("", "出", ""), "出勤", false},
		{"EmptyLabel", ref("", "", ""), "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LabelMatches(tc.el, tc.label))
		})
	}
}

func TestMatchControl(t *testing.T) {
	candidates := []schemas.ElementRef{
		ref("a", "", "出勤"),
		ref("btnStInput", "", "Clock in"),
	}

	el, how, ok := matchControl(candidates, schemas.TargetSpecifier{Label: "出勤", ID: "btnStInput"})
	assert.True(t, ok)
	assert.Equal(t, byID, how, "the identifier wins over the label")
	if diff := cmp.Diff(candidates[1], el); diff != "" {
		t.Errorf("unexpected match (-want +got):\n%s", diff)
	}

	el, how, ok = matchControl(candidates, schemas.TargetSpecifier{Label: "出勤"})
	assert.True(t, ok)
	assert.Equal(t, byLabel, how)
	assert.Equal(t, "a", el.ID())

	_, _, ok = matchControl(candidates, schemas.TargetSpecifier{Label: "退勤", ID: "btnEtInput"})
	assert.False(t, ok)
}

func TestDirectSelector(t *testing.T) {
	assert.Equal(t, `.punch`, directSelector(schemas.TargetSpecifier{ID: "x", Selector: ".punch"}))
	assert.Equal(t, `[id="btnStInput"]`, directSelector(schemas.TargetSpecifier{ID: "btnStInput"}))
	assert.Equal(t, "", directSelector(schemas.TargetSpecifier{Label: "出勤"}))
	assert.Equal(t, `[id="a\"b"]`, idSelector(`a"b`))
	assert.Equal(t, `[id="a\\b"]`, idSelector(`a\b`))
}

func TestIDSelectorFindsPunctuatedIDs(t *testing.T) {
	ctx := context.Background()
	for _, id := range []string{"a,b", "1st", `say"hi"`, "j_id0:form:btn"} {
		t.Run(id, func(t *testing.T) {
			page := browsertest.New(browsertest.Doc(browsertest.Button(id, "出勤")))
			el, ok, err := first(ctx, page, nil, idSelector(id))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, id, el.ID())
		})
	}
}
