package renderer

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/pkg/types"
)

func testRenderer() *Renderer {
	return New(zap.NewNop().Sugar())
}

// TestRender_BasicPlaceholders covers the four non-capture placeholders.
func TestRender_BasicPlaceholders(t *testing.T) {
	r := testRenderer()
	template := map[string]interface{}{
		"message": "$FIRST_LINE",
		"extra":   "$OTHER_LINES",
		"tags":    "$TAGS",
		"fields":  "$TAGS_DICT",
		"literal": "unchanged",
	}
	ctx := Context{
		FirstLine:  "boom at line 1",
		OtherLines: []string{"trace 1", "trace 2"},
		TagsList:   []string{"env:prod", "svc:api"},
		TagsDict:   map[string]string{"env": "prod", "svc": "api"},
	}

	got := r.Render(template, ctx).(map[string]interface{})

	if got["message"] != ctx.FirstLine {
		t.Errorf("message = %v, want %v", got["message"], ctx.FirstLine)
	}
	if !reflect.DeepEqual(got["extra"], ctx.OtherLines) {
		t.Errorf("extra = %v, want %v", got["extra"], ctx.OtherLines)
	}
	if !reflect.DeepEqual(got["tags"], ctx.TagsList) {
		t.Errorf("tags = %v, want %v", got["tags"], ctx.TagsList)
	}
	if !reflect.DeepEqual(got["fields"], ctx.TagsDict) {
		t.Errorf("fields = %v, want %v", got["fields"], ctx.TagsDict)
	}
	if got["literal"] != "unchanged" {
		t.Errorf("literal = %v, want unchanged", got["literal"])
	}
}

// TestRender_EmptyOtherLinesAndTags verifies nil collections substitute
// to empty collections, not nil, so the JSON payload always carries the
// key with an array/object value.
func TestRender_EmptyOtherLinesAndTags(t *testing.T) {
	r := testRenderer()
	template := map[string]interface{}{
		"extra":  "$OTHER_LINES",
		"tags":   "$TAGS",
		"fields": "$TAGS_DICT",
	}
	got := r.Render(template, Context{}).(map[string]interface{})

	if s, ok := got["extra"].([]string); !ok || len(s) != 0 {
		t.Errorf("extra = %#v, want empty []string", got["extra"])
	}
	if s, ok := got["tags"].([]string); !ok || len(s) != 0 {
		t.Errorf("tags = %#v, want empty []string", got["tags"])
	}
	if m, ok := got["fields"].(map[string]string); !ok || len(m) != 0 {
		t.Errorf("fields = %#v, want empty map[string]string", got["fields"])
	}
}

// TestRender_CaptureGroups covers $RE_n_INT/FLOAT/STR substitution.
func TestRender_CaptureGroups(t *testing.T) {
	r := testRenderer()
	ctx := Context{Match: types.NewMatch([]string{"full match", "42", "3.14", "worker-7"})}

	testCases := []struct {
		name    string
		leaf    string
		want    interface{}
	}{
		{"int", "$RE_1_INT", 42},
		{"float", "$RE_2_FLOAT", 3.14},
		{"str", "$RE_3_STR", "worker-7"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Render(map[string]interface{}{"v": tc.leaf}, ctx).(map[string]interface{})
			if got["v"] != tc.want {
				t.Errorf("got %v (%T), want %v (%T)", got["v"], got["v"], tc.want, tc.want)
			}
		})
	}
}

// TestRender_CaptureGroupFailureModes verifies every malformed or
// out-of-range capture placeholder leaves the leaf untouched rather
// than panicking or substituting a zero value.
func TestRender_CaptureGroupFailureModes(t *testing.T) {
	r := testRenderer()
	ctx := Context{Match: types.NewMatch([]string{"full", "not-a-number"})}

	testCases := []string{
		"$RE_1_INT",   // non-numeric capture for INT
		"$RE_9_STR",   // out-of-range group
		"$RE_abc_STR", // non-numeric group index
		"$RE_1",       // malformed, missing type suffix
		"$RE_1_WHAT",  // unknown type suffix
	}

	for _, leaf := range testCases {
		t.Run(leaf, func(t *testing.T) {
			got := r.Render(map[string]interface{}{"v": leaf}, ctx).(map[string]interface{})
			if got["v"] != leaf {
				t.Errorf("got %v, want unchanged placeholder %v", got["v"], leaf)
			}
		})
	}
}

// TestRender_NoMatchCaptureGroup verifies a nil Match (single-line mode
// with no capture groups) fails the same way as an out-of-range group.
func TestRender_NoMatchCaptureGroup(t *testing.T) {
	r := testRenderer()
	got := r.Render(map[string]interface{}{"v": "$RE_1_STR"}, Context{}).(map[string]interface{})
	if got["v"] != "$RE_1_STR" {
		t.Errorf("got %v, want unchanged placeholder", got["v"])
	}
}

// TestRender_DoesNotMutateTemplate ensures the same template value can
// be rendered repeatedly with different contexts without leaking state
// between renders — Render must deep-copy before rewriting.
func TestRender_DoesNotMutateTemplate(t *testing.T) {
	r := testRenderer()
	template := map[string]interface{}{
		"message": "$FIRST_LINE",
		"nested":  map[string]interface{}{"tags": "$TAGS"},
	}

	_ = r.Render(template, Context{FirstLine: "first render", TagsList: []string{"a"}})
	_ = r.Render(template, Context{FirstLine: "second render", TagsList: []string{"b"}})

	if template["message"] != "$FIRST_LINE" {
		t.Errorf("template mutated: message = %v", template["message"])
	}
	nested := template["nested"].(map[string]interface{})
	if nested["tags"] != "$TAGS" {
		t.Errorf("template mutated: nested.tags = %v", nested["tags"])
	}
}

// TestRender_NestedArrays verifies substitution recurses through
// slices as well as maps.
func TestRender_NestedArrays(t *testing.T) {
	r := testRenderer()
	template := map[string]interface{}{
		"items": []interface{}{
			"$FIRST_LINE",
			map[string]interface{}{"inner": "$RE_1_INT"},
		},
	}
	ctx := Context{FirstLine: "hello", Match: types.NewMatch([]string{"full", "7"})}

	got := r.Render(template, ctx).(map[string]interface{})
	items := got["items"].([]interface{})

	if items[0] != "hello" {
		t.Errorf("items[0] = %v, want hello", items[0])
	}
	inner := items[1].(map[string]interface{})
	if inner["inner"] != 7 {
		t.Errorf("items[1].inner = %v, want 7", inner["inner"])
	}
}
