// Package renderer implements the Template Renderer: given a template
// (an arbitrary JSON value tree) and a record context, it produces a
// payload by deep-copying the template and substituting recognized
// placeholder leaves.
package renderer

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/pkg/types"
)

const (
	placeholderFirstLine  = "$FIRST_LINE"
	placeholderOtherLines = "$OTHER_LINES"
	placeholderTags       = "$TAGS"
	placeholderTagsDict   = "$TAGS_DICT"
	placeholderRePrefix   = "$RE_"
)

// Context is everything the Renderer needs from a flushed record and
// its owning source to substitute placeholders.
type Context struct {
	FirstLine  string
	OtherLines []string
	TagsList   []string
	TagsDict   map[string]string
	Match      *types.Match
}

// Renderer substitutes placeholders into a deep copy of a template. It
// holds no per-record state and is safe for concurrent use by
// multiple Source Workers (though each worker only ever uses its own).
type Renderer struct {
	log *zap.SugaredLogger
}

// New creates a Renderer.
func New(log *zap.SugaredLogger) *Renderer {
	return &Renderer{log: log}
}

// Render deep-copies template and substitutes every string leaf that
// equals a recognized placeholder. template is never mutated.
func (r *Renderer) Render(template interface{}, ctx Context) interface{} {
	return r.rewrite(deepCopy(template), ctx)
}

func (r *Renderer) rewrite(node interface{}, ctx Context) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, val := range v {
			v[key] = r.rewrite(val, ctx)
		}
		return v
	case []interface{}:
		for i, val := range v {
			v[i] = r.rewrite(val, ctx)
		}
		return v
	case string:
		return r.substitute(v, ctx)
	default:
		return v
	}
}

func (r *Renderer) substitute(leaf string, ctx Context) interface{} {
	switch leaf {
	case placeholderFirstLine:
		return ctx.FirstLine
	case placeholderOtherLines:
		if ctx.OtherLines == nil {
			return []string{}
		}
		return ctx.OtherLines
	case placeholderTags:
		if ctx.TagsList == nil {
			return []string{}
		}
		return ctx.TagsList
	case placeholderTagsDict:
		if ctx.TagsDict == nil {
			return map[string]string{}
		}
		return ctx.TagsDict
	}

	if strings.HasPrefix(leaf, placeholderRePrefix) {
		return r.substituteCapture(leaf, ctx)
	}
	return leaf
}

// substituteCapture handles $RE_<n>_INT / $RE_<n>_FLOAT / $RE_<n>_STR.
// An out-of-range group or non-numeric coercion is logged and the leaf
// is returned unchanged, per the spec's PlaceholderSubstitution error
// kind; a malformed form (wrong part count, non-numeric group index,
// unknown type suffix) is returned unchanged without logging.
func (r *Renderer) substituteCapture(leaf string, ctx Context) interface{} {
	parts := strings.Split(leaf, "_")
	if len(parts) != 3 {
		return leaf
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return leaf
	}
	raw, ok := ctx.Match.Group(n)
	if !ok {
		r.log.Errorw("renderer: no such capture group", "group", n, "placeholder", leaf)
		return leaf
	}

	switch parts[2] {
	case "INT":
		val, err := strconv.Atoi(raw)
		if err != nil {
			r.log.Errorw("renderer: capture group is not an integer", "group", n, "value", raw)
			return leaf
		}
		return val
	case "FLOAT":
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			r.log.Errorw("renderer: capture group is not a float", "group", n, "value", raw)
			return leaf
		}
		return val
	case "STR":
		return raw
	default:
		return leaf
	}
}

// deepCopy clones a JSON value tree produced by encoding/json.Unmarshal
// into interface{} (so only map[string]interface{}, []interface{} and
// scalars ever appear).
func deepCopy(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		cp := make(map[string]interface{}, len(v))
		for key, val := range v {
			cp[key] = deepCopy(val)
		}
		return cp
	case []interface{}:
		cp := make([]interface{}, len(v))
		for i, val := range v {
			cp[i] = deepCopy(val)
		}
		return cp
	default:
		return v
	}
}
