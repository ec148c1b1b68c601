package flow

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// View is a read-only snapshot of the application state addressed by dot
// separated field paths such as "founder.fullName".
type View struct {
	doc []byte
}

// NewView wraps a JSON document.
func NewView(doc []byte) View {
	return View{doc: doc}
}

// ViewOf marshals v into a View.
func ViewOf(v interface{}) (View, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return View{}, err
	}
	return View{doc: doc}, nil
}

// Lookup resolves a field path.
func (v View) Lookup(path string) gjson.Result {
	return gjson.GetBytes(v.doc, path)
}

// String resolves a field path to its string form.
func (v View) String(path string) string {
	return v.Lookup(path).String()
}

// Has reports whether the value at path is non-empty.
func (v View) Has(path string) bool {
	return NonEmpty(v.Lookup(path))
}

// Bytes returns the underlying document.
func (v View) Bytes() []byte {
	return v.doc
}

// NonEmpty reports whether r holds a usable value: a non-blank string, a
// number, true, or a non-empty array or object.
func NonEmpty(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.String:
		return strings.TrimSpace(r.Str) != ""
	case gjson.Number, gjson.True:
		return true
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	default:
		return false
	}
}
