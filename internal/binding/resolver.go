// Package binding substitutes data-row values into a template's dynamic text
package binding

import (
	"fmt"
	"iter"
	"reflect"
	"strconv"
	"time"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Row is one data record keyed by column header
type Row map[string]interface{}

// Resolved is the outcome of resolving one row of a batch
type Resolved struct {
	Row      int
	Template *certformat.Template
	Err      error
}

// Resolve returns a copy of t with every bound DynamicText element's text
// replaced by the row value. A field missing from the row, or holding nil,
// resolves to the visible placeholder "{Field}". The input template is
// never modified.
func Resolve(t *certformat.Template, row Row) (*certformat.Template, error) {
	next := t.Clone()

	for i := range next.Elements {
		dyn, ok := next.Elements[i].Content.(*certformat.DynamicText)
		if !ok || dyn.BindingField == "" {
			continue
		}

		value, present := row[dyn.BindingField]
		if !present || IsNull(value) {
			dyn.Text = certformat.Placeholder(dyn.BindingField)
			continue
		}

		text, err := Display(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v: %w", dyn.BindingField, err, certformat.ErrRowResolution)
		}
		dyn.Text = text
	}

	return next, nil
}

// ResolveBatch lazily resolves t against each row in order. The sequence
// can be ranged over more than once.
func ResolveBatch(t *certformat.Template, rows []Row) iter.Seq[Resolved] {
	return func(yield func(Resolved) bool) {
		for i, row := range rows {
			resolved, err := Resolve(t, row)
			if !yield(Resolved{Row: i, Template: resolved, Err: err}) {
				return
			}
		}
	}
}

// IsNull reports whether a row value is nil or a nil pointer
func IsNull(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Display converts a scalar row value to the text shown on the certificate.
// Pointers are followed; a null value displays as the empty string.
func Display(value interface{}) (string, error) {
	if IsNull(value) {
		return "", nil
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer {
		return Display(rv.Elem().Interface())
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return formatFloat(v, 64), nil
	case float32:
		return formatFloat(float64(v), 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return formatFloat(rv.Float(), 32), nil
	case reflect.Float64:
		return formatFloat(rv.Float(), 64), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.String:
		return rv.String(), nil
	}

	return "", fmt.Errorf("unsupported value of type %T", value)
}

// formatFloat renders integral values without a fraction: 42.0 -> "42"
func formatFloat(f float64, bits int) string {
	return strconv.FormatFloat(f, 'f', -1, bits)
}
