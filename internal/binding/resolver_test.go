package binding

import (
	"errors"
	"testing"
	"time"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

func certificateTemplate(t *testing.T) *certformat.Template {
	t.Helper()
	ids := certformat.SequenceGenerator("el")
	tpl := certformat.NewTemplate("tpl", "Course Completion")

	title := certformat.NewElement(certformat.KindStaticText, ids)
	title.Content.(*certformat.StaticText).Text = "Certificate of Completion"

	var err error
	for _, e := range []certformat.Element{
		title,
		certformat.NewDynamicText("Name", ids),
		certformat.NewDynamicText("Course", ids),
		certformat.NewElement(certformat.KindShape, ids),
	} {
		tpl, err = certformat.AddElement(tpl, e)
		if err != nil {
			t.Fatalf("Failed to build template: %v", err)
		}
	}
	return tpl
}

func texts(tpl *certformat.Template) []string {
	var out []string
	for _, e := range tpl.Elements {
		if s, ok := e.Text(); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestResolve(t *testing.T) {
	tpl := certificateTemplate(t)

	tests := []struct {
		name   string
		row    Row
		name2  string
		course string
	}{
		{"all fields", Row{"Name": "Ada", "Course": "Math"}, "Ada", "Math"},
		{"missing field", Row{"Name": "Grace"}, "Grace", "{Course}"},
		{"nil value", Row{"Name": nil, "Course": "Physics"}, "{Name}", "Physics"},
		{"empty row", Row{}, "{Name}", "{Course}"},
		{"number", Row{"Name": "Alan", "Course": 101.0}, "Alan", "101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := Resolve(tpl, tt.row)
			if err != nil {
				t.Fatalf("Failed to resolve: %v", err)
			}

			got := texts(resolved)
			if got[0] != "Certificate of Completion" {
				t.Errorf("Expected static text untouched, got %q", got[0])
			}
			if got[1] != tt.name2 {
				t.Errorf("Expected name %q, got %q", tt.name2, got[1])
			}
			if got[2] != tt.course {
				t.Errorf("Expected course %q, got %q", tt.course, got[2])
			}
		})
	}
}

func TestResolve_DoesNotMutateTemplate(t *testing.T) {
	tpl := certificateTemplate(t)

	if _, err := Resolve(tpl, Row{"Name": "Ada", "Course": "Math"}); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	got := texts(tpl)
	if got[1] != "{Name}" || got[2] != "{Course}" {
		t.Errorf("Expected placeholders preserved, got %v", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	tpl := certificateTemplate(t)
	row := Row{"Name": "Ada", "Course": "Math"}

	a, _ := Resolve(tpl, row)
	b, _ := Resolve(tpl, row)

	ja, _ := a.ToJSON()
	jb, _ := b.ToJSON()
	if string(ja) != string(jb) {
		t.Error("Expected identical output for identical input")
	}
}

func TestResolve_NonScalarValue(t *testing.T) {
	tpl := certificateTemplate(t)

	_, err := Resolve(tpl, Row{"Name": map[string]interface{}{"first": "Ada"}})
	if !errors.Is(err, certformat.ErrRowResolution) {
		t.Errorf("Expected ErrRowResolution, got %v", err)
	}
}

func TestResolve_PreservesGeometry(t *testing.T) {
	tpl := certificateTemplate(t)
	resolved, _ := Resolve(tpl, Row{"Name": "Ada"})

	for i := range tpl.Elements {
		a, b := tpl.Elements[i], resolved.Elements[i]
		if a.ID != b.ID || a.X != b.X || a.Y != b.Y || a.Z() != b.Z() {
			t.Errorf("Element %d geometry changed: %+v -> %+v", i, a, b)
		}
	}
}

func TestResolveBatch(t *testing.T) {
	tpl := certificateTemplate(t)
	rows := []Row{
		{"Name": "Ada", "Course": "Math"},
		{"Name": "Grace"},
		{"Name": []string{"bad"}},
	}

	var results []Resolved
	for r := range ResolveBatch(tpl, rows) {
		results = append(results, r)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Row != i {
			t.Errorf("Expected row index %d, got %d", i, r.Row)
		}
	}
	if got := texts(results[0].Template); got[1] != "Ada" || got[2] != "Math" {
		t.Errorf("Row 0: expected Ada/Math, got %v", got)
	}
	if got := texts(results[1].Template); got[1] != "Grace" || got[2] != "{Course}" {
		t.Errorf("Row 1: expected Grace/{Course}, got %v", got)
	}
	if !errors.Is(results[2].Err, certformat.ErrRowResolution) {
		t.Errorf("Row 2: expected ErrRowResolution, got %v", results[2].Err)
	}

	// Restartable
	count := 0
	for range ResolveBatch(tpl, rows) {
		count++
	}
	if count != 3 {
		t.Errorf("Expected second pass to yield 3 results, got %d", count)
	}
}

func TestResolveBatch_EarlyStop(t *testing.T) {
	tpl := certificateTemplate(t)
	rows := []Row{{"Name": "a"}, {"Name": "b"}, {"Name": "c"}}

	count := 0
	for range ResolveBatch(tpl, rows) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected 1 iteration, got %d", count)
	}
}

type grade int

type score float64

type flag bool

func (g grade) String() string { return "Grade " + string(rune('A'+int(g))) }

func TestDisplay(t *testing.T) {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	name := "Ada"

	tests := []struct {
		name    string
		value   interface{}
		want    string
		wantErr bool
	}{
		{"string", "Ada", "Ada", false},
		{"integral float", 42.0, "42", false},
		{"fractional float", 3.75, "3.75", false},
		{"int", 7, "7", false},
		{"uint", uint8(9), "9", false},
		{"bool", true, "true", false},
		{"time", date, "2025-03-14T00:00:00Z", false},
		{"stringer", grade(1), "Grade B", false},
		{"named float", score(9.5), "9.5", false},
		{"named bool", flag(true), "true", false},
		{"pointer", &name, "Ada", false},
		{"nil pointer", (*string)(nil), "", false},
		{"nil stringer pointer", (*time.Time)(nil), "", false},
		{"map", map[string]string{}, "", true},
		{"slice", []int{1}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Display(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Display() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolve_NilPointerIsPlaceholder(t *testing.T) {
	tpl := certformat.NewTemplate("tpl", "Test")
	tpl, err := certformat.AddElement(tpl, certformat.NewDynamicText("Name", certformat.SequenceGenerator("el")))
	if err != nil {
		t.Fatalf("Failed to add element: %v", err)
	}

	resolved, err := Resolve(tpl, Row{"Name": (*string)(nil)})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	e, _ := certformat.FindElement(resolved, "el-1")
	if text, _ := e.Text(); text != "{Name}" {
		t.Errorf("Expected {Name}, got %q", text)
	}
}

func TestIsNull(t *testing.T) {
	s := "x"
	tests := []struct {
		value interface{}
		want  bool
	}{
		{nil, true},
		{(*string)(nil), true},
		{&s, false},
		{"", false},
		{0, false},
	}
	for _, tt := range tests {
		if got := IsNull(tt.value); got != tt.want {
			t.Errorf("IsNull(%#v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
