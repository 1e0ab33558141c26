package certformat

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse parses a template document from a byte slice
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	if t.Width == 0 && t.Height == 0 {
		t.Width, t.Height = DefaultWidth, DefaultHeight
	}
	if t.Orientation == "" {
		t.Orientation = Landscape
	}
	if t.Elements == nil {
		t.Elements = []Element{}
	}

	// Elements stored without a z-index take their position
	for i := range t.Elements {
		if t.Elements[i].ZIndex == nil {
			t.Elements[i].ZIndex = intPtr(i)
		}
	}

	if err := Validate(&t); err != nil {
		return nil, err
	}

	return &t, nil
}

// ParseFile parses a template document from disk
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	return Parse(data)
}

// ToJSON converts a Template to JSON bytes
func (t *Template) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// SaveToFile saves a Template to a file
func (t *Template) SaveToFile(path string) error {
	data, err := t.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
