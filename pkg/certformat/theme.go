package certformat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Theme is a named colour and typography preset
type Theme struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	BackgroundColor string `json:"backgroundColor" yaml:"backgroundColor"`
	PrimaryColor    string `json:"primaryColor" yaml:"primaryColor"`
	SecondaryColor  string `json:"secondaryColor" yaml:"secondaryColor"`
	FontFamily      string `json:"fontFamily" yaml:"fontFamily"`
}

// DefaultThemes returns the built-in theme set
func DefaultThemes() []Theme {
	return []Theme{
		{ID: "classic", Name: "Classic", BackgroundColor: "#f9fafb", PrimaryColor: "#111827", SecondaryColor: "#4b5563", FontFamily: "Outfit"},
		{ID: "navy", Name: "Navy", BackgroundColor: "#eff6ff", PrimaryColor: "#1e3a8a", SecondaryColor: "#3b82f6", FontFamily: "Georgia"},
		{ID: "emerald", Name: "Emerald", BackgroundColor: "#ecfdf5", PrimaryColor: "#065f46", SecondaryColor: "#10b981", FontFamily: "Inter"},
		{ID: "gold", Name: "Gold", BackgroundColor: "#fffbeb", PrimaryColor: "#78350f", SecondaryColor: "#d97706", FontFamily: "Times New Roman"},
	}
}

// LoadThemes reads a YAML theme catalogue. The file holds a top-level
// "themes" list.
func LoadThemes(path string) ([]Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes file: %w", err)
	}

	var doc struct {
		Themes []Theme `yaml:"themes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse themes file: %w", err)
	}

	seen := make(map[string]bool)
	for i, th := range doc.Themes {
		if th.ID == "" {
			return nil, fmt.Errorf("themes[%d]: 'id' is required", i)
		}
		if seen[th.ID] {
			return nil, fmt.Errorf("themes[%d]: duplicate theme id '%s'", i, th.ID)
		}
		seen[th.ID] = true
	}

	return doc.Themes, nil
}

// FindTheme looks a theme up by id
func FindTheme(themes []Theme, id string) (Theme, bool) {
	for _, th := range themes {
		if th.ID == id {
			return th, true
		}
	}
	return Theme{}, false
}

// ApplyTheme returns a copy of t restyled with th. Dynamic text takes the
// primary colour, static text the secondary colour, and the bottom-most
// shape covering the whole canvas takes the background colour.
func ApplyTheme(t *Template, th Theme) *Template {
	next := t.Clone()
	next.BaseThemeID = th.ID

	bgIdx := -1
	bgZ := 0
	for i, e := range next.Elements {
		if _, ok := e.Content.(*Shape); !ok {
			continue
		}
		if e.X <= 0 && e.Y <= 0 && e.Width >= next.Width && e.Height >= next.Height {
			if bgIdx < 0 || e.Z() < bgZ {
				bgIdx, bgZ = i, e.Z()
			}
		}
	}

	for i := range next.Elements {
		switch c := next.Elements[i].Content.(type) {
		case *DynamicText:
			c.Color = th.PrimaryColor
			if th.FontFamily != "" {
				c.FontFamily = th.FontFamily
			}
		case *StaticText:
			c.Color = th.SecondaryColor
			if th.FontFamily != "" {
				c.FontFamily = th.FontFamily
			}
		case *Shape:
			if i == bgIdx {
				c.BackgroundColor = th.BackgroundColor
				c.Fill = th.BackgroundColor
			}
		}
	}

	return next
}
