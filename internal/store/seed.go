package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

//go:embed seed/course_completion.json
var courseCompletionJSON []byte

// CourseCompletion returns the built-in sample template
func CourseCompletion() *certformat.Template {
	t, err := certformat.Parse(courseCompletionJSON)
	if err != nil {
		panic(fmt.Sprintf("store: embedded seed template is invalid: %v", err))
	}
	return t
}

// Seed stores the sample template when the store holds no templates.
// It reports whether anything was written.
func Seed(ctx context.Context, s TemplateStore) (bool, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	if _, err := s.Create(ctx, CourseCompletion()); err != nil {
		return false, fmt.Errorf("failed to seed templates: %w", err)
	}
	return true, nil
}
