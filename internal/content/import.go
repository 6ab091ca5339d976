package content

import (
	"context"
	"encoding/json"
	"fmt"

	"draughtsman/internal/domain"
)

// Writer replaces every remote row of a kind.
type Writer interface {
	ReplaceContent(ctx context.Context, kind string, items []domain.ContentItem) error
}

// Import writes each non-empty section of doc to w, replacing what the store
// held for that kind. It returns the number of rows written per kind.
func Import(ctx context.Context, w Writer, doc Document) (map[string]int, error) {
	counts := make(map[string]int)
	steps := []struct {
		kind  string
		items func() ([]domain.ContentItem, error)
	}{
		{domain.ContentPrograms, func() ([]domain.ContentItem, error) { return rows(doc.Programs, programSlug) }},
		{domain.ContentResources, func() ([]domain.ContentItem, error) { return rows(doc.Resources, resourceSlug) }},
		{domain.ContentTestimonials, func() ([]domain.ContentItem, error) { return rows(doc.Testimonials, testimonialSlug) }},
		{domain.ContentShowcase, func() ([]domain.ContentItem, error) { return rows(doc.Showcase, showcaseSlug) }},
	}
	for _, step := range steps {
		items, err := step.items()
		if err != nil {
			return counts, err
		}
		if len(items) == 0 {
			continue
		}
		if err := w.ReplaceContent(ctx, step.kind, items); err != nil {
			return counts, fmt.Errorf("import %s: %w", step.kind, err)
		}
		counts[step.kind] = len(items)
	}
	return counts, nil
}

func rows[T any](items []T, slug func(T) string) ([]domain.ContentItem, error) {
	out := make([]domain.ContentItem, 0, len(items))
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ContentItem{Slug: slug(it), PayloadJSON: string(data)})
	}
	return out, nil
}
