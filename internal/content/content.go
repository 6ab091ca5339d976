// Package content serves the training catalog. Reads go to the remote store
// first and fall back to the fixtures bundled with the binary.
package content

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"draughtsman/internal/domain"
	"draughtsman/internal/metrics"
	"draughtsman/internal/repo"
)

// ErrNotFound is returned when a slug exists in neither tier.
var ErrNotFound = errors.New("content not found")

// Source names the tier that answered a read.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceFixture Source = "fixture"
)

type Listing[T any] struct {
	Items  []T    `json:"items"`
	Source Source `json:"source"`
}

type Item[T any] struct {
	Item   T      `json:"item"`
	Source Source `json:"source"`
}

// Store is the remote tier.
type Store interface {
	ListContent(ctx context.Context, kind string) ([]domain.ContentItem, error)
	GetContent(ctx context.Context, kind, slug string) (domain.ContentItem, error)
}

// Document is the YAML layout of fixtures and import files.
type Document struct {
	Instructors  []domain.Instructor       `yaml:"instructors"`
	Programs     []domain.TrainingProgram  `yaml:"programs"`
	Resources    []domain.Resource         `yaml:"resources"`
	Testimonials []domain.Testimonial      `yaml:"testimonials"`
	Showcase     []domain.ShowcaseActivity `yaml:"showcase"`
}

//go:embed fixtures/catalog.yml
var fixtureYAML []byte

var (
	fixturesOnce sync.Once
	fixtures     Document
	fixturesErr  error
)

// Fixtures returns the bundled catalog.
func Fixtures() (Document, error) {
	fixturesOnce.Do(func() {
		fixtures, fixturesErr = ParseDocument(fixtureYAML)
	})
	return fixtures, fixturesErr
}

// ParseDocument decodes a catalog document and checks that slugs are set and
// unique per kind.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	if err := checkSlugs(domain.ContentPrograms, doc.Programs, programSlug); err != nil {
		return Document{}, err
	}
	if err := checkSlugs(domain.ContentResources, doc.Resources, resourceSlug); err != nil {
		return Document{}, err
	}
	if err := checkSlugs(domain.ContentTestimonials, doc.Testimonials, testimonialSlug); err != nil {
		return Document{}, err
	}
	if err := checkSlugs(domain.ContentShowcase, doc.Showcase, showcaseSlug); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func checkSlugs[T any](kind string, items []T, slug func(T) string) error {
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		s := slug(it)
		if s == "" {
			return fmt.Errorf("%s[%d]: slug is required", kind, i)
		}
		if seen[s] {
			return fmt.Errorf("%s: duplicate slug %q", kind, s)
		}
		seen[s] = true
	}
	return nil
}

func programSlug(p domain.TrainingProgram) string { return p.Slug }
func resourceSlug(r domain.Resource) string { return r.Slug }
func testimonialSlug(t domain.Testimonial) string { return t.ID }
func showcaseSlug(s domain.ShowcaseActivity) string { return s.ID }

type Catalog struct {
	Store   Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (c Catalog) Programs(ctx context.Context) (Listing[domain.TrainingProgram], error) {
	return list(ctx, c, domain.ContentPrograms, func(d Document) []domain.TrainingProgram { return d.Programs })
}

func (c Catalog) Program(ctx context.Context, slug string) (Item[domain.TrainingProgram], error) {
	return find(ctx, c, domain.ContentPrograms, slug, programSlug, func(d Document) []domain.TrainingProgram { return d.Programs })
}

func (c Catalog) Resources(ctx context.Context) (Listing[domain.Resource], error) {
	return list(ctx, c, domain.ContentResources, func(d Document) []domain.Resource { return d.Resources })
}

func (c Catalog) Resource(ctx context.Context, slug string) (Item[domain.Resource], error) {
	return find(ctx, c, domain.ContentResources, slug, resourceSlug, func(d Document) []domain.Resource { return d.Resources })
}

func (c Catalog) Testimonials(ctx context.Context) (Listing[domain.Testimonial], error) {
	return list(ctx, c, domain.ContentTestimonials, func(d Document) []domain.Testimonial { return d.Testimonials })
}

func (c Catalog) Showcase(ctx context.Context) (Listing[domain.ShowcaseActivity], error) {
	return list(ctx, c, domain.ContentShowcase, func(d Document) []domain.ShowcaseActivity { return d.Showcase })
}

func list[T any](ctx context.Context, c Catalog, kind string, pick func(Document) []T) (Listing[T], error) {
	if items, ok := remoteList[T](ctx, c, kind); ok {
		c.Metrics.IncrementCatalogRead(kind, string(SourceRemote))
		return Listing[T]{Items: items, Source: SourceRemote}, nil
	}
	doc, err := Fixtures()
	if err != nil {
		return Listing[T]{}, err
	}
	c.Metrics.IncrementCatalogRead(kind, string(SourceFixture))
	items := pick(doc)
	if items == nil {
		items = []T{}
	}
	return Listing[T]{Items: items, Source: SourceFixture}, nil
}

func find[T any](ctx context.Context, c Catalog, kind, slug string, slugOf func(T) string, pick func(Document) []T) (Item[T], error) {
	if v, ok := remoteFind[T](ctx, c, kind, slug); ok {
		c.Metrics.IncrementCatalogRead(kind, string(SourceRemote))
		return Item[T]{Item: v, Source: SourceRemote}, nil
	}
	doc, err := Fixtures()
	if err != nil {
		return Item[T]{}, err
	}
	for _, it := range pick(doc) {
		if slugOf(it) == slug {
			c.Metrics.IncrementCatalogRead(kind, string(SourceFixture))
			return Item[T]{Item: it, Source: SourceFixture}, nil
		}
	}
	return Item[T]{}, ErrNotFound
}

// remoteList returns decoded rows when the store answers with at least one
// row and every row decodes.
func remoteList[T any](ctx context.Context, c Catalog, kind string) ([]T, bool) {
	if c.Store == nil {
		return nil, false
	}
	rows, err := c.Store.ListContent(ctx, kind)
	if err != nil {
		c.logger().Warn("catalog store read failed; using fixtures", zap.String("kind", kind), zap.Error(err))
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal([]byte(row.PayloadJSON), &v); err != nil {
			c.logger().Warn("catalog row undecodable; using fixtures",
				zap.String("kind", kind), zap.String("slug", row.Slug), zap.Error(err))
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func remoteFind[T any](ctx context.Context, c Catalog, kind, slug string) (T, bool) {
	var v T
	if c.Store == nil {
		return v, false
	}
	row, err := c.Store.GetContent(ctx, kind, slug)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			c.logger().Warn("catalog store read failed; using fixtures",
				zap.String("kind", kind), zap.String("slug", slug), zap.Error(err))
		}
		return v, false
	}
	if err := json.Unmarshal([]byte(row.PayloadJSON), &v); err != nil {
		c.logger().Warn("catalog row undecodable; using fixtures",
			zap.String("kind", kind), zap.String("slug", slug), zap.Error(err))
		return v, false
	}
	return v, true
}

func (c Catalog) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
