package content_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draughtsman/internal/content"
	"draughtsman/internal/db"
	"draughtsman/internal/domain"
	"draughtsman/internal/migrate"
	"draughtsman/internal/repo"
)

type failingStore struct{}

func (failingStore) ListContent(context.Context, string) ([]domain.ContentItem, error) {
	return nil, errors.New("store offline")
}

func (failingStore) GetContent(context.Context, string, string) (domain.ContentItem, error) {
	return domain.ContentItem{}, errors.New("store offline")
}

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestFixturesParse(t *testing.T) {
	doc, err := content.Fixtures()
	require.NoError(t, err)
	assert.Len(t, doc.Programs, 3)
	assert.Len(t, doc.Resources, 4)
	assert.Len(t, doc.Testimonials, 3)
	assert.Len(t, doc.Showcase, 4)
	assert.Equal(t, "Alice Wanjiru", doc.Programs[1].Instructors[0].Name)
	assert.Len(t, doc.Programs[0].Instructors, 2)
}

func TestEmptyStoreFallsBackToFixtures(t *testing.T) {
	c := content.Catalog{Store: newRepo(t)}
	got, err := c.Programs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, got.Source)
	assert.Len(t, got.Items, 3)
}

func TestStoreErrorFallsBackToFixtures(t *testing.T) {
	c := content.Catalog{Store: failingStore{}}
	got, err := c.Resources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, got.Source)
	assert.Len(t, got.Items, 4)

	item, err := c.Resource(context.Background(), "guide-iec-61439")
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, item.Source)
	assert.Equal(t, "guide", item.Item.Type)
}

func TestNoStoreUsesFixtures(t *testing.T) {
	got, err := content.Catalog{}.Showcase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, got.Source)
	assert.Len(t, got.Items, 4)
}

func TestImportedRowsServedFromRemote(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	doc, err := content.ParseDocument([]byte(`
programs:
  - id: p9
    slug: substation-basics
    title: Substation Basics
`))
	require.NoError(t, err)
	counts, err := content.Import(ctx, r, doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.ContentPrograms: 1}, counts)

	c := content.Catalog{Store: r}
	got, err := c.Programs(ctx)
	require.NoError(t, err)
	assert.Equal(t, content.SourceRemote, got.Source)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Substation Basics", got.Items[0].Title)

	item, err := c.Program(ctx, "substation-basics")
	require.NoError(t, err)
	assert.Equal(t, content.SourceRemote, item.Source)

	// A slug only in the fixtures is still found there.
	item, err = c.Program(ctx, "panel-design-masterclass")
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, item.Source)

	// Kinds not imported keep using fixtures.
	ts, err := c.Testimonials(ctx)
	require.NoError(t, err)
	assert.Equal(t, content.SourceFixture, ts.Source)
}

func TestUnknownSlug(t *testing.T) {
	c := content.Catalog{Store: newRepo(t)}
	_, err := c.Program(context.Background(), "no-such-course")
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestParseDocumentRejectsDuplicateSlugs(t *testing.T) {
	_, err := content.ParseDocument([]byte(`
resources:
  - slug: a
  - slug: a
`))
	require.Error(t, err)

	_, err = content.ParseDocument([]byte(`
showcase:
  - title: no id
`))
	require.Error(t, err)
}
