package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/asterisk/internal/annotation"
	"github.com/starford/asterisk/internal/keycodec"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/models"
	"github.com/starford/asterisk/internal/testutil"
)

var (
	cover = models.Scope{DocumentID: "design", PageID: "0:1"}
	icons = models.Scope{DocumentID: "design", PageID: "0:2"}
)

type fixture struct {
	store  kv.Store
	repo   *annotation.Repository
	engine *Engine
}

func newFixture(t *testing.T, store kv.Store) fixture {
	t.Helper()
	canvas := testutil.TestCanvas(t)
	logger := testutil.Logger()
	return fixture{
		store:  store,
		repo:   annotation.NewRepository(store, logger, annotation.WithClock(func() time.Time { return time.UnixMilli(42) })),
		engine: NewEngine(store, canvas, logger),
	}
}

func (f fixture) save(t *testing.T, scope models.Scope, id string, tags ...string) {
	t.Helper()
	_, err := f.repo.SaveAnnotation(context.Background(), scope, "", id, models.Fields{Tags: tags, Notes: "n-" + id})
	require.NoError(t, err)
}

func TestSortTagCounts(t *testing.T) {
	tags := []models.TagCount{{Tag: "ui", Count: 3}, {Tag: "api", Count: 3}, {Tag: "bug", Count: 5}}
	SortTagCounts(tags)
	assert.Equal(t, []models.TagCount{{Tag: "bug", Count: 5}, {Tag: "api", Count: 3}, {Tag: "ui", Count: 3}}, tags)
}

func TestAllTags_OrderAndTies(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	f.save(t, cover, "1:1", "ui", "bug", "api", "Bug")
	f.save(t, cover, "1:2", "bug", "ui", "api", "zeta")
	f.save(t, cover, "1:3", "ui", "api", "bug", "alpha")

	got, err := f.engine.AllTags(context.Background(), cover)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{
		{Tag: "api", Count: 3},
		{Tag: "bug", Count: 3},
		{Tag: "ui", Count: 3},
		{Tag: "Bug", Count: 1},
		{Tag: "alpha", Count: 1},
		{Tag: "zeta", Count: 1},
	}, got)
}

func TestAllTags_CountsDuplicatesWithinRecord(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	f.save(t, cover, "1:1", "ui", "ui")

	got, err := f.engine.AllTags(context.Background(), cover)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Tag: "ui", Count: 2}}, got)
}

func TestAllTags_ExcludesOtherScopesAndOrphans(t *testing.T) {
	f := newFixture(t, testutil.TestStore(t))
	f.save(t, cover, "1:1", "kept")
	f.save(t, cover, "9:9", "orphan")
	f.save(t, icons, "2:1", "elsewhere")

	got, err := f.engine.AllTags(context.Background(), cover)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Tag: "kept", Count: 1}}, got)
}

func TestAllTags_Empty(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	got, err := f.engine.AllTags(context.Background(), cover)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllElements_ExcludesOrphans(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	f.save(t, cover, "1:1", "a")
	f.save(t, cover, "1:3")
	f.save(t, cover, "7:7", "gone")

	got, err := f.engine.AllElements(context.Background(), cover)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1:1", got[0].NodeID)
	assert.Equal(t, "Button", got[0].NodeName)
	assert.Equal(t, []string{"a"}, got[0].Tags)
	require.NotNil(t, got[0].LastModified)
	assert.Equal(t, int64(42), *got[0].LastModified)

	assert.Equal(t, "1:3", got[1].NodeID)
	assert.Equal(t, models.UnnamedElement, got[1].NodeName)
	assert.Equal(t, []string{}, got[1].Tags)
}

func TestAllElements_ScopesDoNotCollide(t *testing.T) {
	store := kv.NewMemory()
	canvas, err := hostWithSharedElement()
	require.NoError(t, err)
	repo := annotation.NewRepository(store, testutil.Logger())
	engine := NewEngine(store, canvas, testutil.Logger())
	ctx := context.Background()

	_, err = repo.SaveAnnotation(ctx, cover, "Cover", "5:5", models.Fields{Notes: "cover"})
	require.NoError(t, err)
	_, err = repo.SaveAnnotation(ctx, icons, "Icons", "5:5", models.Fields{Notes: "icons"})
	require.NoError(t, err)

	a, err := engine.AllElements(ctx, cover)
	require.NoError(t, err)
	b, err := engine.AllElements(ctx, icons)
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "cover", a[0].Notes)
	assert.Equal(t, "icons", b[0].Notes)
}

func TestScan_SkipsMismatchedAndCorruptRecords(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	ctx := context.Background()
	f.save(t, cover, "1:1", "good")

	key, err := keycodec.Encode(keycodec.KindAnnotation, cover, "1:2")
	require.NoError(t, err)
	require.NoError(t, kv.SetJSON(ctx, f.store, key, models.Annotation{
		Tags: []string{"foreign"}, DocumentID: "other", PageID: "0:1",
	}))

	bad, err := keycodec.Encode(keycodec.KindAnnotation, cover, "1:3")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, bad, []byte("not json")))

	// Drafts and preferences never show up in views.
	require.NoError(t, f.repo.SaveDraft(ctx, cover, "1:2", models.Fields{Tags: []string{"draft"}}))
	require.NoError(t, f.store.Set(ctx, keycodec.PreferencesKey, []byte(`{}`)))

	tags, err := f.engine.AllTags(ctx, cover)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Tag: "good", Count: 1}}, tags)
}

func TestScan_PropagatesStoreFailures(t *testing.T) {
	store := &testutil.FaultyStore{Store: kv.NewMemory()}
	f := newFixture(t, store)
	f.save(t, cover, "1:1", "x")

	store.FailKeys = true
	_, err := f.engine.AllTags(context.Background(), cover)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	store.FailKeys = false
	store.FailGet = func(string) bool { return true }
	_, err = f.engine.AllElements(context.Background(), cover)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestOrphans(t *testing.T) {
	f := newFixture(t, kv.NewMemory())
	f.save(t, cover, "1:1")
	f.save(t, cover, "8:8")
	f.save(t, cover, "9:9")

	got, err := f.engine.Orphans(context.Background(), cover)
	require.NoError(t, err)
	assert.Equal(t, []string{"8:8", "9:9"}, got)
}
