package annotation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/models"
	"github.com/starford/asterisk/internal/testutil"
)

var testScope = models.Scope{DocumentID: "design", PageID: "0:1"}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newRepo(t *testing.T, store kv.Store) *Repository {
	t.Helper()
	return NewRepository(store, testutil.Logger(), WithClock(fixedClock(1700000000000)))
}

func TestLoadForEdit_Empty(t *testing.T) {
	repo := newRepo(t, testutil.TestStore(t))

	got, err := repo.LoadForEdit(context.Background(), testScope, "1:1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceEmpty || got.Draft != nil || got.Annotation != nil {
		t.Errorf("LoadForEdit = %+v, want empty", got)
	}
}

func TestLoadForEdit_DraftShadowsAnnotation(t *testing.T) {
	repo := newRepo(t, testutil.TestStore(t))
	ctx := context.Background()

	if _, err := repo.SaveAnnotation(ctx, testScope, "Cover", "1:1", models.Fields{Notes: "committed"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveDraft(ctx, testScope, "1:1", models.Fields{Notes: "in progress", Tags: []string{"wip"}}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.LoadForEdit(ctx, testScope, "1:1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceDraft {
		t.Fatalf("source = %q, want draft", got.Source)
	}
	if got.Draft.Notes != "in progress" {
		t.Errorf("draft notes = %q", got.Draft.Notes)
	}

	// The committed copy is still there.
	a, found, err := repo.Get(ctx, testScope, "1:1")
	if err != nil || !found {
		t.Fatalf("Get = %v, %v", found, err)
	}
	if a.Notes != "committed" {
		t.Errorf("draft overwrote annotation: %q", a.Notes)
	}
}

func TestSaveAnnotation_RemovesDraft(t *testing.T) {
	repo := newRepo(t, testutil.TestStore(t))
	ctx := context.Background()

	_ = repo.SaveDraft(ctx, testScope, "1:2", models.Fields{Notes: "draft"})
	saved, err := repo.SaveAnnotation(ctx, testScope, "Cover", "1:2", models.Fields{
		SourceURL: "https://example.com/spec",
		Tags:      []string{"ui", "ui"},
		Notes:     "final",
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.LastModified != 1700000000000 {
		t.Errorf("lastModified = %d", saved.LastModified)
	}
	if saved.Scope() != testScope || saved.PageName != "Cover" {
		t.Errorf("scope fields = %+v / %q", saved.Scope(), saved.PageName)
	}

	got, err := repo.LoadForEdit(ctx, testScope, "1:2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceAnnotation {
		t.Fatalf("source = %q, want annotation", got.Source)
	}
	if got.Annotation.Notes != "final" || len(got.Annotation.Tags) != 2 {
		t.Errorf("annotation = %+v", got.Annotation)
	}
}

func TestSaveAnnotation_FailureKeepsDraft(t *testing.T) {
	store := &testutil.FaultyStore{Store: kv.NewMemory()}
	repo := newRepo(t, store)
	ctx := context.Background()

	if err := repo.SaveDraft(ctx, testScope, "1:1", models.Fields{Notes: "precious"}); err != nil {
		t.Fatal(err)
	}
	store.FailSet = func(key string) bool { return strings.HasPrefix(key, "asterisk-") }

	if _, err := repo.SaveAnnotation(ctx, testScope, "Cover", "1:1", models.Fields{Notes: "x"}); !errors.Is(err, testutil.ErrInjected) {
		t.Fatalf("SaveAnnotation err = %v, want injected failure", err)
	}

	got, err := repo.LoadForEdit(ctx, testScope, "1:1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceDraft || got.Draft.Notes != "precious" {
		t.Errorf("draft lost after failed commit: %+v", got)
	}
}

func TestSaveAnnotation_DraftDeleteFailureIsNotFatal(t *testing.T) {
	store := &testutil.FaultyStore{Store: kv.NewMemory()}
	repo := newRepo(t, store)
	ctx := context.Background()

	store.FailDel = func(string) bool { return true }
	if _, err := repo.SaveAnnotation(ctx, testScope, "Cover", "1:1", models.Fields{}); err != nil {
		t.Fatalf("commit should succeed: %v", err)
	}
}

func TestSaveDraft_NoSelectionIsNoop(t *testing.T) {
	store := kv.NewMemory()
	repo := newRepo(t, store)

	if err := repo.SaveDraft(context.Background(), testScope, "", models.Fields{Notes: "x"}); err != nil {
		t.Fatal(err)
	}
	keys, _ := store.Keys(context.Background())
	if len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	repo := newRepo(t, testutil.TestStore(t))
	ctx := context.Background()

	if err := repo.Delete(ctx, testScope, "9:9"); err != nil {
		t.Fatalf("delete of absent records: %v", err)
	}

	_, _ = repo.SaveAnnotation(ctx, testScope, "Cover", "1:1", models.Fields{Notes: "a"})
	_ = repo.SaveDraft(ctx, testScope, "1:1", models.Fields{Notes: "d"})
	if err := repo.Delete(ctx, testScope, "1:1"); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.LoadForEdit(ctx, testScope, "1:1")
	if got.Source != SourceEmpty {
		t.Errorf("after delete source = %q", got.Source)
	}
}

func TestScopesDoNotCollide(t *testing.T) {
	repo := newRepo(t, testutil.TestStore(t))
	ctx := context.Background()
	other := models.Scope{DocumentID: "design", PageID: "0:2"}

	_, _ = repo.SaveAnnotation(ctx, testScope, "Cover", "1:1", models.Fields{Notes: "page one"})
	_, _ = repo.SaveAnnotation(ctx, other, "Icons", "1:1", models.Fields{Notes: "page two"})

	a, _, _ := repo.Get(ctx, testScope, "1:1")
	b, _, _ := repo.Get(ctx, other, "1:1")
	if a.Notes != "page one" || b.Notes != "page two" {
		t.Errorf("notes = %q / %q", a.Notes, b.Notes)
	}
}

func TestInvalidIdentifier(t *testing.T) {
	repo := newRepo(t, kv.NewMemory())
	_, err := repo.SaveAnnotation(context.Background(), testScope, "", "1-1", models.Fields{})
	if !errors.Is(err, apperr.ErrInvalidIdentifier) {
		t.Errorf("err = %v, want ErrInvalidIdentifier", err)
	}
}
