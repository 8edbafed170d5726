// Package annotation stores committed annotations and their autosaved drafts.
//
// Every operation takes the active Scope explicitly. A draft, when present,
// shadows the committed annotation for editing; committing an annotation
// removes the draft, and only a successful commit does so.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/keycodec"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/models"
)

// Source tells where LoadForEdit found its data.
type Source string

const (
	SourceDraft      Source = "draft"
	SourceAnnotation Source = "annotation"
	SourceEmpty      Source = "empty"
)

// Loaded is the result of LoadForEdit. Exactly one of Draft and Annotation
// is set unless Source is SourceEmpty.
type Loaded struct {
	Source     Source
	Draft      *models.Draft
	Annotation *models.Annotation
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for lastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// Repository is the only writer of annotation and draft records.
type Repository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository creates a repository on top of store.
func NewRepository(store kv.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveAnnotation commits fields for elementID and then removes its draft.
// If the write fails the draft is left untouched and the error is returned.
func (r *Repository) SaveAnnotation(ctx context.Context, scope models.Scope, pageName, elementID string, f models.Fields) (models.Annotation, error) {
	key, err := keycodec.Encode(keycodec.KindAnnotation, scope, elementID)
	if err != nil {
		return models.Annotation{}, err
	}
	draftKey, err := keycodec.Encode(keycodec.KindDraft, scope, elementID)
	if err != nil {
		return models.Annotation{}, err
	}

	a := models.Annotation{
		SourceURL:    f.SourceURL,
		Tags:         nonNilSlice(f.Tags),
		Notes:        f.Notes,
		LastModified: r.now().UnixMilli(),
		DocumentID:   scope.DocumentID,
		PageID:       scope.PageID,
		PageName:     pageName,
	}
	if err := kv.SetJSON(ctx, r.store, key, a); err != nil {
		return models.Annotation{}, fmt.Errorf("annotation: save %s: %w", elementID, err)
	}

	// The annotation is committed; a stale draft is only an annoyance.
	if err := r.store.Delete(ctx, draftKey); err != nil {
		r.logger.Warn("annotation: delete draft after commit failed",
			slog.String("key", draftKey),
			slog.String("error", err.Error()))
	}
	return a, nil
}

// SaveDraft writes the autosaved draft for elementID. It never touches the
// committed annotation. An empty elementID means nothing is selected and the
// call is a no-op.
func (r *Repository) SaveDraft(ctx context.Context, scope models.Scope, elementID string, f models.Fields) error {
	if elementID == "" {
		return nil
	}
	key, err := keycodec.Encode(keycodec.KindDraft, scope, elementID)
	if err != nil {
		return err
	}
	d := models.Draft{
		SourceURL:    f.SourceURL,
		Tags:         nonNilSlice(f.Tags),
		Notes:        f.Notes,
		LastModified: r.now().UnixMilli(),
		DocumentID:   scope.DocumentID,
		PageID:       scope.PageID,
	}
	if err := kv.SetJSON(ctx, r.store, key, d); err != nil {
		return fmt.Errorf("annotation: save draft %s: %w", elementID, err)
	}
	return nil
}

// LoadForEdit returns the draft if one exists, else the committed annotation,
// else an empty result.
func (r *Repository) LoadForEdit(ctx context.Context, scope models.Scope, elementID string) (Loaded, error) {
	draftKey, err := keycodec.Encode(keycodec.KindDraft, scope, elementID)
	if err != nil {
		return Loaded{}, err
	}
	d, found, err := get[models.Draft](ctx, r.store, draftKey)
	if err != nil {
		return Loaded{}, err
	}
	if found {
		return Loaded{Source: SourceDraft, Draft: &d}, nil
	}

	a, found, err := r.Get(ctx, scope, elementID)
	if err != nil {
		return Loaded{}, err
	}
	if found {
		return Loaded{Source: SourceAnnotation, Annotation: &a}, nil
	}
	return Loaded{Source: SourceEmpty}, nil
}

// Get returns the committed annotation for elementID, ignoring drafts.
func (r *Repository) Get(ctx context.Context, scope models.Scope, elementID string) (models.Annotation, bool, error) {
	key, err := keycodec.Encode(keycodec.KindAnnotation, scope, elementID)
	if err != nil {
		return models.Annotation{}, false, err
	}
	return get[models.Annotation](ctx, r.store, key)
}

// Delete removes both the annotation and the draft for elementID. Missing
// records are not an error.
func (r *Repository) Delete(ctx context.Context, scope models.Scope, elementID string) error {
	var errs []error
	for _, kind := range []keycodec.Kind{keycodec.KindAnnotation, keycodec.KindDraft} {
		key, err := keycodec.Encode(kind, scope, elementID)
		if err != nil {
			return err
		}
		if err := r.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("annotation: delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func get[T any](ctx context.Context, s kv.Store, key string) (T, bool, error) {
	v, err := kv.GetJSON[T](ctx, s, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("annotation: load %s: %w", key, err)
	}
	return v, true, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
