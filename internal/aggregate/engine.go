// Package aggregate computes read-only views over every annotation in a
// scope: the tag frequency table, the annotated-element listing and the
// list of orphans.
//
// The store can only enumerate keys and fetch whole values, so every view is
// a full scan of the key space, filtered by the scope prefix and joined
// against the live document.
package aggregate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/keycodec"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/models"
)

// DefaultReadConcurrency bounds the parallel record fetches of one scan.
const DefaultReadConcurrency = 8

// Resolver looks elements up in the live document.
type Resolver interface {
	FindElement(scope models.Scope, elementID string) (models.Element, bool)
}

// Engine computes aggregate views.
type Engine struct {
	store       kv.Store
	docs        Resolver
	logger      *slog.Logger
	concurrency int
}

// NewEngine creates an engine reading from store and joining against docs.
func NewEngine(store kv.Store, docs Resolver, logger *slog.Logger) *Engine {
	return &Engine{store: store, docs: docs, logger: logger, concurrency: DefaultReadConcurrency}
}

// entry is one scanned annotation joined with its element.
type entry struct {
	key     keycodec.Key
	record  models.Annotation
	element models.Element
	orphan  bool
}

// AllTags returns the tag frequency table of scope, ordered by count
// descending and then by tag ascending. Tags are compared exactly.
func (e *Engine) AllTags(ctx context.Context, scope models.Scope) ([]models.TagCount, error) {
	entries, err := e.scan(ctx, scope)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, en := range entries {
		if en.orphan {
			continue
		}
		for _, tag := range en.record.Tags {
			counts[tag]++
		}
	}

	out := make([]models.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, models.TagCount{Tag: tag, Count: n})
	}
	SortTagCounts(out)
	return out, nil
}

// SortTagCounts orders by count descending, then tag ascending.
func SortTagCounts(tags []models.TagCount) {
	slices.SortFunc(tags, func(a, b models.TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
}

// AllElements lists every annotated element of scope that still exists in
// the document, in storage key order.
func (e *Engine) AllElements(ctx context.Context, scope models.Scope) ([]models.ElementSummary, error) {
	entries, err := e.scan(ctx, scope)
	if err != nil {
		return nil, err
	}

	out := make([]models.ElementSummary, 0, len(entries))
	for _, en := range entries {
		if en.orphan {
			continue
		}
		var lastModified *int64
		if en.record.LastModified != 0 {
			lm := en.record.LastModified
			lastModified = &lm
		}
		tags := en.record.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, models.ElementSummary{
			NodeID:       en.key.ElementID,
			NodeName:     en.element.DisplayName(),
			SourceURL:    en.record.SourceURL,
			Tags:         tags,
			Notes:        en.record.Notes,
			LastModified: lastModified,
		})
	}
	return out, nil
}

// Orphans returns the element ids of annotations in scope whose element no
// longer resolves in the document.
func (e *Engine) Orphans(ctx context.Context, scope models.Scope) ([]string, error) {
	entries, err := e.scan(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, en := range entries {
		if en.orphan {
			out = append(out, en.key.ElementID)
		}
	}
	return out, nil
}

// scan loads every annotation of scope, in key order. Records that vanished
// between listing and fetching, cannot be decoded, or carry a scope that
// disagrees with their key are skipped.
func (e *Engine) scan(ctx context.Context, scope models.Scope) ([]entry, error) {
	prefix, err := keycodec.Prefix(keycodec.KindAnnotation, scope)
	if err != nil {
		return nil, err
	}

	all, err := e.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate: list keys: %w", err)
	}

	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	records := make([]*models.Annotation, len(keys))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, k := range keys {
		g.Go(func() error {
			rec, err := kv.GetJSON[models.Annotation](gCtx, e.store, k)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				return nil
			case err != nil && isDecodeError(err):
				e.logger.Warn("aggregate: skipping unreadable record",
					slog.String("key", k), slog.String("error", err.Error()))
				return nil
			case err != nil:
				return fmt.Errorf("aggregate: read %s: %w", k, err)
			}
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]entry, 0, len(keys))
	for i, k := range keys {
		rec := records[i]
		if rec == nil {
			continue
		}
		key, err := keycodec.Decode(k)
		if err != nil {
			e.logger.Warn("aggregate: skipping malformed key", slog.String("key", k))
			continue
		}
		if rec.DocumentID != "" && rec.Scope() != scope {
			e.logger.Warn("aggregate: record scope mismatch",
				slog.String("key", k),
				slog.String("document_id", rec.DocumentID),
				slog.String("page_id", rec.PageID))
			continue
		}
		el, ok := e.docs.FindElement(scope, key.ElementID)
		out = append(out, entry{key: key, record: *rec, element: el, orphan: !ok})
	}
	return out, nil
}

func isDecodeError(err error) bool {
	var kvErr *kv.DecodeError
	return errors.As(err, &kvErr)
}
