package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/asterisk/internal/models"
)

// PruneResult lists the orphaned annotations found on one page.
type PruneResult struct {
	Scope    models.Scope
	Elements []string
}

// Prune deletes annotations (and their drafts) whose element no longer
// exists, on every page of the configured document. With dryRun set nothing
// is deleted.
func Prune(ctx context.Context, dryRun bool, opts ...Option) ([]PruneResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	rt, err := app.build(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rt.store.Close()

	return rt.prune(ctx, dryRun)
}

func (rt *runtime) prune(ctx context.Context, dryRun bool) ([]PruneResult, error) {
	var out []PruneResult
	for _, scope := range rt.canvas.Scopes() {
		orphans, err := rt.engine.Orphans(ctx, scope)
		if err != nil {
			return out, fmt.Errorf("prune %s/%s: %w", scope.DocumentID, scope.PageID, err)
		}
		if len(orphans) == 0 {
			continue
		}
		out = append(out, PruneResult{Scope: scope, Elements: orphans})
		for _, id := range orphans {
			if dryRun {
				rt.logger.Info("prune: orphan",
					slog.String("document", scope.DocumentID),
					slog.String("page", scope.PageID),
					slog.String("element", id))
				continue
			}
			if err := rt.repo.Delete(ctx, scope, id); err != nil {
				return out, fmt.Errorf("prune %s: %w", id, err)
			}
			rt.logger.Info("prune: deleted",
				slog.String("document", scope.DocumentID),
				slog.String("page", scope.PageID),
				slog.String("element", id))
		}
	}
	return out, nil
}
