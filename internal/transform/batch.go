package transform

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/rcrt-io/rcrt/internal/types"
)

// BatchItem is one input to BatchProject: a raw context plus the hints
// resolved for it by the caller (inline or schema-cache already applied
// via Resolve).
type BatchItem struct {
	Context json.RawMessage
	Hints   *types.LlmHints
}

// BatchProject fetches N breadcrumbs' projections concurrently, per the
// performance contract in §4.3. Errors are positional: a failure on one
// item does not cancel the others, since list/search responses are
// best-effort best-formatted rather than all-or-nothing.
func (e *Engine) BatchProject(ctx context.Context, items []BatchItem) ([]json.RawMessage, []error) {
	out := make([]json.RawMessage, len(items))
	errs := make([]error, len(items))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			projected, err := e.Project(item.Context, item.Hints)
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = projected
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}
