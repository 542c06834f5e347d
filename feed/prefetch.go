package feed

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
)

// Orchestrator runs pre-fetch view queries concurrently and resolves the
// cursor at which streaming should begin.
type Orchestrator struct {
	transport Transport
	parallel  int
	emit      Handler
	logger    *log.Logger
	collector *metrics.Collector

	mu sync.Mutex
}

// NewOrchestrator creates an orchestrator that runs at most parallel
// queries at once and reports events through emit.
func NewOrchestrator(t Transport, parallel int, emit Handler) *Orchestrator {
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Orchestrator{
		transport: t,
		parallel:  parallel,
		emit:      emit,
		logger:    log.Nop(),
	}
}

// RunAll queries every view and returns the update_seq of the query that
// completed last. Completion order is not deterministic, so neither is the
// result when markers differ.
//
// The first failure cancels the remaining queries, emits EventViewsError
// once and is returned. With no views, start is returned immediately and
// no events fire.
func (o *Orchestrator) RunAll(ctx context.Context, views []ViewSpec, start Cursor) (Cursor, error) {
	if len(views) == 0 {
		return start, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)

	last := start
	for _, spec := range views {
		g.Go(func() error {
			res, err := o.transport.View(gctx, spec)
			if err != nil {
				// Queries aborted by a sibling's failure are not failures of their own.
				if gctx.Err() == nil {
					o.collector.IncViewFailure()
				}
				return &ViewError{View: spec.Name, Err: err}
			}

			o.mu.Lock()
			defer o.mu.Unlock()
			// The batch has already failed; its rows are not reported.
			if gctx.Err() != nil {
				return nil
			}
			o.collector.IncViewsQueried()
			o.collector.AddViewRows(len(res.Rows))
			o.logger.Debug("view query completed", map[string]any{
				"view":       spec.Name,
				"rows":       len(res.Rows),
				"update_seq": res.UpdateSeq.String(),
			})
			o.emit(Event{
				Kind:   ViewEventKind(spec.Name),
				View:   spec.Name,
				Rows:   res.Rows,
				Cursor: res.UpdateSeq,
			})
			if !res.UpdateSeq.IsZero() {
				last = res.UpdateSeq
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Error("pre-fetch failed", map[string]any{"error": err.Error()})
		o.emit(Event{Kind: EventViewsError, Err: err})
		return "", err
	}

	o.emit(Event{Kind: EventViews, Cursor: last})
	return last, nil
}
