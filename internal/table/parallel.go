package table

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dynaql/internal/enumerator"
)

// DrainParallel drains each enumerator on its own goroutine and concatenates
// the rows in argument order.
//
// The first failure cancels the shared context, which aborts in-flight
// requests on the other enumerators. A single enumerator is drained on the
// calling goroutine.
func DrainParallel(ctx context.Context, enums []*enumerator.Enumerator) ([]any, error) {
	if len(enums) == 1 {
		return drain(ctx, enums[0])
	}

	results := make([][]any, len(enums))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range enums {
		i, e := i, e
		g.Go(func() error {
			rows, err := drain(gctx, e)
			if err != nil {
				return fmt.Errorf("stream %d: %w", i, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []any
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, nil
}

func drain(ctx context.Context, e *enumerator.Enumerator) ([]any, error) {
	defer e.Close()

	var rows []any
	for e.Next(ctx) {
		row, err := e.Current()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
