package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"golang.org/x/sync/errgroup"
)

// BatchItem is one invocation of a batch. Ports must be distinct across items.
type BatchItem struct {
	InputPath string
	Port      int
}

type BatchResult struct {
	BatchItem
	Output domain.OutputArtifact
	Err    error
}

// RunBatch routes several files concurrently, each in its own container.
// A failing item does not stop the others. The returned error joins every item error.
func (w *Workflow) RunBatch(ctx context.Context, items []BatchItem, parallelism int) ([]BatchResult, error) {
	seen := make(map[int]string, len(items))
	for _, item := range items {
		if prev, ok := seen[item.Port]; ok {
			return nil, fmt.Errorf("port %d assigned to both %s and %s", item.Port, prev, item.InputPath)
		}
		seen[item.Port] = item.InputPath
	}

	if parallelism <= 0 {
		parallelism = 1
	}

	results := make([]BatchResult, len(items))
	var g errgroup.Group
	g.SetLimit(parallelism)

	for i, item := range items {
		g.Go(func() error {
			out, err := w.Run(ctx, item.InputPath, item.Port)
			results[i] = BatchResult{BatchItem: item, Output: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.InputPath, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// PortsFrom assigns consecutive ports starting at base to the given inputs.
func PortsFrom(base int, inputs []string) []BatchItem {
	items := make([]BatchItem, len(inputs))
	for i, in := range inputs {
		items[i] = BatchItem{InputPath: in, Port: base + i}
	}
	return items
}
