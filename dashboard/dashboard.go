// Package dashboard loads the four aggregate counts shown on the home screen.
package dashboard

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrFetch is the only error Load reports; partial counts are never shown.
var ErrFetch = errors.New("Failed to fetch dashboard data")

// Counts are the totals of each listed entity.
type Counts struct {
	Students  int
	Resources int
	Borrows   int
	Returns   int
}

// CountFunc returns the number of records of one kind.
type CountFunc func(ctx context.Context) (int, error)

// Lister is the list half of an api.Service.
type Lister[T any] interface {
	GetAll(ctx context.Context, params url.Values) ([]T, error)
}

// Count counts by listing everything, as the server exposes no count endpoint.
func Count[T any](l Lister[T]) CountFunc {
	return func(ctx context.Context) (int, error) {
		items, err := l.GetAll(ctx, nil)
		if err != nil {
			return 0, err
		}
		return len(items), nil
	}
}

type Sources struct {
	Students  CountFunc
	Resources CountFunc
	Borrows   CountFunc
	Returns   CountFunc
}

// Load issues all four counts concurrently and waits for every one of them.
func Load(ctx context.Context, src Sources, logger *zap.Logger) (Counts, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out Counts
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range []struct {
		name string
		fn   CountFunc
		dst  *int
	}{
		{"students", src.Students, &out.Students},
		{"resources", src.Resources, &out.Resources},
		{"borrows", src.Borrows, &out.Borrows},
		{"returns", src.Returns, &out.Returns},
	} {
		job := job
		g.Go(func() error {
			n, err := job.fn(gctx)
			if err != nil {
				logger.Warn("Dashboard count failed", zap.String("entity", job.name), zap.Error(err))
				return err
			}
			*job.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, ErrFetch
	}
	return out, nil
}
