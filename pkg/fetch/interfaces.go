package fetch

import "context"

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_fetch.go

// Fetcher performs one logical read against an external source.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FetcherFunc adapts a plain function to a Fetcher.
type FetcherFunc[T any] func(ctx context.Context) (T, error)

func (f FetcherFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}
