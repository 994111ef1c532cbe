package fetch

import "context"

// Result is the outcome of CallWithFallback. Value is always usable: either the
// fetched value or the fallback one.
type Result[T any] struct {
	OK    bool   `json:"ok"`
	Value T      `json:"value"`
	Error string `json:"error,omitempty"`
}

// Fallback computes the substitute value used when a fetch fails.
type Fallback[T any] func(ctx context.Context) T

// Static returns a Fallback always resolving to v.
func Static[T any](v T) Fallback[T] {
	return func(context.Context) T {
		return v
	}
}

// CallWithFallback never fails: any error (or panic) from call is replaced by the fallback value.
func CallWithFallback[T any](ctx context.Context, call Fetcher[T], fallback Fallback[T]) Result[T] {
	value, err := guardedFetch(ctx, call)
	if err == nil {
		return Result[T]{
			OK:    true,
			Value: value,
		}
	}

	ret := Result[T]{
		Error: err.Error(),
	}

	if fallback != nil {
		ret.Value = fallback(ctx)
	}

	return ret
}

func guardedFetch[T any](ctx context.Context, call Fetcher[T]) (ret T, err error) {
	defer func() {
		r := recover()
		if r != nil {
			var zero T

			ret, err = zero, newErrPanic(r)
		}
	}()

	return call.Fetch(ctx)
}
