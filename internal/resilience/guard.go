package resilience

import "context"

// Guard bundles the primitives protecting one dependency. A nil Retrier
// uses DefaultPolicy; Limiter and Breaker are optional.
type Guard struct {
	Retrier *Retrier
	Limiter *Limiter
	Breaker *Breaker
}

// Call runs op under g. Every attempt passes through the limiter and then
// the breaker, so an open breaker ends the retry loop immediately.
func Call[T any](ctx context.Context, g Guard, name string, op func(ctx context.Context) (T, error)) (T, error) {
	retrier := g.Retrier
	if retrier == nil {
		retrier = NewRetrier(DefaultPolicy())
	}
	return Retry(ctx, retrier, name, func(ctx context.Context) (T, error) {
		attempt := op
		if g.Breaker != nil {
			inner := attempt
			attempt = func(ctx context.Context) (T, error) {
				var out T
				err := g.Breaker.Execute(ctx, func(ctx context.Context) error {
					v, err := inner(ctx)
					out = v
					return err
				})
				return out, err
			}
		}
		if g.Limiter != nil {
			return Throttle(ctx, g.Limiter, attempt)
		}
		return attempt(ctx)
	})
}
