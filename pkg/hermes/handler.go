package hermes

import "context"

// Func0 adapts a typed function without arguments into an EndpointFunc.
func Func0[R any](fn func(ctx context.Context) (R, error)) EndpointFunc {
	return func(ctx context.Context, _ Args, _ Metadata) (any, error) {
		return fn(ctx)
	}
}

// Func1 adapts a typed single argument function. Missing arguments decode to
// the zero value.
func Func1[A, R any](fn func(ctx context.Context, a A) (R, error)) EndpointFunc {
	return func(ctx context.Context, args Args, _ Metadata) (any, error) {
		var a A
		if err := args.Decode(0, &a); err != nil {
			return nil, err
		}

		return fn(ctx, a)
	}
}

func Func2[A, B, R any](fn func(ctx context.Context, a A, b B) (R, error)) EndpointFunc {
	return func(ctx context.Context, args Args, _ Metadata) (any, error) {
		var (
			a A
			b B
		)

		if err := args.Decode(0, &a); err != nil {
			return nil, err
		}

		if err := args.Decode(1, &b); err != nil {
			return nil, err
		}

		return fn(ctx, a, b)
	}
}

func Func3[A, B, C, R any](fn func(ctx context.Context, a A, b B, c C) (R, error)) EndpointFunc {
	return func(ctx context.Context, args Args, _ Metadata) (any, error) {
		var (
			a A
			b B
			c C
		)

		if err := args.Decode(0, &a); err != nil {
			return nil, err
		}

		if err := args.Decode(1, &b); err != nil {
			return nil, err
		}

		if err := args.Decode(2, &c); err != nil {
			return nil, err
		}

		return fn(ctx, a, b, c)
	}
}
