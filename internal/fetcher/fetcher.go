// Package fetcher defines the pluggable transport contract that turns
// GraphQL request parameters into a result. It is the sole network
// abstraction the execution engine depends on.
package fetcher

import (
	"context"
	"errors"
	"io"

	"github.com/hanpama/graphdesk/internal/language"
)

// Params are the GraphQL HTTP parameters of one request.
type Params struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Opts carry request metadata next to the parameters.
type Opts struct {
	Headers     map[string]any
	DocumentAST *language.QueryDocument
}

// Fetcher issues a GraphQL request and returns one of the three response
// shapes. Results are parsed JSON values (map/slice/scalar).
type Fetcher func(ctx context.Context, params Params, opts Opts) (Response, error)

// Response is the tagged union of the shapes a fetcher may produce. The
// engine resolves the shape once at the fetcher boundary and dispatches by
// type switch.
type Response interface{ response() }

// Single is a complete result delivered at once.
type Single struct{ Result any }

func (Single) response() {}

// Stream delivers results one at a time, the async-iterable shape.
type Stream struct {
	// Next blocks until the next result is available. It returns io.EOF
	// once the stream is exhausted.
	Next func(ctx context.Context) (any, error)

	// Close ends the stream early. Safe to call more than once.
	Close func()
}

func (Stream) response() {}

// Handlers receive the values of a push-based subscription.
type Handlers struct {
	OnNext     func(result any)
	OnError    func(err error)
	OnComplete func()
}

// Subscription is the cancellation handle of an active subscription.
type Subscription interface{ Unsubscribe() }

// Subscribable is a push-based response: values arrive through the handlers
// until completion, error or unsubscribe.
type Subscribable struct {
	Subscribe func(h Handlers) Subscription
}

func (Subscribable) response() {}

// ErrNotSingle reports a response shape that cannot be reduced to one value.
var ErrNotSingle = errors.New("fetcher did not return a single result")

// ToSingle reduces a response to one result value: a Single yields its
// result, a Stream yields its first value, a Subscribable cannot be reduced.
// Introspection uses this since it never subscribes.
func ToSingle(ctx context.Context, resp Response) (any, error) {
	switch r := resp.(type) {
	case Single:
		return r.Result, nil
	case Stream:
		defer r.Close()
		value, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fetcher stream ended without a result")
		}
		return value, err
	case Subscribable:
		return nil, ErrNotSingle
	default:
		return nil, ErrNotSingle
	}
}
