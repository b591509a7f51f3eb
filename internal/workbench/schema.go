package workbench

import (
	"context"
	"errors"
	"time"

	"github.com/hanpama/graphdesk/internal/eventbus"
	"github.com/hanpama/graphdesk/internal/events"
	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/introspect"
	"github.com/hanpama/graphdesk/internal/language"
)

// Schema returns the current schema, nil while none is loaded or when the
// schema was explicitly disabled.
func (s *Store) Schema() *language.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

func (s *Store) SchemaFetchError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchError
}

func (s *Store) ValidationErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validationErrors
}

func (s *Store) IsIntrospecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isIntrospecting
}

var errNoIntrospectionData = errors.New("introspection response did not return a data object")

// Introspect fetches the schema via the introspection meta-query. Attempts
// are keyed by a monotonic counter; a result or error belonging to an
// attempt that has since been superseded is discarded silently, so the last
// started request always wins regardless of response arrival order.
//
// A response without a data key is retried once with the subscription-type
// clause stripped, which tolerates servers predating subscription
// introspection. All failures are recoverable; a later call retries.
func (s *Store) Introspect(ctx context.Context) {
	s.mu.Lock()
	if s.schemaResolved {
		s.mu.Unlock()
		return
	}
	s.requestCounter++
	counter := s.requestCounter
	s.mu.Unlock()

	headers, err := parseHeaders(s.headersEditor.GetValue())
	if err != nil {
		s.settleIntrospection(counter, nil, err)
		return
	}

	s.mu.Lock()
	if counter == s.requestCounter {
		s.isIntrospecting = true
		s.fetchError = ""
	}
	s.mu.Unlock()

	started := time.Now()
	eventbus.Publish(ctx, events.IntrospectionStart{Attempt: counter})

	queryOpts := introspect.QueryOptions{
		OperationName:         s.opts.IntrospectionOperationName,
		InputValueDeprecation: s.opts.InputValueDeprecation,
		SchemaDescription:     s.opts.SchemaDescription,
	}
	operationName := queryOpts.OperationName
	if operationName == "" {
		operationName = "IntrospectionQuery"
	}

	data, err := s.fetchIntrospection(ctx, introspect.Query(queryOpts), operationName, headers)
	if errors.Is(err, errNoIntrospectionData) {
		queryOpts.SansSubscriptions = true
		data, err = s.fetchIntrospection(ctx, introspect.Query(queryOpts), operationName, headers)
	}

	var schema *language.Schema
	if err == nil {
		schema, err = introspect.BuildSchema(data)
		if err != nil {
			err = &schemaBuildError{err: err}
		}
	}

	eventbus.Publish(ctx, events.IntrospectionFinish{
		Attempt:  counter,
		Err:      err,
		Duration: time.Since(started),
	})
	s.settleIntrospection(counter, schema, err)
}

func (s *Store) fetchIntrospection(ctx context.Context, query, operationName string, headers map[string]any) (map[string]any, error) {
	resp, err := s.fetcher(ctx,
		fetcher.Params{Query: query, OperationName: operationName},
		fetcher.Opts{Headers: headers},
	)
	if err != nil {
		return nil, err
	}
	value, err := fetcher.ToSingle(ctx, resp)
	if err != nil {
		return nil, err
	}
	result, ok := value.(map[string]any)
	if !ok {
		return nil, errNoIntrospectionData
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		return nil, errNoIntrospectionData
	}
	return data, nil
}

// schemaBuildError marks a failure to construct a schema from an otherwise
// well-formed introspection response; these double as validation errors.
type schemaBuildError struct{ err error }

func (e *schemaBuildError) Error() string { return e.err.Error() }
func (e *schemaBuildError) Unwrap() error { return e.err }

// settleIntrospection applies an attempt's outcome unless a newer attempt
// has started since.
func (s *Store) settleIntrospection(counter int, schema *language.Schema, err error) {
	s.mu.Lock()
	if counter != s.requestCounter {
		s.mu.Unlock()
		return
	}
	s.isIntrospecting = false
	if err != nil {
		s.fetchError = formatError(err)
		var buildErr *schemaBuildError
		if errors.As(err, &buildErr) {
			s.validationErrors = []string{buildErr.err.Error()}
		}
		s.mu.Unlock()
		return
	}
	s.schema = schema
	s.fetchError = ""
	s.validationErrors = nil
	onSchemaChange := s.opts.OnSchemaChange
	s.mu.Unlock()

	typeCount := 0
	if schema != nil {
		typeCount = len(schema.Types)
	}
	eventbus.Publish(context.Background(), events.SchemaChange{TypeCount: typeCount})
	if onSchemaChange != nil {
		onSchemaChange(schema)
	}
}
