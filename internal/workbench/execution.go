package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hanpama/graphdesk/internal/eventbus"
	"github.com/hanpama/graphdesk/internal/events"
	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/history"
	"github.com/hanpama/graphdesk/internal/incremental"
	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/tabs"
)

// Run executes the active tab's operation. At most one request is active per
// store: calling Run while a subscription or stream is live stops it instead
// of starting a second one.
//
// All failures of a single run (invalid variables or headers JSON, transport
// errors, protocol violations) are rendered into the response editor and
// never leave the store in a fetching state; Run has no error return by
// design. For Stream responses Run blocks until the stream is exhausted or
// stopped, so hosts typically invoke it from its own goroutine.
func (s *Store) Run(ctx context.Context) {
	s.mu.Lock()
	if s.subscription != nil {
		sub := s.stopLocked()
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return
	}
	schema := s.schema
	s.mu.Unlock()

	// Fill in missing leaf selections before reading the final text. The
	// editor is updated in place; hosts decorate the inserted ranges and
	// clear the decoration after a few seconds.
	if schema != nil {
		insertions, completed := language.FillLeafs(schema, s.queryEditor.GetValue(), nil)
		if len(insertions) > 0 {
			s.queryEditor.SetValue(completed)
			eventbus.Publish(ctx, events.LeafFieldsInserted{Insertions: len(insertions)})
		}
	}

	queryText := s.queryEditor.GetValue()
	variablesText := s.variablesEditor.GetValue()
	headersText := s.headersEditor.GetValue()

	variables, err := parseVariables(variablesText)
	if err != nil {
		s.setResponse(formatError(err))
		return
	}
	headers, err := parseHeaders(headersText)
	if err != nil {
		s.setResponse(formatError(err))
		return
	}

	s.mu.Lock()
	s.queryID++
	runID := s.queryID
	s.isFetching = true
	facts := s.facts
	s.mu.Unlock()

	operationName := facts.OperationName

	// Operations may use fragments that are not part of the editor text;
	// their definitions ride along in the outgoing query.
	if facts.DocumentAST != nil && len(s.opts.ExternalFragments) > 0 {
		external := make(map[string]*language.FragmentDefinition, len(s.opts.ExternalFragments))
		for _, frag := range s.opts.ExternalFragments {
			external[frag.Name] = frag
		}
		for _, frag := range language.FragmentDependencies(facts.DocumentAST, external) {
			queryText += "\n\n" + language.PrintFragment(frag)
		}
	}

	s.setResponse("")
	s.history.Update(history.Item{
		Query:         queryText,
		Variables:     variablesText,
		Headers:       headersText,
		OperationName: operationName,
	})

	started := time.Now()
	eventbus.Publish(ctx, events.ExecutionStart{
		Query:         queryText,
		OperationName: operationName,
		QueryID:       runID,
	})

	defer func() {
		if r := recover(); r != nil {
			s.settleRun(ctx, runID, operationName, fmt.Errorf("panic: %v", r), started)
		}
	}()

	resp, err := s.fetcher(ctx,
		fetcher.Params{Query: queryText, Variables: variables, OperationName: operationName},
		fetcher.Opts{Headers: headers, DocumentAST: facts.DocumentAST},
	)
	if err != nil {
		s.settleRun(ctx, runID, operationName, err, started)
		return
	}

	acc := incremental.NewAccumulator()

	switch r := resp.(type) {
	case fetcher.Single:
		s.handleResponse(ctx, runID, operationName, started, acc, r.Result)
		s.settleRun(ctx, runID, operationName, nil, started)

	case fetcher.Stream:
		s.adopt(runID, streamSubscription{close: r.Close})
		for {
			value, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				s.settleRun(ctx, runID, operationName, nil, started)
				return
			}
			if err != nil {
				s.settleRun(ctx, runID, operationName, err, started)
				return
			}
			s.handleResponse(ctx, runID, operationName, started, acc, value)
		}

	case fetcher.Subscribable:
		sub := r.Subscribe(fetcher.Handlers{
			OnNext: func(value any) {
				s.handleResponse(ctx, runID, operationName, started, acc, value)
			},
			OnError: func(err error) {
				s.settleRun(ctx, runID, operationName, err, started)
			},
			OnComplete: func() {
				s.settleRun(ctx, runID, operationName, nil, started)
			},
		})
		s.adopt(runID, sub)

	default:
		s.settleRun(ctx, runID, operationName,
			fmt.Errorf("fetcher returned an unknown response shape %T", resp), started)
	}
}

// Stop cancels the active request, if any. Calling it with nothing active is
// a no-op.
func (s *Store) Stop() {
	s.mu.Lock()
	sub := s.stopLocked()
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// stopLocked clears the execution state and hands the subscription back to
// the caller, which must unsubscribe after releasing the lock. The run
// counter advances so the cancelled request's late deliveries, including the
// teardown error a closed stream surfaces, fail the staleness check.
func (s *Store) stopLocked() fetcher.Subscription {
	sub := s.subscription
	s.subscription = nil
	s.isFetching = false
	s.queryID++
	return sub
}

// adopt records the cancellation handle for a run, unless the run has
// already been superseded or settled (a fetcher may complete synchronously
// inside Subscribe), in which case the handle is cancelled on the spot.
func (s *Store) adopt(runID int, sub fetcher.Subscription) {
	s.mu.Lock()
	if runID != s.queryID {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.subscription = sub
	s.mu.Unlock()
}

// handleResponse applies one delivered value. Values belonging to a
// superseded run are dropped; incremental shapes are merged into the run's
// accumulator; the response editor always shows the pretty-printed state of
// the full result so far. isFetching clears after every partial, matching
// the busy-only-between-batches behaviour of the response surface.
func (s *Store) handleResponse(ctx context.Context, runID int, operationName string, started time.Time, acc *incremental.Accumulator, value any) {
	s.mu.Lock()
	if runID != s.queryID {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	var text string
	if parts, ok := incremental.Parts(value); ok {
		for _, part := range parts {
			if err := acc.Merge(part); err != nil {
				s.settleRun(ctx, runID, operationName, err, started)
				return
			}
		}
		text = formatResult(acc.Result())
	} else {
		text = formatResult(value)
	}

	s.mu.Lock()
	if runID != s.queryID {
		s.mu.Unlock()
		return
	}
	s.isFetching = false
	s.mu.Unlock()

	s.setResponse(text)
}

// settleRun finishes a run: on error the formatted error is rendered, and
// in all cases the fetching flag and subscription handle are released so the
// store can never get stuck. Superseded runs settle silently.
func (s *Store) settleRun(ctx context.Context, runID int, operationName string, err error, started time.Time) {
	s.mu.Lock()
	if runID != s.queryID {
		s.mu.Unlock()
		return
	}
	sub := s.subscription
	s.subscription = nil
	s.isFetching = false
	// A settled run is no longer current; whatever it still delivers is
	// dropped, and a second settle is a no-op.
	s.queryID++
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if err != nil {
		s.setResponse(formatError(err))
	}
	if !started.IsZero() {
		eventbus.Publish(ctx, events.ExecutionFinish{
			OperationName: operationName,
			QueryID:       runID,
			Err:           err,
			Duration:      time.Since(started),
		})
	}
}

// setResponse writes the response editor and mirrors the value into the
// active tab.
func (s *Store) setResponse(text string) {
	s.responseEditor.SetValue(text)

	s.mu.Lock()
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{Response: &text})
	s.mu.Unlock()
}

// parseVariables interprets the variables editor contents. Empty text means
// no variables; anything else must be a JSON object.
func parseVariables(text string) (map[string]any, error) {
	return parseJSONObject(text, "Variables are invalid JSON", "Variables are not a JSON object.")
}

func parseHeaders(text string) (map[string]any, error) {
	return parseJSONObject(text, "Headers are invalid JSON", "Headers are not a JSON object.")
}

func parseJSONObject(text, parseMessage, typeMessage string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil, fmt.Errorf("%s: %s.", parseMessage, err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, errors.New(typeMessage)
	}
	return obj, nil
}

// formatResult pretty-prints a result value for the response editor.
func formatResult(value any) string {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// formatError renders an error as a GraphQL-style errors payload.
func formatError(err error) string {
	return formatResult(map[string]any{
		"errors": []any{map[string]any{"message": err.Error()}},
	})
}

// streamSubscription adapts a stream's Close into the subscription shape so
// Stop and re-Run can cancel an in-flight iteration.
type streamSubscription struct{ close func() }

func (s streamSubscription) Unsubscribe() {
	if s.close != nil {
		s.close()
	}
}
