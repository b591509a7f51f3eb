// Package events declares the workbench's event types. Paired start/finish
// events share the request context, which carries the request id.
package events

import "time"

// ExecutionStart is emitted when a run begins, after input validation.
type ExecutionStart struct {
	Query         string
	OperationName string
	QueryID       int
}

// ExecutionFinish is emitted when a run settles, whether it completed,
// failed or was superseded.
type ExecutionFinish struct {
	OperationName string
	QueryID       int
	Err           error
	Duration      time.Duration
}

// IntrospectionStart is emitted when a schema fetch begins. The endpoint is
// the fetcher's concern and deliberately not part of the event.
type IntrospectionStart struct {
	Attempt int
}

// IntrospectionFinish is emitted when a schema fetch settles.
type IntrospectionFinish struct {
	Attempt  int
	Err      error
	Duration time.Duration
}

// TabsChange is emitted after any tab registry mutation.
type TabsChange struct {
	TabCount    int
	ActiveIndex int
}

// SchemaChange is emitted when a new schema object becomes current.
type SchemaChange struct {
	TypeCount int
}

// LeafFieldsInserted is emitted when a run auto-completed missing leaf
// selections in the operations editor. Hosts typically decorate the inserted
// ranges and clear the decoration after a few seconds.
type LeafFieldsInserted struct {
	Insertions int
}
