package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the workbench API receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
