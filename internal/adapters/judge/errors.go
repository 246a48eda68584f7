package judge

import (
	"errors"
	"fmt"
)

// Sentinel kinds for judge API errors.
var (
	// ErrRemoteStatus indicates the API answered with a failure status payload.
	ErrRemoteStatus = errors.New("judge api returned failure status")
	// ErrRateLimited indicates the API rejected the call for exceeding its rate.
	ErrRateLimited = errors.New("judge api rate limited")
	// ErrUnexpectedStatus indicates a non-success HTTP status code.
	ErrUnexpectedStatus = errors.New("judge api unexpected http status")
)

// FetchError wraps any failure while paging one account's submissions. It is
// isolated per account by the coordinator and never aborts a batch.
type FetchError struct {
	Handle string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching submissions for %s: %v", e.Handle, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
