package completion

import (
	"context"
	"fmt"

	"OreChat/internal/backend"
	"OreChat/internal/prompt"
)

// Client performs one completion call
type Client interface {
	Submit(ctx context.Context, req *prompt.Request) (*Result, error)
}

// Result is either a whole message (Text) or a stream of fragments
type Result struct {
	Text      string
	Fragments backend.Stream
}

// Streamed reports whether the result must be read fragment by fragment
func (r *Result) Streamed() bool {
	return r.Fragments != nil
}

// FailureKind classifies a completion failure
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureMalformed FailureKind = "malformed"
	FailureStream    FailureKind = "stream"
)

// Failure is the single outcome for every transport, status or parse
// problem talking to the completion service. It carries no assistant text.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("completion failed (%s, status %d): %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("completion failed (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failure(kind FailureKind, status int, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, StatusCode: status, Err: fmt.Errorf(format, args...)}
}
