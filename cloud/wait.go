package cloud

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/slipstream"
)

// Run parameters polled while waiting for a deployment state.
const (
	runStateParameter = "ss:state"
	runAbortParameter = "ss:abort"
)

// WaitOpts controls WaitNodeInState. The zero value waits for "Ready",
// polling every 10 seconds for up to 10 minutes.
type WaitOpts struct {
	// States are the deployment states that end the wait successfully.
	States []string

	// Period is the time between two polls.
	Period time.Duration

	// Timeout bounds the whole wait. The deadline is computed once on
	// entry.
	Timeout time.Duration

	// IgnoreAbort keeps waiting when the deployment reports an abort
	// instead of failing with an *AbortError.
	IgnoreAbort bool
}

// A WaitTimeoutError is returned when a node didn't reach any of the wanted
// states before the deadline.
type WaitTimeoutError struct {
	NodeID  string
	States  []string
	Elapsed time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("node %q did not reach state %s within %s",
		e.NodeID, strings.Join(e.States, "|"), e.Elapsed)
}

// An AbortError is returned when the deployment reports an abort while being
// waited on. It is distinct from a timeout and can be suppressed with
// WaitOpts.IgnoreAbort.
type AbortError struct {
	NodeID string
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("node %q aborted: %s", e.NodeID, e.Reason)
}

// WaitNodeInState polls the deployment state of the node until it is one of
// opts.States, and returns the state that ended the wait. This is a blocking
// synchronous poll of a single node; the only suspension point is the sleep
// between polls, and the only ways out are success, an abort, the deadline,
// or ctx being cancelled.
func (p *SlipStreamProvider) WaitNodeInState(ctx context.Context, node Node, opts WaitOpts) (string, error) {
	states := opts.States
	if len(states) == 0 {
		states = []string{"Ready"}
	}
	period := opts.Period
	if period == 0 {
		period = 10 * time.Second
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}

	start := time.Now()
	deadline := start.Add(timeout)

	for {
		state, err := p.api.GetRunParameter(ctx, node.ID, runStateParameter)
		if err != nil {
			return "", err
		}

		for _, wanted := range states {
			if state == wanted {
				return state, nil
			}
		}

		if !opts.IgnoreAbort {
			abort, err := p.api.GetRunParameter(ctx, node.ID, runAbortParameter)
			if err != nil && !slipstream.IsNotFound(err) {
				return "", err
			}
			if abort != "" {
				return "", &AbortError{NodeID: node.ID, Reason: abort}
			}
		}

		if time.Now().After(deadline) {
			return "", &WaitTimeoutError{
				NodeID:  node.ID,
				States:  states,
				Elapsed: time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(period):
		}
	}
}
