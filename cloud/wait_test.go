package cloud

import (
	"testing"
	"time"

	"golang.org/x/net/context"
)

func waitProvider(states ...string) (*fakeAPI, *SlipStreamProvider) {
	api := &fakeAPI{stateSequence: states}
	return api, &SlipStreamProvider{api: api}
}

func TestWaitNodeInState(t *testing.T) {
	api, provider := waitProvider("Provisioning", "Provisioning", "Ready")

	state, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		Period: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("WaitNodeInState returned error: %v", err)
	}

	if state != "Ready" {
		t.Errorf("final state = %q, want %q", state, "Ready")
	}

	// Two non-matching observations then the match: exactly three polls.
	if api.statePolls != 3 {
		t.Errorf("polled the state %d times, want 3", api.statePolls)
	}
}

func TestWaitNodeInStateImmediate(t *testing.T) {
	api, provider := waitProvider("Ready")

	_, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		Period: time.Hour,
	})
	if err != nil {
		t.Fatalf("WaitNodeInState returned error: %v", err)
	}
	if api.statePolls != 1 {
		t.Errorf("polled the state %d times, want 1", api.statePolls)
	}
}

func TestWaitNodeInStateMultipleTargets(t *testing.T) {
	_, provider := waitProvider("Provisioning", "Aborted")

	state, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		States: []string{"Ready", "Aborted"},
		Period: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("WaitNodeInState returned error: %v", err)
	}
	if state != "Aborted" {
		t.Errorf("final state = %q, want %q", state, "Aborted")
	}
}

func TestWaitNodeInStateTimeout(t *testing.T) {
	_, provider := waitProvider("Provisioning")

	timeout := 20 * time.Millisecond
	start := time.Now()
	_, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		Period:  time.Millisecond,
		Timeout: timeout,
	})
	elapsed := time.Since(start)

	timeoutErr, ok := err.(*WaitTimeoutError)
	if !ok {
		t.Fatalf("got %v (%T), want a *WaitTimeoutError", err, err)
	}
	if timeoutErr.NodeID != "run-1" {
		t.Errorf("timeout error names node %q", timeoutErr.NodeID)
	}

	// The wait may overshoot by up to one period but never gives up early.
	if elapsed < timeout {
		t.Errorf("gave up after %s, before the %s timeout", elapsed, timeout)
	}
}

func TestWaitNodeInStateAbort(t *testing.T) {
	api, provider := waitProvider("Provisioning")
	api.abortValue = "disk full"

	_, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		Period: time.Hour,
	})

	abortErr, ok := err.(*AbortError)
	if !ok {
		t.Fatalf("got %v (%T), want an *AbortError", err, err)
	}
	if abortErr.Reason != "disk full" {
		t.Errorf("abort reason = %q, want %q", abortErr.Reason, "disk full")
	}
}

func TestWaitNodeInStateIgnoreAbort(t *testing.T) {
	api, provider := waitProvider("Provisioning", "Ready")
	api.abortValue = "disk full"

	state, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{
		Period:      time.Millisecond,
		IgnoreAbort: true,
	})
	if err != nil {
		t.Fatalf("WaitNodeInState returned error: %v", err)
	}
	if state != "Ready" {
		t.Errorf("final state = %q, want %q", state, "Ready")
	}
}

func TestWaitNodeInStateContextCancelled(t *testing.T) {
	_, provider := waitProvider("Provisioning")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.WaitNodeInState(ctx, Node{ID: "run-1"}, WaitOpts{
		Period: time.Hour,
	})
	if err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWaitNodeInStatePollError(t *testing.T) {
	// An empty sequence makes the state parameter lookup fail.
	_, provider := waitProvider()

	_, err := provider.WaitNodeInState(context.Background(), Node{ID: "run-1"}, WaitOpts{})
	if err == nil {
		t.Fatal("WaitNodeInState returned no error when the state poll failed")
	}
}
