package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q := New(nil, Options{MinInterval: time.Millisecond})
	t.Cleanup(q.Shutdown)
	return q
}

func waitResult(t *testing.T, h *Handle, timeout time.Duration) Result {
	t.Helper()
	select {
	case res := <-h.Done:
		return res
	case <-time.After(timeout):
		t.Fatalf("request %s did not finish within %v", h.ID, timeout)
		return Result{}
	}
}

// blockWorker submits a task that occupies the worker until the returned
// function is called, so later submissions pile up in the pending queue.
func blockWorker(t *testing.T, q *Queue) func() {
	t.Helper()
	gate := make(chan struct{})
	h, err := q.Submit("blocker", PriorityUrgent, func(ctx context.Context) (any, error) {
		<-gate
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit blocker: %v", err)
	}

	// The blocker must be in flight before the test enqueues behind it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := q.Status()
		if snap.Processing != nil && snap.Processing.ID == h.ID {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("blocker never started processing")
		}
		time.Sleep(time.Millisecond)
	}

	return func() {
		close(gate)
		waitResult(t, h, 2*time.Second)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := newTestQueue(t)
	release := blockWorker(t, q)

	var mu sync.Mutex
	var order []string
	record := func(label string) Task {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			return label, nil
		}
	}

	var handles []*Handle
	for _, sub := range []struct {
		label    string
		priority Priority
	}{
		{"low", PriorityLow},
		{"normal", PriorityNormal},
		{"urgent", PriorityUrgent},
		{"high", PriorityHigh},
	} {
		h, err := q.Submit(sub.label, sub.priority, record(sub.label))
		if err != nil {
			t.Fatalf("submit %s: %v", sub.label, err)
		}
		handles = append(handles, h)
	}

	release()
	for _, h := range handles {
		waitResult(t, h, 2*time.Second)
	}

	want := []string{"urgent", "high", "normal", "low"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestFIFOWithinSamePriority(t *testing.T) {
	q := newTestQueue(t)
	release := blockWorker(t, q)

	var mu sync.Mutex
	var order []int
	var handles []*Handle
	for i := 0; i < 4; i++ {
		i := i
		h, err := q.Submit("same", PriorityNormal, func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	release()
	for _, h := range handles {
		waitResult(t, h, 2*time.Second)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order = %v, want ascending submission order", order)
		}
	}
}

func TestCancelPendingRequest(t *testing.T) {
	q := newTestQueue(t)
	release := blockWorker(t, q)
	defer release()

	h, err := q.Submit("doomed", PriorityNormal, func(ctx context.Context) (any, error) {
		t.Error("cancelled task ran")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := q.Cancel(h.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	res := waitResult(t, h, 2*time.Second)
	if !errors.Is(res.Err, ErrCancelled) {
		t.Fatalf("result err = %v, want ErrCancelled", res.Err)
	}

	// A finished id and a made-up id both report unknown.
	if err := q.Cancel(h.ID); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("cancel finished id: err = %v, want ErrUnknownRequest", err)
	}
	if err := q.Cancel("not-a-request"); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("cancel unknown id: err = %v, want ErrUnknownRequest", err)
	}
}

func TestCancelProcessingRequestRefused(t *testing.T) {
	q := newTestQueue(t)

	gate := make(chan struct{})
	h, err := q.Submit("in-flight", PriorityNormal, func(ctx context.Context) (any, error) {
		<-gate
		return "done", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Status().Processing == nil {
		if time.Now().After(deadline) {
			t.Fatal("task never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := q.Cancel(h.ID); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("cancel in-flight: err = %v, want ErrUnknownRequest", err)
	}
	close(gate)
	res := waitResult(t, h, 2*time.Second)
	if res.Err != nil || res.Value != "done" {
		t.Fatalf("result = %+v, want done", res)
	}
}

func TestRetryRunsAgainAfterTransientError(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex
	calls := 0
	h, err := q.Submit("flaky", PriorityHigh, func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("transient upstream hiccup")
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := waitResult(t, h, 10*time.Second)
	if res.Err != nil {
		t.Fatalf("result err = %v, want success after retry", res.Err)
	}
	if res.Value != "recovered" {
		t.Errorf("result value = %v, want recovered", res.Value)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("task ran %d times, want 2", calls)
	}
}

func TestCancelDuringRetryBackoffStaysCancelled(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex
	calls := 0
	firstAttempt := make(chan struct{})
	h, err := q.Submit("flaky", PriorityNormal, func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstAttempt)
		}
		return nil, errors.New("transient upstream hiccup")
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-firstAttempt

	// The request is back in pending state while its retry timer runs; cancel
	// lands as soon as the worker hands it off.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := q.Cancel(h.ID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cancel never landed during the backoff window")
		}
		time.Sleep(time.Millisecond)
	}

	res := waitResult(t, h, 2*time.Second)
	if !errors.Is(res.Err, ErrCancelled) {
		t.Fatalf("result err = %v, want ErrCancelled", res.Err)
	}

	// Outlive the retry timer; the task must not run again.
	time.Sleep(1200 * time.Millisecond)
	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Fatalf("task ran %d times after cancel, want 1", got)
	}

	// The worker is still alive and serving new work.
	after, err := q.Submit("next", PriorityNormal, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("submit after cancel: %v", err)
	}
	if res := waitResult(t, after, 2*time.Second); res.Err != nil || res.Value != "ok" {
		t.Fatalf("follow-up result = %+v, want ok", res)
	}
}

func TestPerRequestRetryBudget(t *testing.T) {
	q := newTestQueue(t)

	cause := errors.New("still broken")
	var mu sync.Mutex
	calls := 0
	h, err := q.SubmitWithRetries("one-shot", PriorityNormal, 1, func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, cause
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := waitResult(t, h, 2*time.Second)
	if !errors.Is(res.Err, cause) {
		t.Fatalf("result err = %v, want %v", res.Err, cause)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("task ran %d times, want 1 with a budget of 1", calls)
	}
}

func TestPermanentErrorNeverRetries(t *testing.T) {
	q := newTestQueue(t)

	cause := errors.New("upstream gateway timeout")
	var mu sync.Mutex
	calls := 0
	h, err := q.Submit("timeout", PriorityNormal, func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, backoff.Permanent(cause)
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := waitResult(t, h, 2*time.Second)
	if !errors.Is(res.Err, cause) {
		t.Fatalf("result err = %v, want wrapped %v", res.Err, cause)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("task ran %d times, want 1", calls)
	}
}

func TestRetriesStopAtAttemptCeiling(t *testing.T) {
	q := New(nil, Options{MaxRetries: 2, MinInterval: time.Millisecond})
	t.Cleanup(q.Shutdown)

	cause := errors.New("still broken")
	var mu sync.Mutex
	calls := 0
	h, err := q.Submit("hopeless", PriorityNormal, func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, cause
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := waitResult(t, h, 10*time.Second)
	if !errors.Is(res.Err, cause) {
		t.Fatalf("result err = %v, want %v", res.Err, cause)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("task ran %d times, want 2", calls)
	}
}

func TestShutdownFailsPendingAndRefusesSubmit(t *testing.T) {
	q := New(nil, Options{MinInterval: time.Millisecond})
	release := blockWorker(t, q)

	h, err := q.Submit("stranded", PriorityNormal, func(ctx context.Context) (any, error) {
		t.Error("stranded task ran after shutdown")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	shutdownDone := make(chan struct{})
	go func() {
		q.Shutdown()
		close(shutdownDone)
	}()

	// Shutdown drains pending before waiting on the worker, so the stranded
	// request fails while the blocker is still in flight.
	res := waitResult(t, h, 2*time.Second)
	if !errors.Is(res.Err, ErrQueueClosed) {
		t.Fatalf("stranded result err = %v, want ErrQueueClosed", res.Err)
	}

	release()
	select {
	case <-shutdownDone:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	if _, err := q.Submit("late", PriorityNormal, func(ctx context.Context) (any, error) {
		return nil, nil
	}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("submit after shutdown: err = %v, want ErrQueueClosed", err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	q := newTestQueue(t)
	release := blockWorker(t, q)

	h, err := q.Submit("waiting", PriorityLow, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := q.Status()
	if snap.Processing == nil || snap.Processing.Label != "blocker" {
		t.Fatalf("processing = %+v, want the blocker", snap.Processing)
	}
	if snap.Pending != 1 || len(snap.Requests) != 1 {
		t.Fatalf("pending = %d requests = %d, want 1 each", snap.Pending, len(snap.Requests))
	}
	if snap.Requests[0].ID != h.ID || snap.Requests[0].Priority != "LOW" || snap.Requests[0].Status != StatusPending {
		t.Errorf("pending view = %+v", snap.Requests[0])
	}

	release()
	waitResult(t, h, 2*time.Second)
}
