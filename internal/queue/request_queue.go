package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solace/internal/events"
	"solace/internal/logging"
	"solace/internal/services"
)

// Priority orders pending requests. Lower value runs first.
type Priority int

const (
	PriorityUrgent Priority = 1
	PriorityHigh   Priority = 2
	PriorityNormal Priority = 3
	PriorityLow    Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

// Status is a request's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var (
	// ErrQueueClosed is returned by Submit after Shutdown.
	ErrQueueClosed = errors.New("request queue is closed")

	// ErrCancelled is delivered as the result of a cancelled request.
	ErrCancelled = errors.New("request cancelled")

	// ErrUnknownRequest is returned by Cancel for ids the queue does not hold.
	ErrUnknownRequest = errors.New("unknown request id")
)

// Task is the unit of work a request carries. It runs on the queue's single
// worker goroutine.
type Task func(ctx context.Context) (any, error)

// Result is a finished request's outcome.
type Result struct {
	Value any
	Err   error
}

// Handle is the caller's view of a submitted request. Done receives exactly
// one Result.
type Handle struct {
	ID   string
	Done <-chan Result
}

type request struct {
	id         string
	label      string
	priority   Priority
	status     Status
	attempts   int
	maxRetries int
	task       Task
	done       chan Result
	retry      *backoff.ExponentialBackOff
	enqueued   time.Time

	// resolved flips once the single Result has been delivered, so a cancel
	// racing a retry timer or worker finish cannot send twice.
	resolved bool
}

// RequestView is a snapshot of one request for status reporting.
type RequestView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Priority string `json:"priority"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
}

// StatusSnapshot describes the whole queue at one instant.
type StatusSnapshot struct {
	Pending    int           `json:"pending"`
	Processing *RequestView  `json:"processing,omitempty"`
	Requests   []RequestView `json:"requests"`
}

// Options tunes queue behavior. Zero values take defaults.
type Options struct {
	// MaxRetries is the attempt ceiling per request, including the first
	// attempt. Defaults to 3.
	MaxRetries int

	// MinInterval is the minimum spacing between task executions.
	// Defaults to 100ms.
	MinInterval time.Duration
}

// Queue serializes upstream work through one worker goroutine with priority
// ordering, spaced execution, and bounded retries. A retried request is
// demoted one priority step so fresh urgent work overtakes it.
type Queue struct {
	mu      sync.Mutex
	pending []*request
	byID    map[string]*request
	current *request
	closed  bool

	bus        *events.Bus
	limiter    *rate.Limiter
	maxRetries int
	wake       chan struct{}
	quit       chan struct{}
	wg         sync.WaitGroup
	log        *logrus.Entry
}

// New creates a queue and starts its worker.
func New(bus *events.Bus, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 100 * time.Millisecond
	}
	q := &Queue{
		byID:       make(map[string]*request),
		bus:        bus,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		maxRetries: opts.MaxRetries,
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		log:        logrus.WithField("component", "request-queue"),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit enqueues a task. The returned handle's Done channel receives the
// result once the task completes, fails permanently, or is cancelled.
func (q *Queue) Submit(label string, priority Priority, task Task) (*Handle, error) {
	return q.SubmitWithRetries(label, priority, 0, task)
}

// SubmitWithRetries enqueues a task with its own attempt ceiling, including
// the first attempt. maxRetries <= 0 uses the queue default.
func (q *Queue) SubmitWithRetries(label string, priority Priority, maxRetries int, task Task) (*Handle, error) {
	if priority < PriorityUrgent || priority > PriorityLow {
		priority = PriorityNormal
	}
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}
	req := &request{
		id:         uuid.New().String(),
		label:      label,
		priority:   priority,
		status:     StatusPending,
		maxRetries: maxRetries,
		task:       task,
		done:       make(chan Result, 1),
		enqueued:   time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.insertLocked(req)
	q.byID[req.id] = req
	q.mu.Unlock()

	logging.WithRequest(req.id, label).WithField("priority", priority.String()).Info("Request enqueued")
	q.publishStatus(req, "enqueued")
	q.kick()
	return &Handle{ID: req.id, Done: req.done}, nil
}

// Cancel removes a pending request. Requests already processing cannot be
// cancelled; the call reports ErrUnknownRequest for them and for finished ids.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	req, ok := q.byID[id]
	if !ok || req.status != StatusPending {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	q.removePendingLocked(req)
	delete(q.byID, id)
	req.status = StatusCancelled
	req.resolved = true
	q.mu.Unlock()

	req.done <- Result{Err: ErrCancelled}
	logging.WithRequest(id, req.label).Info("Request cancelled")
	q.publishStatus(req, "cancelled")
	if m := services.GetMetrics(); m != nil {
		m.RecordRequestOutcome("cancelled")
	}
	return nil
}

// Status reports a snapshot of the queue in execution order.
func (q *Queue) Status() StatusSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := StatusSnapshot{
		Pending:  len(q.pending),
		Requests: make([]RequestView, 0, len(q.pending)),
	}
	if q.current != nil {
		v := viewOf(q.current)
		snap.Processing = &v
	}
	for _, req := range q.pending {
		snap.Requests = append(snap.Requests, viewOf(req))
	}
	return snap
}

// Shutdown stops the worker after the in-flight task finishes. Pending
// requests are failed with ErrQueueClosed.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	drained := q.pending
	q.pending = nil
	for _, req := range drained {
		delete(q.byID, req.id)
		req.resolved = true
	}
	q.mu.Unlock()

	for _, req := range drained {
		req.done <- Result{Err: ErrQueueClosed}
	}
	close(q.quit)
	q.wg.Wait()
	q.log.Info("Request queue stopped")
}

func viewOf(req *request) RequestView {
	return RequestView{
		ID:       req.id,
		Label:    req.label,
		Priority: req.priority.String(),
		Status:   req.status,
		Attempts: req.attempts,
	}
}

// insertLocked places the request before the first pending entry with a
// strictly higher priority value, keeping same-priority requests FIFO.
func (q *Queue) insertLocked(req *request) {
	pos := len(q.pending)
	for i, other := range q.pending {
		if other.priority > req.priority {
			pos = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[pos+1:], q.pending[pos:])
	q.pending[pos] = req
}

func (q *Queue) removePendingLocked(target *request) {
	for i, req := range q.pending {
		if req == target {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) kick() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-q.quit
		cancel()
	}()

	for {
		q.mu.Lock()
		var req *request
		if len(q.pending) > 0 {
			req = q.pending[0]
			q.pending = q.pending[1:]
			req.status = StatusProcessing
			q.current = req
		}
		q.mu.Unlock()

		if req == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}

		if err := q.limiter.Wait(ctx); err != nil {
			q.finish(req, Result{Err: ErrQueueClosed})
			return
		}
		q.execute(ctx, req)

		select {
		case <-q.quit:
			return
		default:
		}
	}
}

func (q *Queue) execute(ctx context.Context, req *request) {
	req.attempts++
	q.publishStatus(req, "processing")
	logging.WithRequest(req.id, req.label).WithField("attempt", req.attempts).Debug("Request executing")

	started := time.Now()
	value, err := req.task(ctx)
	if m := services.GetMetrics(); m != nil {
		m.RecordRequestLatency(time.Since(started).Seconds())
	}

	if err == nil {
		req.status = StatusCompleted
		q.finish(req, Result{Value: value})
		q.publishStatus(req, "completed")
		if m := services.GetMetrics(); m != nil {
			m.RecordRequestOutcome("completed")
		}
		return
	}

	if !q.shouldRetry(req, err) {
		req.status = StatusFailed
		q.finish(req, Result{Err: err})
		logging.WithRequest(req.id, req.label).WithField("attempts", req.attempts).WithError(err).Warn("Request failed")
		q.publishStatus(req, "failed")
		if m := services.GetMetrics(); m != nil {
			m.RecordRequestOutcome("failed")
		}
		return
	}

	q.scheduleRetry(req, err)
}

// shouldRetry decides whether a failed attempt goes back on the queue.
// Permanent errors (upstream timeouts wrap as permanent) and context
// cancellation never retry.
func (q *Queue) shouldRetry(req *request, err error) bool {
	if req.attempts >= req.maxRetries {
		return false
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (q *Queue) scheduleRetry(req *request, cause error) {
	if req.retry == nil {
		req.retry = backoff.NewExponentialBackOff()
		req.retry.InitialInterval = 500 * time.Millisecond
		req.retry.MaxInterval = 15 * time.Second
	}
	delay := req.retry.NextBackOff()

	// Demotion: a retried request yields to fresh work at its old priority.
	if req.priority < PriorityLow {
		req.priority++
	}

	q.mu.Lock()
	req.status = StatusPending
	q.current = nil
	closed := q.closed
	if closed {
		req.status = StatusFailed
		req.resolved = true
	}
	q.mu.Unlock()

	if closed {
		req.done <- Result{Err: ErrQueueClosed}
		return
	}

	logging.WithRequest(req.id, req.label).WithFields(logrus.Fields{
		"attempt":  req.attempts,
		"delay":    delay.String(),
		"priority": req.priority.String(),
	}).WithError(cause).Info("Request retry scheduled")
	q.publishStatus(req, "retrying")
	if m := services.GetMetrics(); m != nil {
		m.RecordRetry()
	}

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		if req.status == StatusCancelled {
			// Cancelled during the backoff window; the result was already
			// delivered, the request stays gone.
			q.mu.Unlock()
			return
		}
		if q.closed {
			delivered := req.resolved
			req.resolved = true
			q.mu.Unlock()
			if !delivered {
				req.done <- Result{Err: ErrQueueClosed}
			}
			return
		}
		q.insertLocked(req)
		q.mu.Unlock()
		q.kick()
	})
}

func (q *Queue) finish(req *request, res Result) {
	q.mu.Lock()
	q.current = nil
	delete(q.byID, req.id)
	delivered := req.resolved
	req.resolved = true
	q.mu.Unlock()
	if !delivered {
		req.done <- res
	}
}

func (q *Queue) publishStatus(req *request, change string) {
	if q.bus == nil {
		return
	}
	q.mu.Lock()
	pending := len(q.pending)
	q.mu.Unlock()

	q.bus.Publish(events.TopicQueueStatusChanged, map[string]any{
		"requestId": req.id,
		"label":     req.label,
		"status":    req.status,
		"priority":  req.priority.String(),
		"change":    change,
		"pending":   pending,
		"attempts":  req.attempts,
	})
	if m := services.GetMetrics(); m != nil {
		m.RecordQueueDepth(req.priority.String(), pending)
	}
}
