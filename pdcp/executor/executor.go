// Package executor provides the task_executor-equivalent abstraction PDCP
// bearers use to serialize state transitions on named strands: one DL
// (TX) executor, one UL (RX) executor, one control executor, and a shared
// crypto worker pool.
package executor

import "sync"

// Task is a unit of work posted to an Executor.
type Task func()

// Executor serializes Task execution. Execute and Defer both return false
// if the task could not be accepted (e.g. the executor has been stopped).
type Executor interface {
	// Execute runs task, or schedules it to run, preserving submission
	// order relative to other tasks posted to the same Executor.
	Execute(task Task) bool
	// Defer behaves like Execute but signals the caller does not need the
	// task to run before Execute returns (same contract as srsRAN's
	// task_executor::defer).
	Defer(task Task) bool
}

// Inline runs every task synchronously on the caller's goroutine. Required
// for SRBs (spec.md: "for SRBs they are required to be the same inline
// executor so RRC can observe results synchronously").
type Inline struct{}

// NewInline returns an Inline executor.
func NewInline() *Inline { return &Inline{} }

func (*Inline) Execute(task Task) bool {
	task()
	return true
}

func (*Inline) Defer(task Task) bool {
	task()
	return true
}

// Serial is a single goroutine draining a FIFO queue of tasks, giving every
// task posted to it a total order — the Go equivalent of binding a strand
// to one owner goroutine, the pattern the teacher uses for PeerManager/
// PeerSession (one mutex-guarded owner instead of a worker pool).
type Serial struct {
	tasks  chan Task
	done   chan struct{}
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

// NewSerial starts a Serial executor with the given task queue depth.
func NewSerial(queueDepth int) *Serial {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	s := &Serial{
		tasks: make(chan Task, queueDepth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Serial) run() {
	for {
		select {
		case t, ok := <-s.tasks:
			if !ok {
				return
			}
			t()
		case <-s.done:
			return
		}
	}
}

func (s *Serial) Execute(task Task) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	select {
	case s.tasks <- task:
		return true
	default:
		return false
	}
}

func (s *Serial) Defer(task Task) bool {
	return s.Execute(task)
}

// Stop drains no further tasks and releases the worker goroutine. Stop is
// idempotent.
func (s *Serial) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
