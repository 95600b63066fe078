package build

import "sync"

// streamBuffer is the per-stream channel buffer. Emission never blocks the
// pipeline: when a stream's buffer is full or nobody consumes it, the event
// is dropped.
const streamBuffer = 64

// ProgressUpdate reports pipeline position before a stage runs. Percent is
// in [0,100] and non-decreasing within one run.
type ProgressUpdate struct {
	Stage     string
	Completed int
	Total     int
	Percent   int
}

// Events carries the three notification streams of one build run — textual
// output lines, error lines, and progress updates — plus an end-of-run
// signal. Each stream preserves emission order; no ordering holds across
// streams. Consuming any of them is optional.
//
// The orchestrator owns an Events value for exactly one run and closes it
// when the run reaches a terminal status. Done is closed last, so observers
// that wait on Done can still drain the buffered remainder of the streams.
type Events struct {
	output   chan string
	errs     chan string
	progress chan ProgressUpdate
	done     chan struct{}
	once     sync.Once
}

// NewEvents returns an Events value ready for one run.
func NewEvents() *Events {
	return &Events{
		output:   make(chan string, streamBuffer),
		errs:     make(chan string, streamBuffer),
		progress: make(chan ProgressUpdate, streamBuffer),
		done:     make(chan struct{}),
	}
}

// Output is the textual output stream.
func (e *Events) Output() <-chan string { return e.output }

// Errors is the error line stream.
func (e *Events) Errors() <-chan string { return e.errs }

// Progress is the percent-complete stream.
func (e *Events) Progress() <-chan ProgressUpdate { return e.progress }

// Done is closed once the run is terminal and all streams are closed.
func (e *Events) Done() <-chan struct{} { return e.done }

func (e *Events) emitOutput(line string) {
	if e == nil {
		return
	}
	select {
	case e.output <- line:
	default:
	}
}

func (e *Events) emitError(line string) {
	if e == nil {
		return
	}
	select {
	case e.errs <- line:
	default:
	}
}

func (e *Events) emitProgress(update ProgressUpdate) {
	if e == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// close ends all streams and then signals Done. Idempotent.
func (e *Events) close() {
	if e == nil {
		return
	}
	e.once.Do(func() {
		close(e.output)
		close(e.errs)
		close(e.progress)
		close(e.done)
	})
}
