// Package runtime implements the counter engine, ready queues, worker
// pool, machine runner, and control state (C2–C5, C7 of spec.md §2) on top
// of a frozen graph.Registry.
//
// Grounded in the teacher's internal/dag.Executor (worker pool shape,
// dependency-release algorithm) and directly in
// original_source/source/main.cpp's mutex/condvar scheduler, which this
// package follows closely: a single mutex guards both ready queues and all
// per-execution counters, with two condition variables sharing it.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/vine/internal/ctxlog"
	"github.com/vk/vine/internal/glocal"
	"github.com/vk/vine/internal/graph"
	"github.com/vk/vine/internal/task"
)

// ErrNoInitialMachine is returned by MainLoop when the registry has no
// designated initial machine — the Go equivalent of the source's abort()
// on startup.
var ErrNoInitialMachine = errors.New("runtime: no initial machine declared")

type funcLocant struct {
	stageIdx int
	funcIdx  int
}

type taskItem struct {
	resolver task.Resolver
	fn       task.Func
	arg      any
}

// Engine is the runtime singleton described in spec.md §9: it owns the
// frozen registry, the ready queues, the per-execution counters, the
// worker pool, and the control state. Construct one with New and drive it
// with MainLoop.
type Engine struct {
	reg *graph.Registry

	maxThreads int
	numWorkers int

	logger *slog.Logger

	// q guards funcQueue, taskQueue, and every per-execution counter below.
	// workCV and doneCV both share it, exactly as spec.md §4.2 requires.
	q      sync.Mutex
	workCV *sync.Cond
	doneCV *sync.Cond

	funcQueue []funcLocant
	taskQueue []taskItem

	machine        graph.MachineGraphView
	stageRemaining []int
	funcRemaining  [][]int
	funcsInflight  []int32

	funcsInflightTotal atomic.Int64

	poolTerminate bool
	wg            sync.WaitGroup

	workerIDs sync.Map // glocal.ID() -> worker index, for ThreadID/Batch

	ctrl   controlState
	events EventSink
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMaxThreads bounds the worker-pool size, the Go equivalent of the
// source's VINE_MAX_THREADS compile-time option. Values <= 0 mean
// unbounded (limited only by runtime.NumCPU()).
func WithMaxThreads(n int) Option {
	return func(e *Engine) {
		e.maxThreads = n
	}
}

// New constructs an Engine over a finalized registry. If the registry
// declares an initial machine, it is queued as the first machine to run.
func New(reg *graph.Registry, opts ...Option) *Engine {
	e := &Engine{reg: reg}
	e.workCV = sync.NewCond(&e.q)
	e.doneCV = sync.NewCond(&e.q)

	for _, opt := range opts {
		opt(e)
	}

	if m, ok := reg.InitialMachine(); ok {
		e.ctrl.setQueued(m)
	}

	return e
}

func (e *Engine) workerCount() int {
	n := runtime.NumCPU()
	if e.maxThreads > 0 && e.maxThreads < n {
		n = e.maxThreads
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ThreadCount returns the number of worker goroutines in the pool. Valid
// once MainLoop has started; zero beforehand.
func (e *Engine) ThreadCount() int {
	return e.numWorkers
}

// ThreadID returns the calling worker's index in [0, ThreadCount()). It
// returns -1 when called from a goroutine that isn't a pool worker (e.g.
// the goroutine driving MainLoop, or a user's own goroutine).
func (e *Engine) ThreadID() int {
	v, ok := e.workerIDs.Load(glocal.ID())
	if !ok {
		return -1
	}
	return v.(int)
}

// MainLoop is the process contract of spec.md §6: it applies the queued
// machine, aborts if none was ever designated, finalizes the registry,
// allocates the worker pool, and then repeatedly runs the current machine
// until a shutdown is requested.
func (e *Engine) MainLoop(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	e.logger = logger

	e.ctrl.apply()
	current, ok := e.ctrl.getCurrent()
	if !ok {
		return ErrNoInitialMachine
	}

	if err := e.reg.Finalize(); err != nil {
		return err
	}

	e.numWorkers = e.workerCount()
	logger.Info("starting worker pool", "workers", e.numWorkers)
	e.startWorkers()

	e.emit(EventMachineStarted, current)

	for {
		logger.Debug("running machine", "machine", current)
		e.RunOnce(current)
		logger.Debug("machine quiesced", "machine", current)
		e.emit(EventMachineQuiesced, current)

		e.ctrl.apply()
		next, _ := e.ctrl.getCurrent()
		if next != current {
			e.emit(EventMachineSwapped, next)
		}
		current = next

		if e.ctrl.getShutdownRequested() {
			e.emit(EventShutdownRequested, current)
			break
		}

		e.emit(EventMachineStarted, current)
	}

	logger.Info("shutdown requested, stopping worker pool")
	e.stopWorkers()
	return nil
}

func (e *Engine) startWorkers() {
	e.q.Lock()
	e.poolTerminate = false
	e.q.Unlock()

	e.wg.Add(e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(i)
	}
}

func (e *Engine) stopWorkers() {
	e.q.Lock()
	e.poolTerminate = true
	e.q.Unlock()
	e.workCV.Broadcast()
	e.wg.Wait()
}

// SetMachine queues m to run after the current machine execution finishes.
// Per invariant 7, it has no observable effect until the running machine
// quiesces.
func (e *Engine) SetMachine(m graph.MachineID) {
	e.ctrl.setQueued(m)
}

// RequestShutdown asks the runtime to terminate once the current machine
// execution finishes.
func (e *Engine) RequestShutdown() {
	e.ctrl.requestShutdown()
}

// Issue enqueues an asynchronous task and returns immediately with a
// promise for its completion (P5: never blocks on function work).
func (e *Engine) Issue(fn task.Func, arg any) task.Promise {
	p, r := task.New()

	e.q.Lock()
	e.taskQueue = append(e.taskQueue, taskItem{resolver: r, fn: fn, arg: arg})
	e.q.Unlock()
	e.workCV.Broadcast()

	return p
}
