package msgloop

import (
	"container/heap"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-msgloop/internal/observerlist"
	"github.com/joeycumines/logiface"
)

// Loop is a cooperative, single-goroutine task scheduler.
//
// A Loop is bound to the goroutine that called New, which is the only
// goroutine that may Run it, Quit it, register observers, or Close it. Tasks
// may be posted from any goroutine.
//
// Thread Safety: the incoming queue is guarded by incomingMu. Every other
// queue, the run-state stack, and the observer lists belong to the loop
// goroutine and are never locked.
type Loop struct {
	_ [0]func() // no copy

	pump   Pump
	proxy  *Proxy
	logger *logiface.Logger[logiface.Event]

	panicHandler func(error)

	// incoming is the only queue touched by other goroutines
	incoming     taskQueue
	work         taskQueue
	deferred     taskQueue
	delayed      delayedTaskQueue
	runState     *runState
	taskObs      observerlist.List[TaskObserver]
	destroyObs   observerlist.List[DestructionObserver]
	name         atomic.Pointer[string]
	nextSequence uint64
	id           uint64
	gid          uint64
	incomingMu   sync.Mutex

	// closed is guarded by incomingMu, and set once the loop stops
	// accepting tasks
	closed bool

	// closing is owned by the loop goroutine, and set when Close begins
	closing bool

	nestableTasksAllowed bool
	debugMode            bool
	propagatePanics      bool
}

// runState is the per-Run activation record. Quit affects only the
// innermost (l.runState).
type runState struct {
	previous     *runState
	depth        int
	quitReceived bool
}

// New creates a loop, bound to the calling goroutine. It returns
// ErrLoopAlreadyBound if the calling goroutine already has one.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	gid := getGoroutineID()
	if Current() != nil {
		return nil, ErrLoopAlreadyBound
	}

	pump, err := cfg.pumpFactory()
	if err != nil {
		return nil, fmt.Errorf("msgloop: failed to create pump: %w", err)
	}

	l := &Loop{
		pump:                 pump,
		logger:               cfg.logger,
		panicHandler:         cfg.panicHandler,
		id:                   loopIDs.Add(1),
		gid:                  gid,
		nestableTasksAllowed: true,
		debugMode:            cfg.debugMode,
		propagatePanics:      cfg.propagatePanics,
	}
	l.name.Store(&cfg.name)
	l.proxy = &Proxy{target: l, id: l.id}

	if err := bindings.Get().bind(gid, l); err != nil {
		if c, ok := pump.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}

	if cfg.metrics != nil {
		obs := cfg.metrics.observe(l)
		l.AddTaskObserver(obs)
		l.AddDestructionObserver(obs)
	}

	l.log(l.logger.Debug()).Log(`loop created`)

	return l, nil
}

// ID returns the loop's process-unique identifier, which is never reused.
func (l *Loop) ID() uint64 { return l.id }

// Name returns the name set by WithName or SetName.
func (l *Loop) Name() string { return *l.name.Load() }

// SetName renames the loop, e.g. to match its hosting thread. Safe for
// concurrent use.
func (l *Loop) SetName(name string) { l.name.Store(&name) }

// Proxy returns the loop's thread-safe handle, which outlives the loop.
func (l *Loop) Proxy() *Proxy { return l.proxy }

// PostTask schedules task to run on the loop goroutine. It is safe to call
// from any goroutine. After Close the task is dropped (or, in debug mode,
// PostTask panics with ErrLoopClosed).
func (l *Loop) PostTask(task func()) {
	l.postTask(task, 0, true, false)
}

// PostDelayedTask schedules task to run no sooner than delay from now.
func (l *Loop) PostDelayedTask(task func(), delay time.Duration) {
	l.postTask(task, delay, true, false)
}

// PostNonNestableTask is like PostTask, but the task will not run from within
// a nested Run. If it is reached by a nested Run, it is deferred until the
// outermost Run resumes.
func (l *Loop) PostNonNestableTask(task func()) {
	l.postTask(task, 0, false, false)
}

// PostNonNestableDelayedTask combines PostDelayedTask and PostNonNestableTask.
func (l *Loop) PostNonNestableDelayedTask(task func(), delay time.Duration) {
	l.postTask(task, delay, false, false)
}

func (l *Loop) postTask(task func(), delay time.Duration, nestable, viaProxy bool) bool {
	if task == nil {
		return false
	}

	pending := PendingTask{
		Task:       task,
		TimePosted: time.Now(),
		Nestable:   nestable,
	}
	if delay > 0 {
		pending.DelayedRunTime = pending.TimePosted.Add(delay)
	}

	l.incomingMu.Lock()
	defer l.incomingMu.Unlock()

	if l.closed {
		if l.debugMode && !viaProxy {
			panic(ErrLoopClosed)
		}
		l.log(l.logger.Warning().Limit()).Log(`dropped task posted to a closed loop`)
		return false
	}

	l.nextSequence++
	pending.Sequence = l.nextSequence

	wasEmpty := l.incoming.len() == 0
	l.incoming.push(pending)

	// The loop only blocks after finding the incoming queue empty, so only
	// the first task needs to wake it. Scheduling under the lock ensures
	// the pump isn't closed concurrently.
	if wasEmpty {
		l.pump.ScheduleWork()
	}

	return true
}

// Run runs the loop until Quit or QuitNow is called, on the loop goroutine.
// Run may be called from within a task, which starts a nested loop, that
// runs nestable tasks only, until it quits.
func (l *Loop) Run() error {
	return l.run(false)
}

// RunAllPending runs tasks until the loop would otherwise block, then
// returns. Delayed tasks that are not yet due are not waited for.
func (l *Loop) RunAllPending() error {
	return l.run(true)
}

func (l *Loop) run(quitWhenIdle bool) error {
	if !l.isLoopGoroutine() {
		return ErrNotLoopGoroutine
	}
	if l.closing {
		return ErrLoopClosed
	}

	rs := &runState{
		previous:     l.runState,
		quitReceived: quitWhenIdle,
		depth:        1,
	}
	if rs.previous != nil {
		rs.depth = rs.previous.depth + 1
		// entered from within a task, which disallowed nesting
		allowed := l.nestableTasksAllowed
		l.nestableTasksAllowed = true
		defer func() { l.nestableTasksAllowed = allowed }()
	}

	l.runState = rs
	defer func() { l.runState = rs.previous }()

	l.log(l.logger.Trace()).Int(`depth`, rs.depth).Log(`run`)

	l.pump.Run(l)

	return nil
}

// Quit causes the innermost Run to return once it has no more ready work.
// It is a no-op when the loop is not running, and panics with
// ErrNotLoopGoroutine if not called on the loop goroutine. To quit from
// another goroutine, post Quit (or QuitTask) to the loop.
func (l *Loop) Quit() {
	l.mustBeLoopGoroutine()
	if l.runState == nil {
		l.log(l.logger.Debug()).Log(`quit called without an active run`)
		return
	}
	l.runState.quitReceived = true
}

// QuitNow causes the innermost Run to return as soon as the current task
// finishes, abandoning any other ready work.
func (l *Loop) QuitNow() {
	l.mustBeLoopGoroutine()
	if l.runState == nil {
		l.log(l.logger.Debug()).Log(`quit now called without an active run`)
		return
	}
	l.pump.Quit()
}

// SetNestableTasksAllowed controls whether a nested Run may dispatch tasks.
// Nesting is disallowed while each task runs, so a task that needs to pump
// nested work (without calling Run directly) must allow it first.
func (l *Loop) SetNestableTasksAllowed(allowed bool) {
	l.mustBeLoopGoroutine()
	if allowed && !l.nestableTasksAllowed {
		// a pump may be blocked, having been told there was nothing to do
		l.pump.ScheduleWork()
	}
	l.nestableTasksAllowed = allowed
}

// NestableTasksAllowed reports the value last set by SetNestableTasksAllowed.
func (l *Loop) NestableTasksAllowed() bool {
	l.mustBeLoopGoroutine()
	return l.nestableTasksAllowed
}

// IsNested reports whether a nested Run is active.
func (l *Loop) IsNested() bool {
	return l.Depth() > 1
}

// Depth returns the number of active Run calls.
func (l *Loop) Depth() int {
	l.mustBeLoopGoroutine()
	if l.runState == nil {
		return 0
	}
	return l.runState.depth
}

// AddTaskObserver registers obs. Must be called on the loop goroutine.
func (l *Loop) AddTaskObserver(obs TaskObserver) {
	l.mustBeLoopGoroutine()
	l.taskObs.AddObserver(obs)
}

// RemoveTaskObserver unregisters obs. Must be called on the loop goroutine.
func (l *Loop) RemoveTaskObserver(obs TaskObserver) {
	l.mustBeLoopGoroutine()
	l.taskObs.RemoveObserver(obs)
}

// AddDestructionObserver registers obs. Must be called on the loop
// goroutine.
func (l *Loop) AddDestructionObserver(obs DestructionObserver) {
	l.mustBeLoopGoroutine()
	l.destroyObs.AddObserver(obs)
}

// RemoveDestructionObserver unregisters obs. Must be called on the loop
// goroutine.
func (l *Loop) RemoveDestructionObserver(obs DestructionObserver) {
	l.mustBeLoopGoroutine()
	l.destroyObs.RemoveObserver(obs)
}

// Close destroys the loop, which must not be running. Queued tasks are
// dropped, destruction observers are notified, the proxy is detached, the
// pump is closed (if it implements io.Closer), and the calling goroutine is
// unbound, such that it may create a new loop.
//
// Close returns ErrLoopClosed if called more than once, and ErrLoopRunning
// if called from within Run.
func (l *Loop) Close() error {
	if !l.isLoopGoroutine() {
		return ErrNotLoopGoroutine
	}
	if l.closing {
		return ErrLoopClosed
	}
	if l.runState != nil {
		return ErrLoopRunning
	}
	l.closing = true

	dropped := l.dropPendingTasks()

	l.destroyObs.ForEach(func(obs DestructionObserver) {
		obs.WillDestroyCurrentLoop()
	})

	l.proxy.detach()

	l.incomingMu.Lock()
	l.closed = true
	l.incomingMu.Unlock()

	// anything posted by destruction observers
	dropped += l.dropPendingTasks()

	bindings.Get().unbind(l.gid, l)

	var err error
	if c, ok := l.pump.(io.Closer); ok {
		err = c.Close()
	}

	l.log(l.logger.Debug()).Int(`dropped`, dropped).Log(`loop closed`)

	return err
}

func (l *Loop) dropPendingTasks() int {
	l.incomingMu.Lock()
	incoming, n := l.incoming.clear(l.debugMode)
	l.incomingMu.Unlock()

	work, n2 := l.work.clear(l.debugMode)
	deferred, n3 := l.deferred.clear(l.debugMode)
	delayed := l.delayed
	l.delayed = nil
	n += n2 + n3 + len(delayed)

	if l.debugMode {
		for _, tasks := range [...][]PendingTask{work, deferred, delayed, incoming} {
			for _, task := range tasks {
				l.log(l.logger.Debug()).
					Uint64(`sequence`, task.Sequence).
					Time(`posted`, task.TimePosted).
					Log(`dropped pending task`)
			}
		}
	}

	return n
}

// DoWork implements PumpDelegate. It must only be called by the loop's pump.
func (l *Loop) DoWork() bool {
	if !l.nestableTasksAllowed {
		// a task is running, and hasn't allowed nested dispatch
		return false
	}

	// tasks deferred by a nested Run go before anything else
	if l.processNextDeferredTask() {
		return true
	}

	for {
		l.reloadWorkQueue()
		if l.work.len() == 0 {
			return false
		}
		for l.work.len() != 0 {
			pending, _ := l.work.pop()
			if pending.IsDelayed() {
				heap.Push(&l.delayed, pending)
				if l.delayed[0].Sequence == pending.Sequence {
					l.pump.ScheduleDelayedWork(pending.DelayedRunTime)
				}
			} else if l.deferOrRunPendingTask(pending) {
				return true
			}
		}
	}
}

// DoDelayedWork implements PumpDelegate. It must only be called by the loop's
// pump.
func (l *Loop) DoDelayedWork(next *time.Time) bool {
	if !l.nestableTasksAllowed {
		return false
	}
	if len(l.delayed) == 0 {
		*next = time.Time{}
	} else {
		*next = l.delayed[0].DelayedRunTime
	}

	// deferred tasks may predate every due delayed task
	if l.processNextDeferredTask() {
		return true
	}

	if len(l.delayed) == 0 {
		return false
	}
	if runTime := l.delayed[0].DelayedRunTime; runTime.After(time.Now()) {
		*next = runTime
		return false
	}

	pending := heap.Pop(&l.delayed).(PendingTask)
	if len(l.delayed) != 0 {
		*next = l.delayed[0].DelayedRunTime
	} else {
		*next = time.Time{}
	}

	return l.deferOrRunPendingTask(pending)
}

// DoIdleWork implements PumpDelegate. It must only be called by the loop's
// pump.
func (l *Loop) DoIdleWork() bool {
	if l.processNextDeferredTask() {
		return true
	}
	if l.runState.quitReceived {
		l.pump.Quit()
	}
	return false
}

func (l *Loop) reloadWorkQueue() {
	if l.work.len() != 0 {
		return
	}
	l.incomingMu.Lock()
	l.incoming.swap(&l.work)
	l.incomingMu.Unlock()
}

// deferOrRunPendingTask runs the task, reporting true, unless it is
// non-nestable and a nested Run is active, in which case it is deferred.
func (l *Loop) deferOrRunPendingTask(pending PendingTask) bool {
	if pending.Nestable || l.runState.depth == 1 {
		l.runTask(pending)
		return true
	}
	l.deferred.push(pending)
	return false
}

// processNextDeferredTask runs the oldest deferred task, if the outermost
// Run is the innermost.
func (l *Loop) processNextDeferredTask() bool {
	if l.runState.depth != 1 {
		return false
	}
	pending, ok := l.deferred.pop()
	if !ok {
		return false
	}
	l.runTask(pending)
	return true
}

func (l *Loop) runTask(pending PendingTask) {
	l.nestableTasksAllowed = false
	defer func() { l.nestableTasksAllowed = true }()

	l.taskObs.ForEach(func(obs TaskObserver) {
		obs.WillProcessTask(pending)
	})

	l.invoke(pending.Task)

	l.taskObs.ForEach(func(obs TaskObserver) {
		obs.DidProcessTask(pending)
	})
}

func (l *Loop) invoke(task func()) {
	if l.propagatePanics {
		task()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r, Stack: debug.Stack()}
			l.log(l.logger.Err()).
				Err(err).
				Str(`stack`, string(err.Stack)).
				Log(`task panicked`)
			if l.panicHandler != nil {
				l.panicHandler(err)
			}
		}
	}()
	task()
}

func (l *Loop) isLoopGoroutine() bool {
	return getGoroutineID() == l.gid
}

func (l *Loop) mustBeLoopGoroutine() {
	if !l.isLoopGoroutine() {
		panic(ErrNotLoopGoroutine)
	}
}

func (l *Loop) log(b *logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event] {
	if !b.Enabled() {
		return b
	}
	return b.Uint64(`loop`, l.id).Str(`loop_name`, l.Name())
}
