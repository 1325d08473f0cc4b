package msgloop

import (
	"time"
)

// PumpDelegate is implemented by Loop, and driven by a Pump. Each method
// reports whether it did any work.
type PumpDelegate interface {
	// DoWork runs at most one immediate task.
	DoWork() bool

	// DoDelayedWork runs at most one delayed task whose run time has
	// arrived. It sets next to the run time of the earliest remaining
	// delayed task, or to the zero time if there is none.
	DoDelayedWork(next *time.Time) bool

	// DoIdleWork is called when neither of the above did anything.
	DoIdleWork() bool
}

// Pump is the blocking-wait strategy used by a Loop. Alternative pumps
// integrate native event sources.
//
// Run, Quit, and ScheduleDelayedWork are only called on the loop goroutine.
// ScheduleWork may be called from any goroutine. Run must support nesting,
// with Quit stopping only the innermost Run.
type Pump interface {
	// Run calls the delegate's methods until Quit is called, blocking when
	// none of them has work.
	Run(delegate PumpDelegate)

	// Quit causes the innermost Run to return as soon as the current
	// delegate call returns.
	Quit()

	// ScheduleWork wakes the pump, such that DoWork is called soon.
	ScheduleWork()

	// ScheduleDelayedWork records that DoDelayedWork should be called no
	// later than t.
	ScheduleDelayedWork(t time.Time)
}

// defaultPump blocks on a kernel-level waitable signal.
type defaultPump struct {
	event           *waitableEvent
	delayedWorkTime time.Time
	keepRunning     bool
}

// NewDefaultPump returns the pump used unless WithPump is provided. It
// waits on an eventfd (Linux), a self-pipe (Darwin), or a channel (other
// platforms), with a timeout equal to the time until the next delayed task.
func NewDefaultPump() (Pump, error) {
	event, err := newWaitableEvent()
	if err != nil {
		return nil, err
	}
	return &defaultPump{
		event:       event,
		keepRunning: true,
	}, nil
}

func (p *defaultPump) Run(delegate PumpDelegate) {
	for {
		didWork := delegate.DoWork()
		if !p.keepRunning {
			break
		}

		didWork = delegate.DoDelayedWork(&p.delayedWorkTime) || didWork
		if !p.keepRunning {
			break
		}
		if didWork {
			continue
		}

		didWork = delegate.DoIdleWork()
		if !p.keepRunning {
			break
		}
		if didWork {
			continue
		}

		if p.delayedWorkTime.IsZero() {
			p.event.wait(-1)
		} else if delay := time.Until(p.delayedWorkTime); delay > 0 {
			p.event.wait(delay)
		} else {
			// the delayed work is already due
			p.delayedWorkTime = time.Time{}
		}
	}
	p.keepRunning = true
}

func (p *defaultPump) Quit() {
	p.keepRunning = false
}

func (p *defaultPump) ScheduleWork() {
	p.event.signal()
}

func (p *defaultPump) ScheduleDelayedWork(t time.Time) {
	// only called on the loop goroutine, so the pump can't be blocked right
	// now, and only needs to update how long the next wait should be
	p.delayedWorkTime = t
}

// Close releases the waitable signal.
func (p *defaultPump) Close() error {
	return p.event.close()
}
