// Package msgloop implements a cooperative, single-goroutine task scheduler,
// with support for delayed tasks, reentrant (nested) execution, and safe
// submission from other goroutines.
//
// # Architecture
//
// A [Loop] is bound to the goroutine that created it, which is also the only
// goroutine that runs its tasks. Work flows through four queues:
//   - the incoming queue, the only one guarded by a mutex, which every post
//     appends to, from any goroutine
//   - the work queue, which the incoming queue is swapped into (in O(1)) when
//     the work queue is empty
//   - a min-heap of delayed tasks, ordered by run time, then by sequence
//   - a queue of non-nestable tasks, deferred while a nested Run was active
//
// Blocking is delegated to a [Pump], which calls back into the loop through
// the three [PumpDelegate] methods. The default pump waits on an eventfd
// (Linux), a self-pipe (Darwin), or a channel, with a timeout equal to the
// time until the next delayed task is due.
//
// # Ordering
//
//   - Immediate tasks posted by the same goroutine run in the order posted.
//   - Delayed tasks never run before their run time, and tasks with equal run
//     times run in the order posted. There is no bound on lateness.
//   - Tasks posted by different goroutines are not ordered relative to one
//     another.
//   - A non-nestable task reached while a nested Run is active runs after
//     that Run returns, before anything the outer Run would run next.
//
// # Lifecycle
//
// A loop is created by [New], run by [Loop.Run], and destroyed by
// [Loop.Close], all on the bound goroutine. [Proxy] is a handle that may be
// shared with other goroutines, and outlives the loop: posting through it
// after Close is a no-op, reported by a false result.
//
// # Usage
//
//	loop, err := msgloop.New(msgloop.WithName(`main`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	proxy := loop.Proxy()
//	go func() {
//	    proxy.PostTask(func() { fmt.Println(`hello from the loop goroutine`) })
//	    proxy.PostTask(msgloop.QuitTask)
//	}()
//
//	if err := loop.Run(); err != nil {
//	    log.Fatal(err)
//	}
package msgloop
