package msgloop

// TaskObserver is notified around every task a Loop runs. Observers are
// called on the loop goroutine, and must be comparable (typically pointers).
type TaskObserver interface {
	// WillProcessTask is called immediately before the task runs.
	WillProcessTask(task PendingTask)

	// DidProcessTask is called immediately after the task returns, including
	// when it panicked and the panic was recovered.
	DidProcessTask(task PendingTask)
}

// DestructionObserver is notified when the loop bound to the current
// goroutine is about to be destroyed, by Loop.Close. The loop is still fully
// usable during the notification, but anything posted to it will never run.
type DestructionObserver interface {
	WillDestroyCurrentLoop()
}
