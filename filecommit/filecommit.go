// Package filecommit writes files atomically on a background loop, with
// optional coalescing of frequent writes.
//
// A [Writer] lives on one loop (its owner), and hands each write to a backend
// loop, normally a thread.Thread dedicated to file IO, so the owner never
// blocks on the filesystem. Each write goes to a temporary file that is
// synced, then renamed over the target, so readers only ever see a complete
// file.
package filecommit

import (
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/logiface"
)

// DefaultCommitInterval is the delay used by ScheduleWrite unless overridden
// with WithCommitInterval.
const DefaultCommitInterval = 10 * time.Second

// Serializer produces the data for a scheduled write. It is called on the
// owning loop, when the write is committed.
type Serializer interface {
	SerializeData() ([]byte, error)
}

// SerializerFunc adapts a function to a Serializer.
type SerializerFunc func() ([]byte, error)

// SerializeData implements Serializer.
func (f SerializerFunc) SerializeData() ([]byte, error) { return f() }

// Writer commits data to a single file. Every method must be called on the
// owning loop's goroutine.
type Writer struct {
	logger     *logiface.Logger[logiface.Event]
	backend    *msgloop.Proxy
	timer      *msgloop.OneShotTimer
	serializer Serializer
	onWrite    func(path string, err error)
	path       string
	interval   time.Duration
	perm       os.FileMode
}

// Option configures a Writer.
type Option func(w *Writer)

// WithCommitInterval sets the delay between the first ScheduleWrite and the
// write.
func WithCommitInterval(d time.Duration) Option {
	return func(w *Writer) { w.interval = d }
}

// WithPerm sets the permissions of the written file. Defaults to 0600.
func WithPerm(perm os.FileMode) Option {
	return func(w *Writer) { w.perm = perm }
}

// WithLogger sets the logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithOnWrite sets a callback, called after each write attempt, on whichever
// goroutine performed it.
func WithOnWrite(fn func(path string, err error)) Option {
	return func(w *Writer) { w.onWrite = fn }
}

// New returns a Writer for path, owned by loop, that writes on backend.
func New(path string, loop *msgloop.Loop, backend *msgloop.Proxy, opts ...Option) *Writer {
	w := &Writer{
		backend:  backend,
		timer:    msgloop.NewOneShotTimer(loop),
		path:     path,
		interval: DefaultCommitInterval,
		perm:     0o600,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Path returns the target file path.
func (w *Writer) Path() string { return w.path }

// CommitInterval returns the delay used by ScheduleWrite.
func (w *Writer) CommitInterval() time.Duration { return w.interval }

// HasPendingWrite reports whether a scheduled write has not yet been
// committed.
func (w *Writer) HasPendingWrite() bool { return w.timer.IsRunning() }

// WriteNow posts a write of data to the backend, replacing any pending
// scheduled write. If the backend is gone, the write happens synchronously.
func (w *Writer) WriteNow(data []byte) {
	if w.HasPendingWrite() {
		w.timer.Stop()
	}
	w.serializer = nil

	if w.backend != nil && w.backend.PostTask(func() { w.write(data) }) {
		return
	}

	w.logger.Warning().Str(`path`, w.path).Log(`file commit backend unavailable, writing synchronously`)
	w.write(data)
}

// ScheduleWrite arranges for s to be serialized and written after the commit
// interval. Calls made while a write is pending only replace the
// serializer, so bursts of changes result in a single write.
func (w *Writer) ScheduleWrite(s Serializer) {
	w.serializer = s
	if !w.HasPendingWrite() {
		w.timer.Start(w.interval, w.DoScheduledWrite)
	}
}

// DoScheduledWrite commits the pending scheduled write now.
func (w *Writer) DoScheduledWrite() {
	s := w.serializer
	w.serializer = nil
	if w.HasPendingWrite() {
		w.timer.Stop()
	}
	if s == nil {
		return
	}
	data, err := s.SerializeData()
	if err != nil {
		w.logger.Err().Str(`path`, w.path).Err(err).Log(`failed to serialize data to be saved`)
		return
	}
	w.WriteNow(data)
}

// Close commits any pending scheduled write.
func (w *Writer) Close() {
	if w.HasPendingWrite() {
		w.DoScheduledWrite()
	}
}

func (w *Writer) write(data []byte) {
	err := renameio.WriteFile(w.path, data, w.perm)
	if err != nil {
		w.logger.Err().Str(`path`, w.path).Err(err).Log(`failed to write file`)
	} else {
		w.logger.Debug().Str(`path`, w.path).Int(`bytes`, len(data)).Log(`committed file`)
	}
	if w.onWrite != nil {
		w.onWrite(w.path, err)
	}
}
