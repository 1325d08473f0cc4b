package thread

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-msgloop/msgloop"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

// Posting immediately after Start requires no extra synchronization.
func TestThread_postImmediatelyAfterStart(t *testing.T) {
	th := New(`worker`)
	require.NoError(t, th.Start())
	defer th.Stop()

	assert.Equal(t, StateRunning, th.State())
	assert.True(t, th.IsRunning())
	require.NotNil(t, th.Loop())

	ran := make(chan bool, 1)
	require.True(t, th.Proxy().PostTask(func() {
		ran <- th.Proxy().BelongsToCurrentThread() && msgloop.Current() == th.Loop()
	}))
	select {
	case onThread := <-ran:
		assert.True(t, onThread)
	case <-time.After(5 * time.Second):
		t.Fatal(`task did not run`)
	}
	assert.False(t, th.Proxy().BelongsToCurrentThread())
}

func TestThread_Stop(t *testing.T) {
	th := New(`worker`)
	require.NoError(t, th.Start())
	proxy := th.Proxy()

	var ran atomic.Int32
	for range 100 {
		proxy.PostTask(func() { ran.Add(1) })
	}
	require.NoError(t, th.Stop())

	// queued work is not starved by the quit
	assert.Equal(t, int32(100), ran.Load())
	assert.Equal(t, StateStopped, th.State())
	assert.False(t, th.IsRunning())
	assert.True(t, th.ThreadWasQuitProperly())
	assert.Nil(t, th.Loop())
	assert.Nil(t, th.Proxy())
	assert.False(t, proxy.PostTask(func() { ran.Add(1) }))

	// idempotent
	require.NoError(t, th.Stop())
	th.StopSoon()
	assert.Equal(t, StateStopped, th.State())
}

func TestThread_StopSoon(t *testing.T) {
	th := New(`worker`)
	require.NoError(t, th.Start())
	th.StopSoon()
	assert.Equal(t, StateStopRequested, th.State())
	assert.True(t, th.IsRunning())
	th.StopSoon()
	require.NoError(t, th.Stop())
	assert.Equal(t, StateStopped, th.State())
}

func TestThread_neverStarted(t *testing.T) {
	th := New(`idle`)
	assert.Equal(t, StateIdle, th.State())
	assert.Nil(t, th.Proxy())
	th.StopSoon()
	require.NoError(t, th.Stop())
	assert.Equal(t, StateIdle, th.State())
}

func TestThread_restart(t *testing.T) {
	th := New(`worker`)
	require.NoError(t, th.Start())
	assert.ErrorIs(t, th.Start(), ErrAlreadyStarted)
	first := th.Proxy()
	require.NoError(t, th.Stop())

	require.NoError(t, th.Start())
	defer th.Stop()
	second := th.Proxy()
	assert.NotEqual(t, first.LoopID(), second.LoopID())
	assert.False(t, first.PostTask(func() {}))
	assert.True(t, second.PostTask(func() {}))
}

func TestThread_Stop_fromOwnThread(t *testing.T) {
	th := New(`worker`)
	require.NoError(t, th.Start())
	defer th.Stop()

	result := make(chan error, 1)
	th.Proxy().PostTask(func() { result <- th.Stop() })
	assert.ErrorIs(t, <-result, ErrStopFromOwnThread)
	assert.True(t, th.IsRunning())
}

func TestThread_hooks(t *testing.T) {
	var (
		events []string
		mu     sync.Mutex
	)
	record := func(event string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	}
	th := New(`hooked`,
		WithInit(func(loop *msgloop.Loop) error {
			record(`init ` + loop.Name())
			loop.PostTask(func() { record(`posted by init`) })
			return nil
		}),
		WithCleanUp(func(loop *msgloop.Loop) {
			record(`cleanup`)
		}),
		WithLockOSThread(false),
	)
	require.NoError(t, th.Start())
	require.NoError(t, th.Stop())
	assert.Equal(t, []string{`init hooked`, `posted by init`, `cleanup`}, events)
}

func TestThread_initError(t *testing.T) {
	want := errors.New(`init failed`)
	var logs syncBuffer
	th := New(`broken`,
		WithInit(func(*msgloop.Loop) error { return want }),
		WithLogger(newTestLogger(&logs)),
	)
	assert.ErrorIs(t, th.Start(), want)
	assert.Equal(t, StateStopped, th.State())
	assert.Nil(t, th.Loop())
	assert.Contains(t, logs.String(), `thread failed to start`)
}

func TestThread_StartWithOptions_loopOptionsError(t *testing.T) {
	th := New(`worker`)
	err := th.StartWithOptions(Options{LoopOptions: []msgloop.Option{msgloop.WithPump(nil)}})
	assert.Error(t, err)
	assert.False(t, th.IsRunning())

	// recoverable
	require.NoError(t, th.Start())
	require.NoError(t, th.Stop())
}

func TestThread_quitWithoutStop(t *testing.T) {
	var logs syncBuffer
	th := New(`worker`, WithLogger(newTestLogger(&logs)))
	require.NoError(t, th.Start())
	th.Proxy().PostTask(msgloop.QuitTask)

	deadline := time.Now().Add(5 * time.Second)
	for th.State() != StateStopped {
		if time.Now().After(deadline) {
			t.Fatal(`loop did not quit`)
		}
		time.Sleep(time.Millisecond)
	}

	assert.Nil(t, th.Proxy())
	assert.False(t, th.IsRunning())
	assert.False(t, th.ThreadWasQuitProperly())
	assert.Contains(t, logs.String(), `thread loop quit without being stopped`)
	assert.Contains(t, logs.String(), `"loop_name":"worker"`)

	// may be started again, without an intervening Stop
	require.NoError(t, th.Start())
	assert.Equal(t, StateRunning, th.State())
	require.NoError(t, th.Stop())
	assert.True(t, th.ThreadWasQuitProperly())
	assert.Equal(t, StateStopped, th.State())
	require.NoError(t, th.Stop())
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:          `Idle`,
		StateStarting:      `Starting`,
		StateRunning:       `Running`,
		StateStopRequested: `StopRequested`,
		StateStopped:       `Stopped`,
		State(-1):          `Unknown`,
	} {
		assert.Equal(t, want, s.String())
	}
}
