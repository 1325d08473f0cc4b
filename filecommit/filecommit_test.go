package filecommit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/go-msgloop/thread"
)

func setup(t *testing.T) (*msgloop.Loop, *thread.Thread, string) {
	t.Helper()
	loop, err := msgloop.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	backend := thread.New(`file`)
	require.NoError(t, backend.Start())
	t.Cleanup(func() { _ = backend.Stop() })
	return loop, backend, filepath.Join(t.TempDir(), `state.json`)
}

func TestWriter_WriteNow(t *testing.T) {
	loop, backend, path := setup(t)
	var onBackend bool
	w := New(path, loop, backend.Proxy(), WithOnWrite(func(p string, err error) {
		assert.Equal(t, path, p)
		assert.NoError(t, err)
		onBackend = backend.Proxy().BelongsToCurrentThread()
	}))
	w.WriteNow([]byte(`{"a":1}`))

	// joins the backend, after the write
	require.NoError(t, backend.Stop())
	assert.True(t, onBackend)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriter_WriteNow_backendGone(t *testing.T) {
	loop, backend, path := setup(t)
	require.NoError(t, backend.Stop())
	w := New(path, loop, backend.Proxy(), WithPerm(0o644))
	w.WriteNow([]byte(`sync`))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `sync`, string(b))
}

func TestWriter_ScheduleWrite_coalesces(t *testing.T) {
	loop, backend, path := setup(t)
	written := make(chan string, 10)
	w := New(path, loop, backend.Proxy(),
		WithCommitInterval(20*time.Millisecond),
		WithOnWrite(func(p string, err error) {
			b, _ := os.ReadFile(p)
			written <- string(b)
		}),
	)
	assert.Equal(t, 20*time.Millisecond, w.CommitInterval())
	assert.Equal(t, path, w.Path())

	var serialized int
	for _, v := range []string{`one`, `two`, `three`} {
		w.ScheduleWrite(SerializerFunc(func() ([]byte, error) {
			serialized++
			return []byte(v), nil
		}))
	}
	assert.True(t, w.HasPendingWrite())

	loop.PostDelayedTask(loop.Quit, 50*time.Millisecond)
	require.NoError(t, loop.Run())
	assert.False(t, w.HasPendingWrite())

	require.NoError(t, backend.Stop())
	assert.Equal(t, 1, serialized)
	require.Len(t, written, 1)
	assert.Equal(t, `three`, <-written)
}

func TestWriter_Close_flushesPending(t *testing.T) {
	loop, backend, path := setup(t)
	w := New(path, loop, backend.Proxy())
	w.ScheduleWrite(SerializerFunc(func() ([]byte, error) { return []byte(`flushed`), nil }))
	assert.Equal(t, DefaultCommitInterval, w.CommitInterval())
	w.Close()
	assert.False(t, w.HasPendingWrite())
	require.NoError(t, backend.Stop())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `flushed`, string(b))
}

func TestWriter_serializeError(t *testing.T) {
	loop, backend, path := setup(t)
	w := New(path, loop, backend.Proxy())
	w.ScheduleWrite(SerializerFunc(func() ([]byte, error) { return nil, errors.New(`nope`) }))
	w.DoScheduledWrite()
	require.NoError(t, backend.Stop())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_writeError(t *testing.T) {
	loop, backend, _ := setup(t)
	done := make(chan error, 1)
	w := New(filepath.Join(t.TempDir(), `missing`, `file`), loop, backend.Proxy(),
		WithOnWrite(func(_ string, err error) { done <- err }))
	w.WriteNow([]byte(`x`))
	assert.Error(t, <-done)
}
