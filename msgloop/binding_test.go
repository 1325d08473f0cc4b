package msgloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetGoroutineID(t *testing.T) {
	id := getGoroutineID()
	assert.NotZero(t, id)
	assert.Equal(t, id, getGoroutineID())

	other := make(chan uint64)
	go func() { other <- getGoroutineID() }()
	otherID := <-other
	assert.NotZero(t, otherID)
	assert.NotEqual(t, id, otherID)
}

func TestCurrent_otherGoroutine(t *testing.T) {
	loop := newTestLoop(t)
	assert.Same(t, loop, Current())

	other := make(chan *Loop)
	go func() { other <- Current() }()
	assert.Nil(t, <-other)
}
