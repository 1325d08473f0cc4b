package observerlist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obs struct{ name string }

func names(x *List[*obs]) (out []string) {
	x.ForEach(func(o *obs) { out = append(out, o.name) })
	return out
}

func TestList_addRemoveOrder(t *testing.T) {
	var (
		x       List[*obs]
		a, b, c = &obs{"a"}, &obs{"b"}, &obs{"c"}
	)
	x.AddObserver(a)
	x.AddObserver(b)
	x.AddObserver(c)
	x.AddObserver(b)
	require.Equal(t, 3, x.Len())

	assert.True(t, x.RemoveObserver(b))
	assert.False(t, x.RemoveObserver(b))
	assert.False(t, x.HasObserver(b))
	if diff := cmp.Diff([]string{"a", "c"}, names(&x)); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestList_removeDuringIteration(t *testing.T) {
	var (
		x       List[*obs]
		a, b, c = &obs{"a"}, &obs{"b"}, &obs{"c"}
		visited []string
	)
	x.AddObserver(a)
	x.AddObserver(b)
	x.AddObserver(c)
	x.ForEach(func(o *obs) {
		visited = append(visited, o.name)
		if o == a {
			x.RemoveObserver(a)
			x.RemoveObserver(b)
		}
	})
	if diff := cmp.Diff([]string{"a", "c"}, visited); diff != "" {
		t.Errorf("unexpected visits (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, x.Len())
	assert.Len(t, x.slots, 1)
}

func TestList_addDuringIteration(t *testing.T) {
	for _, tc := range []struct {
		mode Mode
		want []string
	}{
		{NotifyAll, []string{"a", "b"}},
		{NotifyExistingOnly, []string{"a"}},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			x := New[*obs](tc.mode)
			b := &obs{"b"}
			x.AddObserver(&obs{"a"})
			var visited []string
			x.ForEach(func(o *obs) {
				visited = append(visited, o.name)
				x.AddObserver(b)
			})
			if diff := cmp.Diff(tc.want, visited); diff != "" {
				t.Errorf("unexpected visits (-want +got):\n%s", diff)
			}
			assert.Equal(t, 2, x.Len())
		})
	}
}

func TestList_clearDuringNestedIteration(t *testing.T) {
	var x List[*obs]
	x.AddObserver(&obs{"a"})
	x.AddObserver(&obs{"b"})
	var calls int
	x.ForEach(func(*obs) {
		calls++
		x.ForEach(func(*obs) { x.Clear() })
		assert.Len(t, x.slots, 2, "compaction must wait for the outermost iteration")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, x.Len())
	assert.Empty(t, x.slots)
}
