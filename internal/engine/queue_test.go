package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func TestWorkQueue_FIFO(t *testing.T) {
	q := newWorkQueue()
	for _, target := range []string{"a", "b", "c"} {
		q.push(workItem{target: target, value: ir.IRString(target)})
	}
	require.Equal(t, 3, q.Len())

	var got []string
	for {
		item, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, item.target)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, q.Len())
}

func TestWorkQueue_PopEmpty(t *testing.T) {
	q := newWorkQueue()
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestWorkQueue_InterleavedPushPop(t *testing.T) {
	q := newWorkQueue()
	q.push(workItem{target: "a"})
	q.push(workItem{target: "b"})

	first, _ := q.pop()
	q.push(workItem{target: "c", origin: "a"})
	second, _ := q.pop()
	third, _ := q.pop()

	assert.Equal(t, "a", first.target)
	assert.Equal(t, "b", second.target)
	assert.Equal(t, "c", third.target)
	assert.Equal(t, "a", third.origin)
}

func TestWorkQueue_Clear(t *testing.T) {
	q := newWorkQueue()
	q.push(workItem{target: "a", derived: true})
	q.push(workItem{target: "b"})

	q.clear()

	assert.Equal(t, 0, q.Len())
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestEngine_QueueEmptyBetweenCalls(t *testing.T) {
	e := newTestEngine(t, newNet().
		contact("a", ir.BlendMerge).
		contact("b", ir.BlendMerge).
		wire("w", "a", "b", true).
		build())

	require.NoError(t, e.SetValue("a", ir.IRInt(1)))
	assert.Equal(t, 0, e.QueueLen())
}
