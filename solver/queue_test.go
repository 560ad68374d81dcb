package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByPriority(t *testing.T) {
	q := newMessageQueue()
	q.Push(message{kind: exploreMessage, priority: 0.1, order: "a"})
	q.Push(message{kind: exploreMessage, priority: 0.9, order: "b"})
	q.Push(message{kind: exploreMessage, priority: 0.5, order: "c"})

	var got []string
	for {
		m, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, m.order)
	}
	assert.Equal(t, []string{"b", "c", "a"}, got)
}

func TestQueueTieBreaks(t *testing.T) {
	// Same priority: exploitations first, then lexicographic order, so
	// the pop sequence is independent of insertion order.
	msgs := []message{
		{kind: exploreMessage, priority: 0.5, order: "b"},
		{kind: exploitMessage, priority: 0.5, order: "z"},
		{kind: exploreMessage, priority: 0.5, order: "a"},
	}

	for _, perm := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}} {
		q := newMessageQueue()
		for _, i := range perm {
			q.Push(msgs[i])
		}

		first, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, exploitMessage, first.kind)

		second, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, "a", second.order)

		third, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, "b", third.order)
	}
}

func TestQueueEmptyPop(t *testing.T) {
	q := newMessageQueue()
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())

	q.Push(message{})
	assert.Equal(t, 1, q.Len())
}
