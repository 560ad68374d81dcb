package bitmask

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmaskBasics(t *testing.T) {
	b := New()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, uint64(0), b.Count())

	b.Add(3)
	b.Add(7)
	b.Add(3)
	assert.Equal(t, uint64(2), b.Count())
	assert.True(t, b.Contains(3))
	assert.False(t, b.Contains(4))

	b.Remove(3)
	assert.False(t, b.Contains(3))
	assert.Equal(t, uint64(1), b.Count())
}

func TestNewFull(t *testing.T) {
	b := NewFull(10)
	assert.Equal(t, uint64(10), b.Count())
	for i := uint32(0); i < 10; i++ {
		assert.True(t, b.Contains(i))
	}
	assert.False(t, b.Contains(10))
}

func TestSetOperations(t *testing.T) {
	a := FromIndices(1, 2, 3, 4)
	b := FromIndices(3, 4, 5, 6)

	and := And(a, b)
	assert.Equal(t, []uint32{3, 4}, and.ToArray())

	andNot := AndNot(a, b)
	assert.Equal(t, []uint32{1, 2}, andNot.ToArray())

	xor := Xor(a, b)
	assert.Equal(t, []uint32{1, 2, 5, 6}, xor.ToArray())

	// The inputs are untouched.
	assert.Equal(t, uint64(4), a.Count())
	assert.Equal(t, uint64(4), b.Count())

	assert.Equal(t, uint64(2), a.AndCount(b))
}

func TestInPlaceOperations(t *testing.T) {
	a := FromIndices(1, 2, 3)
	a.And(FromIndices(2, 3, 4))
	assert.Equal(t, []uint32{2, 3}, a.ToArray())

	a.Or(FromIndices(9))
	assert.Equal(t, []uint32{2, 3, 9}, a.ToArray())

	a.AndNot(FromIndices(3))
	assert.Equal(t, []uint32{2, 9}, a.ToArray())

	a.Clear()
	assert.True(t, a.IsEmpty())
}

func TestCloneIsIndependent(t *testing.T) {
	a := FromIndices(1, 2)
	b := a.Clone()
	b.Add(3)

	assert.True(t, a.Equals(FromIndices(1, 2)))
	assert.False(t, a.Equals(b))
}

func TestIterator(t *testing.T) {
	b := FromIndices(0, 5, 9)

	var got []uint32
	for i := range b.Iterator() {
		got = append(got, i)
	}
	assert.Equal(t, []uint32{0, 5, 9}, got)
}

func TestKeyIsCanonical(t *testing.T) {
	// The same set reached through different operation histories must
	// serialize to the same key.
	a := FromIndices(1, 2, 3, 4, 5)

	b := NewFull(100)
	b.And(FromIndices(1, 2, 3, 4, 5, 50))
	b.Remove(50)

	c := New()
	for i := uint32(5); i >= 1; i-- {
		c.Add(i)
	}

	require.True(t, a.Equals(b))
	require.True(t, a.Equals(c))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), c.Key())
}

func TestKeyDistinguishesSets(t *testing.T) {
	assert.NotEqual(t, FromIndices(1).Key(), FromIndices(2).Key())
	assert.NotEqual(t, FromIndices(1).Key(), FromIndices(1, 2).Key())
}

func TestKeyConcurrentWithReaders(t *testing.T) {
	// Capture sets are shared read-only across workers, and signatures are
	// taken while other workers intersect against the same mask. Key must
	// not write to the receiver; the race detector flags a regression.
	base := NewFull(4096)
	other := FromIndices(17, 255, 4000)
	want := base.Key()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(keyer bool) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if keyer {
					assert.Equal(t, want, base.Key())
				} else {
					assert.Equal(t, uint64(3), And(base, other).Count())
					assert.True(t, base.Contains(17))
				}
			}
		}(w%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, want, base.Key())
}
