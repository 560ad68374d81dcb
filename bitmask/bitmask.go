package bitmask

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmask is a set of row (or feature) indices backed by a Roaring Bitmap.
// It wraps the official roaring implementation.
//
// Capture sets, feature column masks and feature sets throughout the engine
// are Bitmasks. All mutating operations are in place; callers that need to
// preserve the receiver must Clone first.
type Bitmask struct {
	rb *roaring.Bitmap
}

// New creates a new empty bitmask.
func New() *Bitmask {
	return &Bitmask{
		rb: roaring.New(),
	}
}

// NewFull creates a bitmask with all indices in [0, n) set.
func NewFull(n int) *Bitmask {
	rb := roaring.New()
	if n > 0 {
		rb.AddRange(0, uint64(n))
	}
	return &Bitmask{rb: rb}
}

// FromIndices creates a bitmask containing exactly the given indices.
func FromIndices(indices ...uint32) *Bitmask {
	return &Bitmask{rb: roaring.BitmapOf(indices...)}
}

// Add adds an index to the bitmask.
func (b *Bitmask) Add(i uint32) {
	b.rb.Add(i)
}

// Remove removes an index from the bitmask.
func (b *Bitmask) Remove(i uint32) {
	b.rb.Remove(i)
}

// Contains checks if an index is in the bitmask.
func (b *Bitmask) Contains(i uint32) bool {
	return b.rb.Contains(i)
}

// IsEmpty returns true if the bitmask is empty.
func (b *Bitmask) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Count returns the number of indices in the bitmask.
func (b *Bitmask) Count() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns a deep copy of the bitmask.
func (b *Bitmask) Clone() *Bitmask {
	return &Bitmask{
		rb: b.rb.Clone(),
	}
}

// Equals reports whether both bitmasks contain the same indices.
func (b *Bitmask) Equals(other *Bitmask) bool {
	return b.rb.Equals(other.rb)
}

// And computes the intersection with other in place.
func (b *Bitmask) And(other *Bitmask) {
	b.rb.And(other.rb)
}

// AndNot removes all indices of other in place.
func (b *Bitmask) AndNot(other *Bitmask) {
	b.rb.AndNot(other.rb)
}

// Or computes the union with other in place.
func (b *Bitmask) Or(other *Bitmask) {
	b.rb.Or(other.rb)
}

// Xor computes the symmetric difference with other in place.
func (b *Bitmask) Xor(other *Bitmask) {
	b.rb.Xor(other.rb)
}

// AndCount returns the cardinality of the intersection without materializing it.
func (b *Bitmask) AndCount(other *Bitmask) uint64 {
	return b.rb.AndCardinality(other.rb)
}

// Clear removes all indices from the bitmask.
func (b *Bitmask) Clear() {
	b.rb.Clear()
}

// Iterator returns an iterator over the set indices in ascending order.
func (b *Bitmask) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// ToArray returns the set indices in ascending order.
func (b *Bitmask) ToArray() []uint32 {
	return b.rb.ToArray()
}

// Key returns a canonical byte-string identity for the bitmask, suitable as
// a map key. Equal sets always produce equal keys: the bitmap is normalized
// with RunOptimize before serialization so the container layout depends on
// content only, not on the operation history that produced it. The
// normalization runs on a private copy; the receiver is never written, so
// Key is safe to call concurrently with other readers.
func (b *Bitmask) Key() string {
	normalized := b.rb.Clone()
	normalized.RunOptimize()
	data, err := normalized.ToBytes()
	if err != nil {
		// ToBytes writes to an in-memory buffer and cannot fail.
		panic("bitmask: serialize: " + err.Error())
	}
	return string(data)
}

// String returns a human-readable representation.
func (b *Bitmask) String() string {
	return b.rb.String()
}

// GetSizeInBytes returns the size of the bitmask in bytes.
func (b *Bitmask) GetSizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}

// And returns the intersection of two bitmasks as a new bitmask.
func And(a, b *Bitmask) *Bitmask {
	return &Bitmask{rb: roaring.And(a.rb, b.rb)}
}

// AndNot returns a minus b as a new bitmask.
func AndNot(a, b *Bitmask) *Bitmask {
	return &Bitmask{rb: roaring.AndNot(a.rb, b.rb)}
}

// Xor returns the symmetric difference of two bitmasks as a new bitmask.
func Xor(a, b *Bitmask) *Bitmask {
	return &Bitmask{rb: roaring.Xor(a.rb, b.rb)}
}
