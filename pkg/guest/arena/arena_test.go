package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoreCore(t *testing.T) {
	t.Run("GrowsMonotonically", func(t *testing.T) {
		a := New(make([]byte, 1024))
		off1, err := a.MoreCore(100)
		require.NoError(t, err)
		off2, err := a.MoreCore(50)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), off1)
		assert.Equal(t, uint64(100), off2)
		assert.Equal(t, uint64(150), a.Allocated())
	})

	t.Run("ZeroPeeksWithoutAdvancing", func(t *testing.T) {
		a := New(make([]byte, 1024))
		_, err := a.MoreCore(64)
		require.NoError(t, err)
		cur, err := a.MoreCore(0)
		require.NoError(t, err)
		assert.Equal(t, uint64(64), cur)
		assert.Equal(t, uint64(64), a.Allocated())
	})

	t.Run("ExactHeapSizeSucceeds", func(t *testing.T) {
		a := New(make([]byte, 1024))
		_, err := a.MoreCore(1024)
		require.NoError(t, err)
	})

	t.Run("OneByteOverFails", func(t *testing.T) {
		a := New(make([]byte, 1024))
		_, err := a.MoreCore(1025)
		require.ErrorIs(t, err, ErrOutOfMemory)
	})

	t.Run("ExhaustionAcrossCalls", func(t *testing.T) {
		a := New(make([]byte, 1024))
		_, err := a.MoreCore(1000)
		require.NoError(t, err)
		_, err = a.MoreCore(25)
		require.ErrorIs(t, err, ErrOutOfMemory)
	})

	t.Run("NegativeGrowthRejected", func(t *testing.T) {
		a := New(make([]byte, 1024))
		_, err := a.MoreCore(-1)
		require.ErrorIs(t, err, ErrNegativeGrowth)
	})
}

func TestAllocator(t *testing.T) {
	t.Run("AllocAndWrite", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 42)
		_, buf, err := al.AllocBytes(32)
		require.NoError(t, err)
		require.Len(t, buf, 32)
		buf[0] = 0xEE
	})

	t.Run("FreeListReuse", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 42)
		off1, err := al.Alloc(32)
		require.NoError(t, err)
		used := al.arena.Allocated()

		require.NoError(t, al.Free(off1))
		off2, err := al.Alloc(32)
		require.NoError(t, err)

		assert.Equal(t, off1, off2, "same size class reuses the freed block")
		assert.Equal(t, used, al.arena.Allocated(), "reuse does not grow the arena")
	})

	t.Run("FreeNeverReturnsToArena", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 7)
		off, err := al.Alloc(64)
		require.NoError(t, err)
		require.NoError(t, al.Free(off))
		assert.NotZero(t, al.arena.Allocated())
	})

	t.Run("CallocZeroes", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 7)
		off, buf, err := al.AllocBytes(16)
		require.NoError(t, err)
		for i := range buf {
			buf[i] = 0xFF
		}
		require.NoError(t, al.Free(off))

		_, buf2, err := al.Calloc(16)
		require.NoError(t, err)
		for i, b := range buf2 {
			require.Zero(t, b, "byte %d", i)
		}
	})

	t.Run("DoubleFreeRejected", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 7)
		off, err := al.Alloc(16)
		require.NoError(t, err)
		require.NoError(t, al.Free(off))
		require.ErrorIs(t, al.Free(off), ErrBadFree)
	})

	t.Run("FreeOfGarbageOffsetRejected", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 7)
		require.ErrorIs(t, al.Free(3), ErrBadFree)
	})

	t.Run("ReallocPreservesPayload", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 4096)), 7)
		off, buf, err := al.AllocBytes(8)
		require.NoError(t, err)
		copy(buf, "payload!")

		newOff, err := al.Realloc(off, 8, 64)
		require.NoError(t, err)
		grown, err := al.arena.Bytes(newOff, 64)
		require.NoError(t, err)
		assert.Equal(t, "payload!", string(grown[:8]))
	})

	t.Run("ExhaustionSurfacesOutOfMemory", func(t *testing.T) {
		al := NewAllocator(New(make([]byte, 64)), 7)
		_, err := al.Alloc(128)
		require.ErrorIs(t, err, ErrOutOfMemory)
	})

	t.Run("SeedChangesMagic", func(t *testing.T) {
		a1 := NewAllocator(New(make([]byte, 64)), 1)
		a2 := NewAllocator(New(make([]byte, 64)), 2)
		assert.NotEqual(t, a1.magic, a2.magic)
	})
}
