package bar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(openTime int64, close float64) Bar {
	return Bar{OpenTime: openTime, Open: close, High: close, Low: close, Close: close}
}

func TestStore_OfferOrdersAndDedupes(t *testing.T) {
	s := NewStore(60, 10)
	require.True(t, s.Offer(mk(120, 1)))
	require.True(t, s.Offer(mk(60, 2)))
	require.True(t, s.Offer(mk(180, 3)))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []int64{60, 120, 180}, []int64{snap[0].OpenTime, snap[1].OpenTime, snap[2].OpenTime})
}

func TestStore_ReplaceByOpenTime(t *testing.T) {
	s := NewStore(60, 10)
	s.Offer(mk(60, 1))
	s.Offer(mk(60, 99))

	require.Equal(t, 1, s.Length())
	newest, ok := s.Newest()
	require.True(t, ok)
	assert.Equal(t, 99.0, newest.Close)
}

func TestStore_OfferSameBarTwiceIsIdempotent(t *testing.T) {
	s := NewStore(60, 10)
	b := mk(60, 1)
	s.Offer(b)
	before := s.Snapshot()
	s.Offer(b)
	after := s.Snapshot()
	assert.Equal(t, before, after)
}

func TestStore_OlderThanOldestIsNoOp(t *testing.T) {
	s := NewStore(60, 10)
	s.Offer(mk(120, 1))
	s.Offer(mk(180, 2))
	before := s.Snapshot()

	s.Offer(mk(60, 99))

	after := s.Snapshot()
	assert.Equal(t, before, after)
}

func TestStore_EvictsOldestWhenFull(t *testing.T) {
	s := NewStore(60, 2)
	s.Offer(mk(60, 1))
	s.Offer(mk(120, 2))
	s.Offer(mk(180, 3))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(120), snap[0].OpenTime)
	assert.Equal(t, int64(180), snap[1].OpenTime)
}

func TestStore_RejectsMisalignedOpenTime(t *testing.T) {
	s := NewStore(60, 10)
	ok := s.Offer(mk(65, 1))
	assert.False(t, ok)
	assert.Equal(t, 0, s.Length())
}

func TestStore_SortedAndEquidistantBoundaries(t *testing.T) {
	empty := NewStore(60, 10)
	assert.True(t, empty.SortedAndEquidistant())

	single := NewStore(60, 10)
	single.Offer(mk(60, 1))
	assert.True(t, single.SortedAndEquidistant())

	gapped := NewStore(60, 10)
	gapped.Offer(mk(60, 1))
	gapped.Offer(mk(240, 2))
	assert.False(t, gapped.SortedAndEquidistant())

	tight := NewStore(60, 10)
	tight.Offer(mk(60, 1))
	tight.Offer(mk(120, 2))
	assert.True(t, tight.SortedAndEquidistant())
}

func TestStore_SortedAndEquidistantOfExternal(t *testing.T) {
	s := NewStore(60, 10)
	ok := s.SortedAndEquidistantOf([]Bar{mk(60, 1), mk(120, 2), mk(180, 3)})
	assert.True(t, ok)

	ok = s.SortedAndEquidistantOf([]Bar{mk(60, 1), mk(300, 2)})
	assert.False(t, ok)
}

func TestStore_OutOfOrderDeliveryConvergesToSameState(t *testing.T) {
	// Simulates REST backfill and streaming interleaving: the final state
	// is a function of the set of (open_time, latest_payload) pairs seen,
	// not arrival order.
	viaREST := NewStore(60, 10)
	for _, b := range []Bar{mk(60, 1), mk(120, 2), mk(180, 3)} {
		viaREST.Offer(b)
	}

	viaStream := NewStore(60, 10)
	for _, b := range []Bar{mk(180, 3), mk(60, 1), mk(120, 2)} {
		viaStream.Offer(b)
	}

	assert.Equal(t, viaREST.Snapshot(), viaStream.Snapshot())
}
