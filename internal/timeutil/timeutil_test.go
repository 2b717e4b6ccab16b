package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundDown_Invariants(t *testing.T) {
	cases := []int64{0, 1, 59, 60, 61, 119, 120, 1_700_000_001}
	for _, tc := range cases {
		got := RoundDown(tc, 60)
		assert.Equal(t, int64(0), got%60, "case %d", tc)
		assert.True(t, tc-60 < got, "case %d", tc)
		assert.True(t, got <= tc, "case %d", tc)
	}
}

func TestRoundDown_NegativeDeltaIsIdentity(t *testing.T) {
	assert.Equal(t, int64(42), RoundDown(42, 0))
	assert.Equal(t, int64(42), RoundDown(42, -5))
}

func TestWindow_EndIsRoundedAndStartIsNBarsBack(t *testing.T) {
	start, end := Window(1_700_000_065, 60, 5)
	assert.Equal(t, int64(0), end%60)
	assert.Equal(t, end-300, start)
}
