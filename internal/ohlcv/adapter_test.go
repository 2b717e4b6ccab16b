package ohlcv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSeconds_MagnitudeHeuristic(t *testing.T) {
	for tSeconds := int64(1_000_000_000); tSeconds <= 9_999_999_999; tSeconds += 1_234_567_891 {
		got, err := EnsureSeconds(tSeconds)
		require.NoError(t, err)
		assert.Equal(t, tSeconds, got)

		got, err = EnsureSeconds(tSeconds * 1000)
		require.NoError(t, err)
		assert.Equal(t, tSeconds, got)

		got, err = EnsureSeconds(tSeconds * 1_000_000)
		require.NoError(t, err)
		assert.Equal(t, tSeconds, got)

		got, err = EnsureSeconds(tSeconds * 1_000_000_000)
		require.NoError(t, err)
		assert.Equal(t, tSeconds, got)
	}
}

func TestEnsureSeconds_StringsAndISO(t *testing.T) {
	got, err := EnsureSeconds("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got)

	got, err = EnsureSeconds("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got)
}

func TestConvertEnsureRoundTrip(t *testing.T) {
	units := []TimestampUnit{Seconds, Milliseconds, Microseconds}
	for _, u := range units {
		for _, tSeconds := range []int64{1_600_000_000, 1_700_000_001, 1_999_999_999} {
			converted := ConvertToExchange(u, tSeconds)
			got, err := EnsureSeconds(converted)
			require.NoError(t, err)
			assert.Equal(t, tSeconds, got, "unit=%v", u)
		}
	}
}

func TestConvertEnsureRoundTrip_ISO8601(t *testing.T) {
	tSeconds := int64(1_700_000_000)
	converted := ConvertToExchange(ISO8601, tSeconds)
	got, err := EnsureSeconds(converted)
	require.NoError(t, err)
	assert.Equal(t, tSeconds, got)
}
