package todo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidFilename(t *testing.T) {
	cases := map[string]bool{
		"Shopping.txt":     true,
		".txt":             true,
		"notes.md":         false,
		"":                 false,
		"Shopping.txt.bak": false,
		"../etc/x.txt":     false,
		`dir\x.txt`:        false,
	}
	for name, want := range cases {
		assert.Equal(t, want, ValidFilename(name, DefaultSuffix), name)
	}
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	ts := Truncate(time.Date(2019, 2, 11, 11, 34, 31, 144612345, time.UTC))
	require.Equal(t, 144612000, ts.Nanosecond())

	secs := EpochSeconds(ts)
	require.InDelta(t, 1549884871.144612, secs, 1e-6)
	require.True(t, FromEpochSeconds(secs).Equal(ts))
}

func TestFromEpochSecondsNonFinite(t *testing.T) {
	require.True(t, FromEpochSeconds(math.NaN()).Equal(time.Unix(0, 0)))
	require.True(t, FromEpochSeconds(math.Inf(1)).Equal(time.Unix(0, 0)))
}

func TestFromEpochSecondsSaturates(t *testing.T) {
	now := time.Date(2019, 2, 11, 11, 34, 31, 0, time.UTC)
	for _, s := range []float64{1e13, 1.7e15, math.MaxFloat64} {
		got := FromEpochSeconds(s)
		require.True(t, got.After(now), "%g -> %s", s, got)
		require.True(t, got.Equal(time.UnixMicro(math.MaxInt64)))
	}
	for _, s := range []float64{-1e13, -math.MaxFloat64} {
		got := FromEpochSeconds(s)
		require.True(t, got.Before(time.Unix(0, 0)), "%g -> %s", s, got)
		require.True(t, got.Equal(time.UnixMicro(math.MinInt64)))
	}
	// just inside the range still converts exactly
	require.Equal(t, int64(9e12*1e6), FromEpochSeconds(9e12).UnixMicro())
}
