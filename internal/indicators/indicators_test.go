package indicators

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waveSeries is a drifting sine wave, 260 sessions. Deterministic so
// the expectations below stay pinned.
func waveSeries(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7.0) + 0.1*float64(i)
	}
	return closes
}

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 105, 105, 100})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.05), r[0], 1e-12)
	assert.Zero(t, r[1])
	assert.InDelta(t, math.Log(100.0/105.0), r[2], 1e-12)

	assert.Empty(t, LogReturns([]float64{100}))
	// non-positive closes are skipped, not propagated
	assert.Len(t, LogReturns([]float64{100, 0, 105, 110}), 1)
}

func TestIVRank(t *testing.T) {
	rank, err := IVRank(waveSeries(260))
	require.NoError(t, err)
	assert.InDelta(t, 58.2, rank, 1e-9)

	_, err = IVRank(waveSeries(29))
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	// a dead-flat series has no vol range to rank within
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 100
	}
	rank, err = IVRank(flat)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rank)
}

func TestIVRankClamped(t *testing.T) {
	rank, err := IVRank(waveSeries(260))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rank, 0.0)
	assert.LessOrEqual(t, rank, 100.0)
}

func TestRealizedVol(t *testing.T) {
	v, ok := RealizedVol(waveSeries(260))
	require.True(t, ok)
	assert.InDelta(t, 0.098354, v, 1e-5)

	_, ok = RealizedVol(waveSeries(20))
	assert.False(t, ok)

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 100
	}
	_, ok = RealizedVol(flat)
	assert.False(t, ok)
}

func TestSMA(t *testing.T) {
	closes := waveSeries(260)
	sma, ok := SMA(closes, 50)
	require.True(t, ok)
	assert.InDelta(t, 122.432671, sma, 1e-5)

	// fewer bars than the window falls back to the full mean
	sma, ok = SMA(closes[:20], 50)
	require.True(t, ok)
	assert.InDelta(t, 107.727530, sma, 1e-5)

	_, ok = SMA(nil, 50)
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	rsi, ok := RSI(waveSeries(260), 14)
	require.True(t, ok)
	assert.InDelta(t, 62.732033, rsi, 1e-5)

	// monotonic rise pins RSI at 100
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsi, ok = RSI(up, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	_, ok = RSI(waveSeries(10), 14)
	assert.False(t, ok)
}

func TestRollingVolWindowing(t *testing.T) {
	r := LogReturns(waveSeries(60))
	roll := RollingVol(r, 20)
	require.Len(t, roll, len(r)-19)
	for _, v := range roll {
		assert.Greater(t, v, 0.0)
	}
	assert.Nil(t, RollingVol(r[:5], 20))
}

func TestSampleStd(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2)/2, sampleStd([]float64{0, 1}), 1e-12)
}

func TestErrInsufficientHistoryWrapping(t *testing.T) {
	_, err := IVRank(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}
