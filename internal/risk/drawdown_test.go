package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valuePoints(values ...float64) []ValuePoint {
	out := make([]ValuePoint, len(values))
	for i, v := range values {
		out[i] = ValuePoint{Date: monthEnd(i), Value: v}
	}
	return out
}

func TestTrackDrawdown_Recovered(t *testing.T) {
	dd, err := TrackDrawdown(valuePoints(100, 120, 90, 110, 130, 117))
	require.NoError(t, err)

	assert.InDelta(t, 0.25, dd.MaxDrawdown, 1e-12)
	assert.Equal(t, 1, dd.PeakIndex)
	assert.Equal(t, 2, dd.TroughIndex)
	require.NotNil(t, dd.PeakDate)
	require.NotNil(t, dd.TroughDate)
	assert.Equal(t, monthEnd(1), *dd.PeakDate)
	assert.Equal(t, monthEnd(2), *dd.TroughDate)
	assert.Equal(t, 1, dd.Duration)
	assert.InDelta(t, 0.1, dd.CurrentDrawdown, 1e-12)

	assert.Equal(t, 130.0, dd.Points[5].Peak)
	assert.Equal(t, 117.0, dd.Points[5].Value)
}

func TestTrackDrawdown_StillUnderPeak(t *testing.T) {
	dd, err := TrackDrawdown(valuePoints(100, 90, 80, 85))
	require.NoError(t, err)

	assert.InDelta(t, 0.2, dd.MaxDrawdown, 1e-12)
	assert.Equal(t, 0, dd.PeakIndex)
	assert.Equal(t, 2, dd.TroughIndex)
	// 신고가 없음 → 마지막 관측까지
	assert.Equal(t, 3, dd.Duration)
	assert.InDelta(t, 0.15, dd.CurrentDrawdown, 1e-12)
}

func TestTrackDrawdown_FirstOccurrenceWins(t *testing.T) {
	dd, err := TrackDrawdown(valuePoints(100, 80, 100, 80))
	require.NoError(t, err)

	assert.Equal(t, 0, dd.PeakIndex)
	assert.Equal(t, 1, dd.TroughIndex)
	assert.Equal(t, 1, dd.Duration)
	// 같은 수준 재도달도 신고가로 취급
	assert.Equal(t, 0.0, dd.Points[2].Drawdown)
}

func TestTrackDrawdown_MonotonicRise(t *testing.T) {
	dd, err := TrackDrawdown(valuePoints(100, 101, 105))
	require.NoError(t, err)

	assert.Equal(t, 0.0, dd.MaxDrawdown)
	assert.Equal(t, -1, dd.PeakIndex)
	assert.Nil(t, dd.PeakDate)
	assert.Nil(t, dd.TroughDate)
	assert.Equal(t, 0, dd.Duration)
}

func TestTrackDrawdown_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	returns := make([]float64, 240)
	for i := range returns {
		returns[i] = rng.NormFloat64() * 6
	}
	values := ValuesFromReturns(100, returns)

	dd, err := TrackDrawdown(valuePoints(values...))
	require.NoError(t, err)

	runningMax := 0.0
	for i, p := range dd.Points {
		assert.GreaterOrEqual(t, p.Drawdown, 0.0)
		assert.Less(t, p.Drawdown, 1.0)
		if values[i] >= runningMax {
			runningMax = values[i]
			assert.Equal(t, 0.0, p.Drawdown, "new high at %d", i)
		}
		assert.InDelta(t, (p.Peak-p.Value)/p.Peak, p.Drawdown, 1e-12)
		assert.LessOrEqual(t, p.Drawdown, dd.MaxDrawdown)
	}
}

func TestTrackDrawdown_Deterministic(t *testing.T) {
	in := valuePoints(100, 95, 97, 90, 110)
	a, err := TrackDrawdown(in)
	require.NoError(t, err)
	b, err := TrackDrawdown(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrackDrawdown_Errors(t *testing.T) {
	_, err := TrackDrawdown(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = TrackDrawdown(valuePoints(100, 0, 50))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
