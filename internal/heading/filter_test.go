package heading

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterOutputStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var f Filter

	for i := 0; i < 10000; i++ {
		raw := rng.Float64() * 360
		got := f.Update(raw)
		require.GreaterOrEqual(t, got, 0.0, "sample %d raw=%v", i, raw)
		require.Less(t, got, 360.0, "sample %d raw=%v", i, raw)
	}
}

func TestFilterOutOfRangeInput(t *testing.T) {
	var f Filter
	for _, raw := range []float64{-720, -1, 359.9999999, 360, 725, 1e9} {
		got := f.Update(raw)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 360.0)
	}
}

func TestFilterShortPathAcrossNorth(t *testing.T) {
	f := Filter{last: 350}

	got := f.Update(10)

	// 350 + 0.2*20 = 354, moving up towards 360/0 rather than down through 180.
	assert.InDelta(t, 354.0, got, 1e-9)

	got = f.Update(10)
	assert.InDelta(t, 357.2, got, 1e-9)
}

func TestFilterShortPathBackwards(t *testing.T) {
	f := Filter{last: 10}

	got := f.Update(350)

	// 10 - 0.2*20 = 6
	assert.InDelta(t, 6.0, got, 1e-9)
}

func TestFilterWrapsBelowZero(t *testing.T) {
	f := Filter{last: 1}

	got := f.Update(340)

	// 1 + 0.2*(-21) = -3.2 -> 356.8
	assert.InDelta(t, 356.8, got, 1e-9)
}

func TestFilterConverges(t *testing.T) {
	var f Filter
	var got float64
	for i := 0; i < 200; i++ {
		got = f.Update(90)
	}
	assert.InDelta(t, 90.0, got, 1e-9)
}

func TestFilterFirstSampleFromZero(t *testing.T) {
	var f Filter
	assert.InDelta(t, 18.0, f.Update(90), 1e-9)
	assert.InDelta(t, 18.0, f.Value(), 1e-9)
}

func TestFilterIgnoresNonFinite(t *testing.T) {
	f := Filter{last: 45}

	assert.Equal(t, 45.0, f.Update(math.NaN()))
	assert.Equal(t, 45.0, f.Update(math.Inf(1)))
	assert.Equal(t, 45.0, f.Update(math.Inf(-1)))
}

func TestFilterReset(t *testing.T) {
	var f Filter
	f.Update(200)
	f.Reset()
	assert.Equal(t, 0.0, f.Value())
}

func TestNormalize(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		360:  0,
		-90:  270,
		450:  90,
		-360: 0,
		720:  0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, Normalize(in), 1e-9, "Normalize(%v)", in)
	}
}
