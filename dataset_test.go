package gocvcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleDataset_Equal(t *testing.T) {
	a, err := ProcessRows(exampleRows(), Options{Mass: 2, Window: 2})
	require.NoError(t, err)
	b, err := ProcessRows(exampleRows(), Options{Mass: 2, Window: 2})
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	b.Cycles[2].Voltage[0] = math.Nextafter(b.Cycles[2].Voltage[0], 1)
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c, err := ProcessRows(exampleRows(), Options{Mass: 2, Window: 3})
	require.NoError(t, err)
	assert.False(t, a.Equal(c), "window is part of the identity")

	assert.True(t, (*CycleDataset)(nil).Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestCycleDataset_NaNComparesEqual(t *testing.T) {
	rows := []MeasurementRow{{CycleIndex: 1, Voltage: math.NaN(), Current: 0.1}}
	a, err := Aggregate(rows, 1)
	require.NoError(t, err)
	b, err := Aggregate(rows, 1)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestCycleDataset_SameParams(t *testing.T) {
	ds, err := ProcessRows(exampleRows(), Options{Mass: 2, Window: 4, Policy: SavitzkyGolay})
	require.NoError(t, err)

	assert.True(t, ds.SameParams(2, 4, SavitzkyGolay))
	assert.False(t, ds.SameParams(2.5, 4, SavitzkyGolay))
	assert.False(t, ds.SameParams(2, 5, SavitzkyGolay))
	assert.False(t, ds.SameParams(2, 4, MovingAverage))
}

func TestCycleDataset_Accessors(t *testing.T) {
	ds, err := Aggregate(exampleRows(), 2)
	require.NoError(t, err)

	s, ok := ds.Cycle(1)
	require.True(t, ok)
	assert.Equal(t, 2, s.Len())

	_, ok = ds.Cycle(9)
	assert.False(t, ok)
	assert.Equal(t, 3, ds.Rows())
}
