package polygon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTooFewVertices(t *testing.T) {
	rings := []Ring{
		nil,
		{},
		{{Lat: 0, Lng: 0}},
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}},
	}
	for _, r := range rings {
		m, err := Compute(r)
		require.NoError(t, err)
		assert.Nil(t, m, "不足3个顶点时不应产生指标")
	}
}

// 赤道附近0.001度见方的地块，面积约1.24公顷，周长约445米
func TestComputeEquatorSquare(t *testing.T) {
	r := Ring{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0.001, Lng: 0.001},
		{Lat: 0.001, Lng: 0},
	}
	m, err := Compute(r)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.InEpsilon(t, 1.24, m.AreaHectares, 0.01)
	assert.InEpsilon(t, 445, m.PerimeterMeters, 0.01)
	assert.InDelta(t, 0.0005, m.Centroid.Lat, 1e-9)
	assert.InDelta(t, 0.0005, m.Centroid.Lng, 1e-9)
	assert.Equal(t, 4, m.VertexCount)
	assert.InDelta(t, m.AreaHectares*10000, m.AreaSquareMeters, 1e-6)
}

func TestComputeDeterministic(t *testing.T) {
	r := Ring{
		{Lat: 30.1, Lng: 104.2},
		{Lat: 30.1, Lng: 104.3},
		{Lat: 30.2, Lng: 104.3},
		{Lat: 30.2, Lng: 104.2},
	}
	m1, err1 := Compute(r)
	m2, err2 := Compute(r.Clone())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, m1, m2)
}
