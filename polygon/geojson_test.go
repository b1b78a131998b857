package polygon

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	r := Ring{
		{Lat: 30.65, Lng: 104.06},
		{Lat: 30.65, Lng: 104.07},
		{Lat: 30.66, Lng: 104.07},
		{Lat: 30.66, Lng: 104.06},
	}

	data, err := r.ExportGeometry()
	require.NoError(t, err)

	// 导出必须是闭合Polygon，首尾坐标重复
	var g struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, "Polygon", g.Type)
	require.Len(t, g.Coordinates, 1)
	require.Len(t, g.Coordinates[0], 5)
	assert.Equal(t, g.Coordinates[0][0], g.Coordinates[0][4])

	// 反向导入应去除闭合点并还原原始顶点序
	back, err := ImportGeometry(data)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestExportTooFewVertices(t *testing.T) {
	_, err := Ring{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}.ExportGeometry()
	assert.Error(t, err)
}

func TestImportRejectsNonPolygon(t *testing.T) {
	_, err := ImportGeometry([]byte(`{"type":"Point","coordinates":[104.06,30.65]}`))
	assert.Error(t, err)

	_, err = ImportGeometry([]byte(`not json`))
	assert.Error(t, err)
}

func TestImportUnclosedRing(t *testing.T) {
	// 未闭合的输入也应原样接受
	data := []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1]]]}`)
	r, err := ImportGeometry(data)
	require.NoError(t, err)
	assert.Equal(t, Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}, r)
}

func TestContainsRing(t *testing.T) {
	outer := Ring{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 0},
	}.ToPolygon()

	inner := Ring{
		{Lat: 2, Lng: 2},
		{Lat: 2, Lng: 8},
		{Lat: 8, Lng: 8},
		{Lat: 8, Lng: 2},
	}
	assert.True(t, ContainsRing(outer, inner))

	outside := Ring{
		{Lat: 2, Lng: 2},
		{Lat: 2, Lng: 12},
		{Lat: 8, Lng: 8},
	}
	assert.False(t, ContainsRing(outer, outside))
}

func TestFromOrbRingStripsClosingPoint(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	r := FromOrbRing(ring)
	assert.Equal(t, Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}, r)
}
