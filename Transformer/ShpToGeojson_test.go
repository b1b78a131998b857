package Transformer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	shp "gitee.com/LJ_COOL/go-shp"
	"github.com/GrainArc/LandCollect/models"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGbkRoundTrip(t *testing.T) {
	for _, s := range []string{"苏坡村东地块", "青羊区", "abc123"} {
		assert.Equal(t, s, GbkToUtf8(string(Utf8ToGbk(s))))
	}
}

func TestTrimTrailingZeros(t *testing.T) {
	assert.Equal(t, "123.456", trimTrailingZeros("123.456000"))
	assert.Equal(t, "10", trimTrailingZeros("10.000000"))
	assert.Equal(t, "3.14159", trimTrailingZeros("3.1415926535"))
	assert.Equal(t, "42", trimTrailingZeros("42"))
	// 非纯数字原样返回
	assert.Equal(t, "苏坡村", trimTrailingZeros("苏坡村"))
	assert.Equal(t, "12a", trimTrailingZeros("12a"))
}

func TestIsClockwise(t *testing.T) {
	cw := []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	ccw := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	assert.True(t, IsClockwise(cw))
	assert.False(t, IsClockwise(ccw))
}

func shpRing(pts ...[2]float64) []shp.Point {
	out := make([]shp.Point, 0, len(pts))
	for _, p := range pts {
		out = append(out, shp.Point{X: p[0], Y: p[1]})
	}
	return out
}

func TestShpPolygonFeaturesSplitsParts(t *testing.T) {
	// 外环A带一个洞，再跟第二个外环B，应拆成两个要素
	outerA := shpRing([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1}, [2]float64{1, 0}, [2]float64{0, 0})
	hole := shpRing([2]float64{0.2, 0.2}, [2]float64{0.8, 0.2}, [2]float64{0.8, 0.8}, [2]float64{0.2, 0.8}, [2]float64{0.2, 0.2})
	outerB := shpRing([2]float64{2, 0}, [2]float64{2, 1}, [2]float64{3, 1}, [2]float64{3, 0}, [2]float64{2, 0})

	var points []shp.Point
	points = append(points, outerA...)
	points = append(points, hole...)
	points = append(points, outerB...)
	parts := []int32{0, 5, 10}
	attrs := map[string]interface{}{"名称": "甲地块"}

	features, err := shpPolygonFeatures(points, parts, attrs)
	require.NoError(t, err)
	require.Len(t, features, 2)

	first, ok := features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, first, 2)

	second, ok := features[1].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, second, 1)

	assert.Equal(t, "甲地块", features[0].Properties["名称"])
	assert.Equal(t, "甲地块", features[1].Properties["名称"])
}

func TestShpPolygonFeaturesRejectsProjected(t *testing.T) {
	ring := shpRing(
		[2]float64{36500000, 3400000},
		[2]float64{36500000, 3400100},
		[2]float64{36500100, 3400100},
		[2]float64{36500100, 3400000},
		[2]float64{36500000, 3400000},
	)
	_, err := shpPolygonFeatures(ring, []int32{0}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WGS84")
}

func TestShpPolygonFeaturesSkipsDegenerateRing(t *testing.T) {
	short := shpRing([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1})
	outer := shpRing([2]float64{2, 0}, [2]float64{2, 1}, [2]float64{3, 1}, [2]float64{3, 0}, [2]float64{2, 0})

	var points []shp.Point
	points = append(points, short...)
	points = append(points, outer...)

	features, err := shpPolygonFeatures(points, []int32{0, 3}, nil)
	require.NoError(t, err)
	require.Len(t, features, 1)
}

func TestShpRoundTrip(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "export.shp")

	attrs, err := json.Marshal(map[string]interface{}{"权利人": "张三", "地类": "耕地"})
	require.NoError(t, err)
	boundaries := []models.Boundary{
		{
			BSM: "s-1", Name: "甲地块", XZQMC: "青羊区", CMC: "苏坡村",
			AreaHectare: 1.2364, Perimeter: 445.28,
			Geojson:    datatypes.JSON(`{"type":"Polygon","coordinates":[[[103.98,30.66],[103.99,30.66],[103.99,30.67],[103.98,30.67],[103.98,30.66]]]}`),
			Attributes: datatypes.JSON(attrs),
		},
		{
			BSM: "s-2", Name: "乙地块",
			AreaHectare: 0.5, Perimeter: 300,
			Geojson: datatypes.JSON(`{"type":"Polygon","coordinates":[[[104.10,30.66],[104.11,30.66],[104.11,30.67],[104.10,30.67],[104.10,30.66]]]}`),
		},
	}
	require.NoError(t, ConvertBoundariesToShp(boundaries, shpPath))

	// 伴生的编码和投影描述文件
	cpg, err := os.ReadFile(filepath.Join(dir, "export.cpg"))
	require.NoError(t, err)
	assert.Equal(t, "GBK", string(cpg))
	prj, err := os.ReadFile(filepath.Join(dir, "export.prj"))
	require.NoError(t, err)
	assert.Contains(t, string(prj), "GCS_WGS_1984")

	fc, err := ConvertShpToGeojson(shpPath)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	byBsm := make(map[string]map[string]interface{})
	for _, f := range fc.Features {
		bsm, _ := f.Properties["编号"].(string)
		byBsm[bsm] = f.Properties
	}
	require.Contains(t, byBsm, "s-1")
	require.Contains(t, byBsm, "s-2")
	assert.Equal(t, "甲地块", byBsm["s-1"]["名称"])
	assert.Equal(t, "青羊区", byBsm["s-1"]["行政区"])
	assert.Equal(t, "张三", byBsm["s-1"]["权利人"])
	assert.Equal(t, "耕地", byBsm["s-1"]["地类"])
	assert.Equal(t, "1.2364", byBsm["s-1"]["面积公顷"])
	assert.Equal(t, "乙地块", byBsm["s-2"]["名称"])
	// 第二个地块没有扩展属性，对应列是空串
	assert.Equal(t, "", byBsm["s-2"]["权利人"])

	first, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, first, 1)
	assert.Len(t, first[0], 5)
}
