package Transformer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	shp "gitee.com/LJ_COOL/go-shp"
	"github.com/GrainArc/LandCollect/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func GbkToUtf8(s string) string {
	gbkDecoder := simplifiedchinese.GBK.NewDecoder()
	utf8String, _, err := transform.String(gbkDecoder, s)
	if err != nil {
		return s
	}
	return utf8String
}

func Utf8ToGbk(input string) []byte {
	gbkEncoder := simplifiedchinese.GBK.NewEncoder()
	var output bytes.Buffer
	writer := transform.NewWriter(&output, gbkEncoder)
	if _, err := writer.Write([]byte(input)); err != nil {
		return []byte(input)
	}
	writer.Close()
	return output.Bytes()
}

var numericPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// trimTrailingZeros DBF数字字段读出来带一串尾零，裁掉并截断到5位小数
func trimTrailingZeros(input string) string {
	if !numericPattern.MatchString(input) {
		return input
	}
	if !strings.Contains(input, ".") {
		return input
	}
	parts := strings.SplitN(input, ".", 2)
	frac := strings.TrimRight(parts[1], "0")
	if frac == "" {
		return parts[0]
	}
	if len(frac) > 5 {
		frac = frac[:5]
	}
	return parts[0] + "." + frac
}

// SplitPoints 按parts偏移把点集切成环
func SplitPoints(points []shp.Point, parts []int32) [][]shp.Point {
	var rings [][]shp.Point
	for i, start := range parts {
		var end int32
		if i < len(parts)-1 {
			end = parts[i+1]
		} else {
			end = int32(len(points))
		}
		rings = append(rings, points[start:end])
	}
	return rings
}

// IsClockwise shapefile规范里顺时针为外环
func IsClockwise(points []orb.Point) bool {
	sum := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1 := points[i]
		p2 := points[i+1]
		sum += (p2[0] - p1[0]) * (p2[1] + p1[1])
	}
	return sum > 0
}

// readCPGEncoding 读取CPG文件取字符编码，缺省按GBK处理
func readCPGEncoding(shpPath string) string {
	base := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))
	cpgPath := filepath.Join(filepath.Dir(shpPath), base+".cpg")
	content, err := os.ReadFile(cpgPath)
	if err != nil {
		return "GBK"
	}
	return strings.TrimSpace(string(content))
}

func buildAttributes(n int, shape *shp.Reader, fields []shp.Field, encoding string) map[string]interface{} {
	attrs := make(map[string]interface{})
	for k, f := range fields {
		// DBF定长字段带空格和NUL填充
		value := strings.Trim(shape.ReadAttribute(n, k), "\x00 ")
		if strings.EqualFold(encoding, "GBK") {
			attrs[GbkToUtf8(f.String())] = trimTrailingZeros(GbkToUtf8(value))
		} else {
			attrs[f.String()] = trimTrailingZeros(value)
		}
	}
	return attrs
}

// ConvertShpToGeojson 读取shapefile的面要素，多部件拆成独立要素
// 只接受WGS84经纬度坐标，点线要素跳过
func ConvertShpToGeojson(shpPath string) (*geojson.FeatureCollection, error) {
	shape, err := shp.Open(shpPath)
	if err != nil {
		return nil, fmt.Errorf("打开shapefile失败: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	encoding := readCPGEncoding(shpPath)
	fc := geojson.NewFeatureCollection()

	for shape.Next() {
		n, p := shape.Shape()
		var points []shp.Point
		var parts []int32
		switch s := p.(type) {
		case *shp.Polygon:
			points, parts = s.Points, s.Parts
		case *shp.PolygonZ:
			points, parts = s.Points, s.Parts
		case *shp.PolygonM:
			points, parts = s.Points, s.Parts
		default:
			continue
		}
		attrs := buildAttributes(n, shape, fields, encoding)
		features, err := shpPolygonFeatures(points, parts, attrs)
		if err != nil {
			return nil, fmt.Errorf("第%d个要素: %w", n+1, err)
		}
		for _, f := range features {
			fc.Append(f)
		}
	}
	return fc, nil
}

// shpPolygonFeatures 按环方向重组多边形，外环带其后的内环
func shpPolygonFeatures(points []shp.Point, parts []int32, attrs map[string]interface{}) ([]*geojson.Feature, error) {
	ringPoints := SplitPoints(points, parts)

	var features []*geojson.Feature
	var current orb.Polygon
	flush := func() {
		if len(current) > 0 {
			f := geojson.NewFeature(current)
			f.Properties = attrs
			features = append(features, f)
			current = nil
		}
	}

	for _, part := range ringPoints {
		ring := make(orb.Ring, len(part))
		for j, pt := range part {
			if pt.X < -180 || pt.X > 180 || pt.Y < -90 || pt.Y > 90 {
				return nil, fmt.Errorf("坐标(%.2f, %.2f)超出经纬度范围，仅支持WGS84数据", pt.X, pt.Y)
			}
			ring[j] = orb.Point{pt.X, pt.Y}
		}
		if len(ring) < 4 {
			continue
		}
		if IsClockwise([]orb.Point(ring)) {
			// 新外环，结束上一个多边形
			flush()
			current = orb.Polygon{ring}
		} else if len(current) > 0 {
			current = append(current, ring)
		} else {
			// 个别数据整个就是逆时针单环
			current = orb.Polygon{ring}
		}
	}
	flush()
	return features, nil
}

// ConvertBoundariesToShp 导出地块为shapefile，附带CPG和PRJ
func ConvertBoundariesToShp(boundaries []models.Boundary, shpPath string) error {
	shpFile, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("创建shapefile失败: %w", err)
	}
	defer shpFile.Close()

	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	if err := createCpgFile(base + ".cpg"); err != nil {
		return err
	}
	if err := createPrjFile(base + ".prj"); err != nil {
		return err
	}

	baseColumns := []string{"编号", "名称", "行政区", "村", "面积公顷", "周长米"}
	attrColumns := collectAttrColumns(boundaries)
	columns := append(append([]string{}, baseColumns...), attrColumns...)

	fields := make([]shp.Field, 0, len(columns))
	fieldIndex := make(map[string]int, len(columns))
	for i, name := range columns {
		fields = append(fields, shp.StringField(Utf8ToGbk(name), 120))
		fieldIndex[name] = i
	}
	shpFile.SetFields(fields)

	row := 0
	for _, b := range boundaries {
		g, err := geojson.UnmarshalGeometry(b.Geojson)
		if err != nil {
			continue
		}
		poly, ok := g.Geometry().(orb.Polygon)
		if !ok || len(poly) == 0 {
			continue
		}
		rings := make([][]shp.Point, 0, len(poly))
		for _, ring := range poly {
			pts := make([]shp.Point, 0, len(ring))
			for _, p := range ring {
				pts = append(pts, shp.Point{X: p[0], Y: p[1]})
			}
			rings = append(rings, pts)
		}
		shpFile.Write(shp.NewPolyLine(rings))

		values := map[string]string{
			"编号":   b.BSM,
			"名称":   b.Name,
			"行政区":  b.XZQMC,
			"村":    b.CMC,
			"面积公顷": fmt.Sprintf("%.4f", b.AreaHectare),
			"周长米":  fmt.Sprintf("%.2f", b.Perimeter),
		}
		var attrs map[string]interface{}
		if len(b.Attributes) > 0 && json.Unmarshal(b.Attributes, &attrs) == nil {
			for _, name := range attrColumns {
				if v, exists := attrs[name]; exists {
					values[name] = shpAttrText(v)
				}
			}
		}
		for name, idx := range fieldIndex {
			if err := shpFile.WriteAttribute(row, idx, Utf8ToGbk(values[name])); err != nil {
				return fmt.Errorf("写入属性失败: %w", err)
			}
		}
		row++
	}
	return nil
}

// collectAttrColumns 汇总所有地块的属性字段名，排序保证列次稳定
func collectAttrColumns(boundaries []models.Boundary) []string {
	seen := make(map[string]bool)
	for _, b := range boundaries {
		if len(b.Attributes) == 0 {
			continue
		}
		var attrs map[string]interface{}
		if err := json.Unmarshal(b.Attributes, &attrs); err != nil {
			continue
		}
		for k, v := range attrs {
			// 质心之类的对象属性写不进DBF文本列
			if _, isObject := v.(map[string]interface{}); isObject {
				continue
			}
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func shpAttrText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return trimTrailingZeros(fmt.Sprintf("%f", t))
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func createCpgFile(path string) error {
	return os.WriteFile(path, []byte("GBK"), 0644)
}

func createPrjFile(path string) error {
	prj := `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	return os.WriteFile(path, []byte(prj), 0644)
}
