package Transformer

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/GrainArc/LandCollect/Transformer/KmlGeo"
	"github.com/GrainArc/LandCollect/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	kml "github.com/twpayne/go-kml"
)

type Kml struct {
	XMLName  xml.Name `xml:"kml"`
	Document Document `xml:"Document"`
}

type Document struct {
	Name      string      `xml:"name"`
	Folder    []Folder    `xml:"Folder"`
	Placemark []Placemark `xml:"Placemark"`
}

type Folder struct {
	ID        string      `xml:"id,attr"`
	Name      string      `xml:"name"`
	Placemark []Placemark `xml:"Placemark"`
}

type Placemark struct {
	ID            string                `xml:"id,attr"`
	Name          string                `xml:"name"`
	Description   string                `xml:"description"`
	ExtendedData  ExtendedData          `xml:"ExtendedData"`
	Point         *KmlGeo.Point         `xml:"Point"`
	LineString    *KmlGeo.LineString    `xml:"LineString"`
	Polygon       *KmlGeo.Polygon       `xml:"Polygon"`
	MultiGeometry *KmlGeo.MultiGeometry `xml:"MultiGeometry"`
}

// ExtendedData 同时兼容SchemaData/SimpleData和Data/value两种属性写法
type ExtendedData struct {
	SchemaData SchemaData `xml:"SchemaData"`
	Data       []DataItem `xml:"Data"`
}

type SchemaData struct {
	SimpleData []SimpleData `xml:"SimpleData"`
}

type SimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type DataItem struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// StringToCoords 解析KML坐标串，支持空格和换行分隔的lng,lat[,alt]三元组
func StringToCoords(coords string) []orb.Point {
	var pts []orb.Point
	for _, token := range strings.Fields(coords) {
		parts := strings.Split(token, ",")
		if len(parts) < 2 {
			continue
		}
		x, errX := strconv.ParseFloat(parts[0], 64)
		y, errY := strconv.ParseFloat(parts[1], 64)
		if errX != nil || errY != nil {
			continue
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts
}

func checkWgs84(pts []orb.Point) error {
	for _, p := range pts {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return fmt.Errorf("坐标(%.2f, %.2f)超出经纬度范围，仅支持WGS84数据", p[0], p[1])
		}
	}
	return nil
}

// closeRing 补齐首尾闭合
func closeRing(pts []orb.Point) orb.Ring {
	if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	return orb.Ring(pts)
}

// KmlToGeojson 提取KML中的面要素，点线要素跳过
func KmlToGeojson(path string) (*geojson.FeatureCollection, error) {
	xmlFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer xmlFile.Close()
	byteValue, err := io.ReadAll(xmlFile)
	if err != nil {
		return nil, err
	}

	var doc Kml
	if err := xml.Unmarshal(byteValue, &doc); err != nil {
		return nil, fmt.Errorf("KML解析失败: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for _, item := range collectPlacemarks(doc.Document) {
		attrs := make(map[string]interface{})
		for _, f := range item.ExtendedData.SchemaData.SimpleData {
			attrs[f.Name] = f.Value
		}
		for _, d := range item.ExtendedData.Data {
			attrs[d.Name] = d.Value
		}
		if item.Name != "" {
			attrs["kml_name"] = item.Name
		}

		if item.Polygon != nil {
			feature, err := kmlPolygonFeature(*item.Polygon, attrs)
			if err != nil {
				return nil, err
			}
			fc.Append(feature)
		}
		if item.MultiGeometry != nil {
			for _, pg := range item.MultiGeometry.Polygons {
				feature, err := kmlPolygonFeature(pg, attrs)
				if err != nil {
					return nil, err
				}
				fc.Append(feature)
			}
		}
	}
	return fc, nil
}

func collectPlacemarks(doc Document) []Placemark {
	out := append([]Placemark{}, doc.Placemark...)
	for _, folder := range doc.Folder {
		out = append(out, folder.Placemark...)
	}
	return out
}

func kmlPolygonFeature(pg KmlGeo.Polygon, attrs map[string]interface{}) (*geojson.Feature, error) {
	outer := StringToCoords(pg.OuterBoundaryIs.LinearRing.Coordinates)
	if len(outer) < 3 {
		return nil, fmt.Errorf("面要素外环顶点不足: %d", len(outer))
	}
	if err := checkWgs84(outer); err != nil {
		return nil, err
	}
	rings := []orb.Ring{closeRing(outer)}
	for _, inner := range pg.InnerBoundaryIs {
		ring := StringToCoords(inner.LinearRing.Coordinates)
		if len(ring) < 3 {
			continue
		}
		if err := checkWgs84(ring); err != nil {
			return nil, err
		}
		rings = append(rings, closeRing(ring))
	}
	feature := geojson.NewFeature(orb.Polygon(rings))
	feature.Properties = attrs
	return feature, nil
}

// BoundariesToKml 导出地块为KML文档，属性写入描述文本
func BoundariesToKml(boundaries []models.Boundary, docName string, w io.Writer) error {
	elements := []kml.Element{kml.Name(docName)}
	for _, b := range boundaries {
		g, err := geojson.UnmarshalGeometry(b.Geojson)
		if err != nil {
			return fmt.Errorf("地块 %s 几何解析失败: %w", b.BSM, err)
		}
		poly, ok := g.Geometry().(orb.Polygon)
		if !ok || len(poly) == 0 {
			continue
		}
		pgChildren := []kml.Element{kml.OuterBoundaryIs(ringElement(poly[0]))}
		for _, inner := range poly[1:] {
			pgChildren = append(pgChildren, kml.InnerBoundaryIs(ringElement(inner)))
		}
		elements = append(elements, kml.Placemark(
			kml.Name(b.Name),
			kml.Description(describeBoundary(b)),
			kml.Polygon(pgChildren...),
		))
	}
	return kml.KML(kml.Document(elements...)).WriteIndent(w, "", "  ")
}

func ringElement(ring orb.Ring) kml.Element {
	coords := make([]kml.Coordinate, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, kml.Coordinate{Lon: p[0], Lat: p[1]})
	}
	return kml.LinearRing(kml.Coordinates(coords...))
}

// describeBoundary 生成描述文本，属性按字段名排序保证输出稳定
func describeBoundary(b models.Boundary) string {
	lines := []string{
		"编号: " + b.BSM,
		fmt.Sprintf("面积(公顷): %.4f", b.AreaHectare),
		fmt.Sprintf("周长(米): %.2f", b.Perimeter),
	}
	if b.XZQMC != "" {
		lines = append(lines, "行政区: "+b.XZQMC)
	}
	if b.CMC != "" {
		lines = append(lines, "村: "+b.CMC)
	}
	var attrs map[string]interface{}
	if len(b.Attributes) > 0 && json.Unmarshal(b.Attributes, &attrs) == nil {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %v", k, attrs[k]))
		}
	}
	return strings.Join(lines, "\n")
}
