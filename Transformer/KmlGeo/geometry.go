package KmlGeo

import "encoding/xml"

// KML几何要素的XML映射，坐标串保留原文交由上层解析

type Point struct {
	XMLName     xml.Name `xml:"Point"`
	Coordinates string   `xml:"coordinates"`
}

type LineString struct {
	XMLName     xml.Name `xml:"LineString"`
	Coordinates string   `xml:"coordinates"`
}

type LinearRing struct {
	Coordinates string `xml:"coordinates"`
}

type outerBoundaryIs struct {
	LinearRing LinearRing `xml:"LinearRing"`
}

type innerBoundaryIs struct {
	LinearRing LinearRing `xml:"LinearRing"`
}

type Polygon struct {
	XMLName         xml.Name          `xml:"Polygon"`
	OuterBoundaryIs outerBoundaryIs   `xml:"outerBoundaryIs"`
	InnerBoundaryIs []innerBoundaryIs `xml:"innerBoundaryIs"`
}

type MultiGeometry struct {
	XMLName    xml.Name     `xml:"MultiGeometry"`
	Polygons   []Polygon    `xml:"Polygon"`
	LineString []LineString `xml:"LineString"`
	Point      []Point      `xml:"Point"`
}
