package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/encoding/charmap"
)

// DefaultNameField is the district-name attribute of the Wroclaw boundary set.
const DefaultNameField = "NAZWAOSIED"

// Load reads a boundary file, choosing the format by extension.
func Load(path, nameField string) (*Classifier, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}

	var (
		districts []District
		err       error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		districts, err = LoadShapefile(path, nameField)
	case ".json", ".geojson":
		districts, err = LoadGeoJSON(path, nameField)
	default:
		return nil, fmt.Errorf("geo: unsupported boundary format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(districts) == 0 {
		return nil, fmt.Errorf("geo: no polygon districts in %s", path)
	}
	return NewClassifier(districts), nil
}

// LoadGeoJSON reads Polygon and MultiPolygon features of a FeatureCollection.
func LoadGeoJSON(path, nameField string) ([]District, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geo: read %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geo: parse %s: %w", path, err)
	}

	var districts []District
	for i, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}

		raw, ok := f.Properties[nameField]
		if !ok || raw == nil {
			return nil, fmt.Errorf("geo: feature %d has no %q property", i, nameField)
		}
		districts = append(districts, District{
			Name:     strings.TrimSpace(fmt.Sprint(raw)),
			Geometry: mp,
		})
	}
	return districts, nil
}

// LoadShapefile reads polygon records and their name attribute. Rings in a
// Transverse Mercator grid (per the sibling .prj) are converted to
// longitude/latitude.
func LoadShapefile(path, nameField string) ([]District, error) {
	proj, err := readPrj(path)
	if err != nil {
		return nil, err
	}
	decode := attributeDecoder(path)

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open %s: %w", path, err)
	}
	defer r.Close()

	nameIdx := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("geo: %s has no %q attribute", path, nameField)
	}

	var (
		districts []District
		records   int
	)
	for r.Next() {
		records++
		n, shape := r.Shape()

		var parts []int32
		var points []shp.Point
		switch p := shape.(type) {
		case *shp.Polygon:
			parts, points = p.Parts, p.Points
		case *shp.PolygonZ:
			parts, points = p.Parts, p.Points
		case *shp.PolygonM:
			parts, points = p.Parts, p.Points
		default:
			continue
		}

		if proj != nil {
			points = unproject(proj, points)
		}
		districts = append(districts, District{
			Name:     strings.Trim(decode(r.ReadAttribute(n, nameIdx)), "\x00 "),
			Geometry: ringsToMultiPolygon(parts, points),
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("geo: read %s: %w", path, err)
	}
	if want := r.AttributeCount(); records != want {
		return nil, fmt.Errorf("geo: %s holds %d shapes but %d attribute rows", path, records, want)
	}
	return districts, nil
}

func unproject(tm *transverseMercator, points []shp.Point) []shp.Point {
	out := make([]shp.Point, len(points))
	for i, p := range points {
		lon, lat := tm.inverse(p.X, p.Y)
		out[i] = shp.Point{X: lon, Y: lat}
	}
	return out
}

// ringsToMultiPolygon groups shapefile rings into polygons: clockwise rings
// start a new polygon, counter-clockwise rings are holes of the previous one.
func ringsToMultiPolygon(parts []int32, points []shp.Point) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) < 4 {
			continue
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	return mp
}

func readPrj(shpPath string) (*transverseMercator, error) {
	prj, err := os.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geo: read projection: %w", err)
	}
	tm, err := parsePrj(string(prj))
	if err != nil {
		return nil, fmt.Errorf("geo: %s: %w", shpPath, err)
	}
	return tm, nil
}

// attributeDecoder honours a .cpg code page declaration for DBF strings.
func attributeDecoder(shpPath string) func(string) string {
	identity := func(s string) string { return s }

	cpg, err := os.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg")
	if err != nil {
		return identity
	}

	var cm *charmap.Charmap
	switch strings.ToUpper(strings.TrimSpace(string(cpg))) {
	case "1250", "CP1250", "WINDOWS-1250":
		cm = charmap.Windows1250
	case "ISO-8859-2", "8859-2", "88592":
		cm = charmap.ISO8859_2
	default:
		return identity
	}

	dec := cm.NewDecoder()
	return func(s string) string {
		out, err := dec.String(s)
		if err != nil {
			return s
		}
		return out
	}
}
