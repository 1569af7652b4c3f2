// Package geo assigns coordinates to named city districts.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// District is one named boundary in WGS84 longitude/latitude.
type District struct {
	Name     string
	Geometry orb.MultiPolygon
	bound    orb.Bound
}

// Classifier answers point-in-district queries over a fixed set of
// districts. It is read-only after construction and safe to share.
type Classifier struct {
	districts []District
}

// NewClassifier keeps the districts in the given order; Classify reports the
// first one containing the point, so overlapping boundaries resolve by order.
func NewClassifier(districts []District) *Classifier {
	ds := make([]District, 0, len(districts))
	for _, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		d.bound = d.Geometry.Bound()
		ds = append(ds, d)
	}
	return &Classifier{districts: ds}
}

// Classify returns the name of the first district containing (lat, lon).
// Coordinates are not validated here.
func (c *Classifier) Classify(lat, lon float64) (string, bool) {
	if c == nil {
		return "", false
	}
	pt := orb.Point{lon, lat}
	for i := range c.districts {
		d := &c.districts[i]
		if !d.bound.Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(d.Geometry, pt) {
			return d.Name, true
		}
	}
	return "", false
}

// Names lists district names in classification order.
func (c *Classifier) Names() []string {
	names := make([]string, len(c.districts))
	for i, d := range c.districts {
		names[i] = d.Name
	}
	return names
}

func (c *Classifier) Len() int {
	return len(c.districts)
}
