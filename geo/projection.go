package geo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrProjectedCRS is returned for a projected boundary file whose projection
// cannot be converted back to longitude/latitude.
var ErrProjectedCRS = errors.New("unsupported projected CRS")

// transverseMercator holds the parameters of a Transverse Mercator grid such
// as the Polish CS2000 zones or CS92.
type transverseMercator struct {
	a, e2          float64 // semi-major axis, first eccentricity squared
	lon0, lat0     float64 // radians
	k0             float64
	falseE, falseN float64
	unit           float64 // metres per grid unit
}

var (
	wktParam    = regexp.MustCompile(`(?i)PARAMETER\[\s*"([^"]+)"\s*,\s*([-+0-9.eE]+)\s*\]`)
	wktSpheroid = regexp.MustCompile(`(?i)(?:SPHEROID|ELLIPSOID)\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)\s*,\s*([-+0-9.eE]+)`)
	wktProj     = regexp.MustCompile(`(?i)PROJECTION\[\s*"([^"]+)"`)
	wktUnit     = regexp.MustCompile(`(?i)UNIT\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)`)
)

// parsePrj reads a .prj WKT string. A geographic CRS yields nil.
func parsePrj(wkt string) (*transverseMercator, error) {
	wkt = strings.TrimSpace(wkt)
	if !strings.HasPrefix(strings.ToUpper(wkt), "PROJCS") {
		return nil, nil
	}

	m := wktProj.FindStringSubmatch(wkt)
	if m == nil {
		return nil, fmt.Errorf("%w: no PROJECTION", ErrProjectedCRS)
	}
	switch strings.ToLower(m[1]) {
	case "transverse_mercator", "gauss_kruger":
	default:
		return nil, fmt.Errorf("%w: %s", ErrProjectedCRS, m[1])
	}

	tm := &transverseMercator{k0: 1, unit: 1}

	sph := wktSpheroid.FindStringSubmatch(wkt)
	if sph == nil {
		return nil, fmt.Errorf("%w: no SPHEROID", ErrProjectedCRS)
	}
	a, err1 := strconv.ParseFloat(sph[1], 64)
	invF, err2 := strconv.ParseFloat(sph[2], 64)
	if err1 != nil || err2 != nil || a <= 0 {
		return nil, fmt.Errorf("%w: bad SPHEROID", ErrProjectedCRS)
	}
	tm.a = a
	if invF != 0 {
		f := 1 / invF
		tm.e2 = f * (2 - f)
	}

	for _, p := range wktParam.FindAllStringSubmatch(wkt, -1) {
		v, err := strconv.ParseFloat(p[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s", ErrProjectedCRS, p[1])
		}
		switch strings.ToLower(p[1]) {
		case "central_meridian", "longitude_of_center":
			tm.lon0 = v * math.Pi / 180
		case "latitude_of_origin", "latitude_of_center":
			tm.lat0 = v * math.Pi / 180
		case "scale_factor":
			tm.k0 = v
		case "false_easting":
			tm.falseE = v
		case "false_northing":
			tm.falseN = v
		}
	}

	// The PROJCS linear unit comes after the GEOGCS angular one.
	if units := wktUnit.FindAllStringSubmatch(wkt, -1); len(units) > 1 {
		if u, err := strconv.ParseFloat(units[len(units)-1][1], 64); err == nil && u > 0 {
			tm.unit = u
		}
	}
	return tm, nil
}

// meridianArc is the distance along the meridian from the equator to phi.
func (tm *transverseMercator) meridianArc(phi float64) float64 {
	e2 := tm.e2
	e4, e6 := e2*e2, e2*e2*e2
	return tm.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// inverse converts grid coordinates to longitude and latitude in degrees.
func (tm *transverseMercator) inverse(x, y float64) (lon, lat float64) {
	x, y = x*tm.unit, y*tm.unit
	e2 := tm.e2
	ep2 := e2 / (1 - e2)

	m := tm.meridianArc(tm.lat0) + (y-tm.falseN)/tm.k0
	mu := m / (tm.a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	w := 1 - e2*sin1*sin1
	n1 := tm.a / math.Sqrt(w)
	r1 := tm.a * (1 - e2) / math.Pow(w, 1.5)
	d := (x - tm.falseE) / (n1 * tm.k0)

	latR := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lonR := tm.lon0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

	return lonR * 180 / math.Pi, latR * 180 / math.Pi
}
