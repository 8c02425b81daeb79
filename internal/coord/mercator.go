package coord

import "math"

const (
	// EarthCircumference is the equatorial circumference of the WGS84
	// sphere used by Web Mercator.
	EarthCircumference = 40075016.685578488
	// OriginShift is half the earth's circumference: the Web Mercator
	// easting at longitude ±180.
	OriginShift = EarthCircumference / 2.0
)

// mercator covers variants A and B on the ellipsoid and the spherical
// Web Mercator. Variant B reduces to A with k0 derived from the standard
// parallel.
type mercator struct {
	a, e   float64
	k0     float64
	lon0   float64
	x0, y0 float64
}

func newMercator(e Ellipsoid, p Params, k0 float64) *mercator {
	return &mercator{
		a:    e.A,
		e:    e.E(),
		k0:   k0,
		lon0: p.get(ParamLon0, 0),
		x0:   p.get(ParamX0, 0),
		y0:   p.get(ParamY0, 0),
	}
}

// newPseudoMercator evaluates the spherical formulas with the ellipsoid's
// semi-major axis, as EPSG:3857 does.
func newPseudoMercator(e Ellipsoid, p Params) (Method, error) {
	return newMercator(Ellipsoid{A: e.A}, p, 1), nil
}

func newMercatorA(e Ellipsoid, p Params) (Method, error) {
	return newMercator(e, p, p.get(ParamK0, 1)), nil
}

func newMercatorB(e Ellipsoid, p Params) (Method, error) {
	lat1 := p.get(ParamLat1, 0)
	if math.Abs(lat1) >= halfPi {
		return nil, errInvalidParam(ParamLat1, lat1)
	}
	return newMercator(e, p, msfn(e.Es(), lat1)), nil
}

func (m *mercator) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) || math.Abs(math.Abs(phi)-halfPi) < 1e-10 {
		return 0, 0, false
	}
	x = m.x0 + m.a*m.k0*adjlon(lam-m.lon0)
	y = m.y0 - m.a*m.k0*math.Log(tsfn(m.e, phi))
	return x, y, finite(x, y)
}

func (m *mercator) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	lam = (x-m.x0)/(m.a*m.k0) + m.lon0
	phi = phi2(m.e, math.Exp(-(y-m.y0)/(m.a*m.k0)))
	return lam, phi, finite(lam, phi)
}
