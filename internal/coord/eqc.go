package coord

import "math"

// equidistantCylindrical is the ellipsoidal Equidistant Cylindrical
// projection; northing is the meridian arc length from the equator.
type equidistantCylindrical struct {
	rect   float64 // rectifying radius
	c      [4]float64
	ci     [4]float64
	nuCos  float64 // ν1 cos φ1
	lon0   float64
	x0, y0 float64
}

func newEquidistantCylindrical(e Ellipsoid, p Params) (Method, error) {
	lat1 := p.get(ParamLat1, 0)
	if math.Abs(lat1) >= halfPi {
		return nil, errInvalidParam(ParamLat1, lat1)
	}
	f := e.F()
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	s1 := math.Sin(lat1)
	return &equidistantCylindrical{
		rect:  e.A / (1 + n) * (1 + n2/4 + n4/64),
		c:     [4]float64{-1.5*n + 9.0/16*n3, 15.0/16*n2 - 15.0/32*n4, -35.0 / 48 * n3, 315.0 / 512 * n4},
		ci:    [4]float64{1.5*n - 27.0/32*n3, 21.0/16*n2 - 55.0/32*n4, 151.0 / 96 * n3, 1097.0 / 512 * n4},
		nuCos: e.A / math.Sqrt(1-e.Es()*s1*s1) * math.Cos(lat1),
		lon0:  p.get(ParamLon0, 0),
		x0:    p.get(ParamX0, 0),
		y0:    p.get(ParamY0, 0),
	}, nil
}

func (eq *equidistantCylindrical) meridianArc(phi float64) float64 {
	m := phi
	for j, c := range eq.c {
		m += c * math.Sin(float64(2*(j+1))*phi)
	}
	return eq.rect * m
}

func (eq *equidistantCylindrical) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) {
		return 0, 0, false
	}
	x = eq.x0 + eq.nuCos*adjlon(lam-eq.lon0)
	y = eq.y0 + eq.meridianArc(phi)
	return x, y, true
}

func (eq *equidistantCylindrical) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	mu := (y - eq.y0) / eq.rect
	if math.Abs(mu) > halfPi+1e-10 {
		return 0, 0, false
	}
	phi = mu
	for j, c := range eq.ci {
		phi += c * math.Sin(float64(2*(j+1))*mu)
	}
	lam = eq.lon0 + (x-eq.x0)/eq.nuCos
	return lam, phi, true
}
