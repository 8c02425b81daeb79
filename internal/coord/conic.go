package coord

import (
	"fmt"
	"math"
)

func errInvalidParam(key string, v float64) error {
	return fmt.Errorf("invalid parameter %s=%v", key, v)
}

// lambertConic implements Lambert Conic Conformal. The one standard
// parallel variant is the two parallel one with lat1 = lat2 = lat0 and a
// scale factor.
type lambertConic struct {
	a, e   float64
	n      float64
	akF    float64 // a * k0 * F
	rF     float64 // radius at the false origin
	lon0   float64
	x0, y0 float64
}

func newLambertConic1SP(e Ellipsoid, p Params) (Method, error) {
	lat0 := p.get(ParamLat0, 0)
	return newLambertConic(e, p, lat0, lat0, p.get(ParamK0, 1))
}

func newLambertConic2SP(e Ellipsoid, p Params) (Method, error) {
	lat1 := p.get(ParamLat1, 0)
	return newLambertConic(e, p, lat1, p.get(ParamLat2, lat1), p.get(ParamK0, 1))
}

func newLambertConic(e Ellipsoid, p Params, lat1, lat2, k0 float64) (Method, error) {
	if math.Abs(lat1+lat2) < 1e-10 {
		return nil, fmt.Errorf("standard parallels %v and %v are symmetric about the equator", lat1, lat2)
	}
	if math.Abs(lat1) >= halfPi || math.Abs(lat2) >= halfPi {
		return nil, errInvalidParam(ParamLat1, lat1)
	}
	if !(k0 > 0) {
		return nil, errInvalidParam(ParamK0, k0)
	}
	ecc, es := e.E(), e.Es()
	m1, t1 := msfn(es, lat1), tsfn(ecc, lat1)

	var n float64
	if math.Abs(lat1-lat2) < 1e-12 {
		n = math.Sin(lat1)
	} else {
		m2, t2 := msfn(es, lat2), tsfn(ecc, lat2)
		n = (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	}
	f := m1 / (n * math.Pow(t1, n))
	lc := &lambertConic{
		a:    e.A,
		e:    ecc,
		n:    n,
		akF:  e.A * k0 * f,
		lon0: p.get(ParamLon0, 0),
		x0:   p.get(ParamX0, 0),
		y0:   p.get(ParamY0, 0),
	}
	lc.rF = lc.radius(p.get(ParamLat0, 0))
	return lc, nil
}

func (lc *lambertConic) radius(phi float64) float64 {
	if math.Abs(math.Abs(phi)-halfPi) < 1e-12 {
		if phi*lc.n > 0 {
			return 0
		}
		return math.Inf(1)
	}
	return lc.akF * math.Pow(tsfn(lc.e, phi), lc.n)
}

func (lc *lambertConic) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) {
		return 0, 0, false
	}
	r := lc.radius(phi)
	theta := lc.n * adjlon(lam-lc.lon0)
	x = lc.x0 + r*math.Sin(theta)
	y = lc.y0 + lc.rF - r*math.Cos(theta)
	return x, y, finite(x, y)
}

func (lc *lambertConic) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	dx := x - lc.x0
	dy := lc.rF - (y - lc.y0)
	r := math.Copysign(math.Hypot(dx, dy), lc.n)
	if lc.n < 0 {
		dx, dy = -dx, -dy
	}
	theta := math.Atan2(dx, dy)
	if r == 0 {
		return lc.lon0, math.Copysign(halfPi, lc.n), true
	}
	t := math.Pow(r/lc.akF, 1/lc.n)
	lam = theta/lc.n + lc.lon0
	phi = phi2(lc.e, t)
	return lam, phi, finite(lam, phi)
}

// albers implements Albers Equal Area.
type albers struct {
	a, e, es float64
	n, c     float64
	rho0     float64
	lon0     float64
	x0, y0   float64
}

func newAlbers(e Ellipsoid, p Params) (Method, error) {
	lat1 := p.get(ParamLat1, 0)
	lat2 := p.get(ParamLat2, lat1)
	if math.Abs(lat1+lat2) < 1e-10 {
		return nil, fmt.Errorf("standard parallels %v and %v are symmetric about the equator", lat1, lat2)
	}
	al := &albers{
		a:    e.A,
		e:    e.E(),
		es:   e.Es(),
		lon0: p.get(ParamLon0, 0),
		x0:   p.get(ParamX0, 0),
		y0:   p.get(ParamY0, 0),
	}
	m1 := msfn(al.es, lat1)
	q1 := al.qsfn(lat1)
	if math.Abs(lat1-lat2) < 1e-12 {
		al.n = math.Sin(lat1)
	} else {
		m2 := msfn(al.es, lat2)
		al.n = (m1*m1 - m2*m2) / (al.qsfn(lat2) - q1)
	}
	al.c = m1*m1 + al.n*q1
	al.rho0 = al.rho(p.get(ParamLat0, 0))
	if !finite(al.rho0) {
		return nil, errInvalidParam(ParamLat0, p.get(ParamLat0, 0))
	}
	return al, nil
}

func (al *albers) qsfn(phi float64) float64 {
	s := math.Sin(phi)
	if al.e == 0 {
		return 2 * s
	}
	es := al.es
	return (1 - es) * (s/(1-es*s*s) - math.Log((1-al.e*s)/(1+al.e*s))/(2*al.e))
}

func (al *albers) rho(phi float64) float64 {
	return al.a * math.Sqrt(al.c-al.n*al.qsfn(phi)) / al.n
}

func (al *albers) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) {
		return 0, 0, false
	}
	r := al.rho(phi)
	theta := al.n * adjlon(lam-al.lon0)
	x = al.x0 + r*math.Sin(theta)
	y = al.y0 + al.rho0 - r*math.Cos(theta)
	return x, y, finite(x, y)
}

func (al *albers) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	dx := x - al.x0
	dy := al.rho0 - (y - al.y0)
	r := math.Hypot(dx, dy)
	if al.n < 0 {
		dx, dy = -dx, -dy
	}
	theta := math.Atan2(dx, dy)
	q := (al.c - r*r*al.n*al.n/(al.a*al.a)) / al.n
	phi, ok = al.latFromQ(q)
	if !ok {
		return 0, 0, false
	}
	lam = theta/al.n + al.lon0
	return lam, phi, finite(lam, phi)
}

// latFromQ inverts qsfn by Newton iteration.
func (al *albers) latFromQ(q float64) (float64, bool) {
	qp := al.qsfn(halfPi)
	if math.Abs(q) > qp+1e-12 {
		return 0, false
	}
	if math.Abs(q) >= qp {
		return math.Copysign(halfPi, q), true
	}
	phi := math.Asin(math.Max(-1, math.Min(1, q/2)))
	if al.e == 0 {
		return phi, true
	}
	es := al.es
	for i := 0; i < 30; i++ {
		s, c := math.Sincos(phi)
		d := (1 - es*s*s) * (1 - es*s*s) / (2 * c) *
			(q/(1-es) - s/(1-es*s*s) + math.Log((1-al.e*s)/(1+al.e*s))/(2*al.e))
		phi += d
		if math.Abs(d) < 1e-14 {
			break
		}
	}
	return phi, true
}
