package coord

import (
	"fmt"
	"math"
)

// swissOblique is the Swiss oblique cylindrical projection used by
// CH1903 / LV03 and CH1903+ / LV95: a double projection through the
// conformal sphere followed by an oblique Mercator with its initial line
// running east-west through the projection centre.
//
// Reference: swisstopo, "Formulas and constants for the calculation of
// the Swiss conformal cylindrical projection and for the transformation
// between coordinate systems".
type swissOblique struct {
	a, e, es     float64
	c, k, kR     float64
	sinP0, cosP0 float64
	lon0         float64
	x0, y0       float64
}

func newSwissOblique(e Ellipsoid, p Params) (Method, error) {
	lat0 := p.get(ParamLat0, 0)
	if math.Abs(lat0) >= halfPi {
		return nil, errInvalidParam(ParamLat0, lat0)
	}
	k0 := p.get(ParamK0, 1)
	ecc, es := e.E(), e.Es()
	cp := math.Cos(lat0)
	cp *= cp
	sp := math.Sin(lat0)

	so := &swissOblique{
		a:    e.A,
		e:    ecc,
		es:   es,
		c:    math.Sqrt(1 + es*cp*cp/(1-es)),
		lon0: p.get(ParamLon0, 0),
		x0:   p.get(ParamX0, 0),
		y0:   p.get(ParamY0, 0),
	}
	so.sinP0 = sp / so.c
	phip0 := math.Asin(so.sinP0)
	so.cosP0 = math.Cos(phip0)
	so.k = math.Log(math.Tan(math.Pi/4+phip0/2)) -
		so.c*(math.Log(math.Tan(math.Pi/4+lat0/2))-ecc/2*math.Log((1+ecc*sp)/(1-ecc*sp)))
	so.kR = k0 * math.Sqrt(1-es) / (1 - es*sp*sp)
	return so, nil
}

// newHotine accepts Hotine Oblique Mercator definitions only where they
// describe the Swiss oblique case: azimuth and rectified grid angle of 90°.
func newHotine(e Ellipsoid, p Params) (Method, error) {
	alpha := p.get(ParamAlpha, 0)
	gamma := p.get(ParamGamma, alpha)
	if math.Abs(alpha-halfPi) > 1e-9 || math.Abs(gamma-halfPi) > 1e-9 {
		return nil, fmt.Errorf("%w: oblique mercator with azimuth %.6f° and grid angle %.6f°",
			ErrUnsupportedMethod, alpha*180/math.Pi, gamma*180/math.Pi)
	}
	return newSwissOblique(e, p)
}

func asinClamp(v float64) float64 {
	return math.Asin(math.Max(-1, math.Min(1, v)))
}

func (so *swissOblique) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) {
		return 0, 0, false
	}
	s := so.e * math.Sin(phi)
	phip := 2*math.Atan(math.Exp(so.c*(math.Log(math.Tan(math.Pi/4+phi/2))-so.e/2*math.Log((1+s)/(1-s)))+so.k)) - halfPi
	lamp := so.c * adjlon(lam-so.lon0)
	cp := math.Cos(phip)
	phipp := asinClamp(so.cosP0*math.Sin(phip) - so.sinP0*cp*math.Cos(lamp))
	lampp := asinClamp(cp * math.Sin(lamp) / math.Cos(phipp))
	x = so.x0 + so.a*so.kR*lampp
	y = so.y0 + so.a*so.kR*math.Log(math.Tan(math.Pi/4+phipp/2))
	return x, y, finite(x, y)
}

func (so *swissOblique) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	phipp := 2 * (math.Atan(math.Exp((y-so.y0)/(so.a*so.kR))) - math.Pi/4)
	lampp := (x - so.x0) / (so.a * so.kR)
	cp := math.Cos(phipp)
	phip := asinClamp(so.cosP0*math.Sin(phipp) + so.sinP0*cp*math.Cos(lampp))
	lamp := asinClamp(cp * math.Sin(lampp) / math.Cos(phip))

	con := (so.k - math.Log(math.Tan(math.Pi/4+phip/2))) / so.c
	phi = phip
	for i := 0; i < 30; i++ {
		esp := so.e * math.Sin(phi)
		d := (con + math.Log(math.Tan(math.Pi/4+phi/2)) - so.e/2*math.Log((1+esp)/(1-esp))) *
			(1 - esp*esp) * math.Cos(phi) / (1 - so.es)
		phi -= d
		if math.Abs(d) < 1e-14 {
			break
		}
	}
	lam = so.lon0 + lamp/so.c
	return lam, phi, finite(lam, phi)
}
