package coord

import "math"

// transverseMercator uses the Krüger series to sixth order in the third
// flattening, which is accurate to well under a millimetre within a few
// thousand kilometres of the central meridian.
type transverseMercator struct {
	e, es  float64
	ak0    float64 // rectifying radius times k0
	alpha  [6]float64
	beta   [6]float64
	xi0    float64
	lon0   float64
	x0, y0 float64
}

func newTransverseMercator(e Ellipsoid, p Params) (Method, error) {
	k0 := p.get(ParamK0, 1)
	if !(k0 > 0) {
		return nil, errInvalidParam(ParamK0, k0)
	}
	f := e.F()
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	tm := &transverseMercator{
		e:    e.E(),
		es:   e.Es(),
		ak0:  k0 * e.A / (1 + n) * (1 + n2/4 + n4/64 + n6/256),
		lon0: p.get(ParamLon0, 0),
		x0:   p.get(ParamX0, 0),
		y0:   p.get(ParamY0, 0),
		alpha: [6]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
			13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
			61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
			49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
			34729*n5/80640 - 3418889*n6/1995840,
			212378941 * n6 / 319334400,
		},
		beta: [6]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
			n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
			17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
			4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
			4583*n5/161280 - 108847*n6/3991680,
			20648693 * n6 / 638668800,
		},
	}
	tm.xi0, _ = tm.xiEta(0, p.get(ParamLat0, 0))
	return tm, nil
}

// conformalTau maps tan φ to the tangent of the conformal latitude.
func conformalTau(e, tau float64) float64 {
	s := math.Sinh(e * math.Atanh(e*tau/math.Hypot(1, tau)))
	return tau*math.Hypot(1, s) - s*math.Hypot(1, tau)
}

func (tm *transverseMercator) xiEta(dlam, phi float64) (xi, eta float64) {
	tp := conformalTau(tm.e, math.Tan(phi))
	cl := math.Cos(dlam)
	xp := math.Atan2(tp, cl)
	ep := math.Asinh(math.Sin(dlam) / math.Hypot(tp, cl))
	xi, eta = xp, ep
	for j, a := range tm.alpha {
		k := float64(2 * (j + 1))
		xi += a * math.Sin(k*xp) * math.Cosh(k*ep)
		eta += a * math.Cos(k*xp) * math.Sinh(k*ep)
	}
	return xi, eta
}

func (tm *transverseMercator) Forward(lam, phi float64) (x, y float64, ok bool) {
	if !finite(lam) || !validLat(phi) {
		return 0, 0, false
	}
	dlam := adjlon(lam - tm.lon0)
	if math.Abs(dlam) >= halfPi {
		return 0, 0, false
	}
	xi, eta := tm.xiEta(dlam, phi)
	x = tm.x0 + tm.ak0*eta
	y = tm.y0 + tm.ak0*(xi-tm.xi0)
	return x, y, finite(x, y)
}

func (tm *transverseMercator) Inverse(x, y float64) (lam, phi float64, ok bool) {
	if !finite(x, y) {
		return 0, 0, false
	}
	eta := (x - tm.x0) / tm.ak0
	xi := (y-tm.y0)/tm.ak0 + tm.xi0
	xp, ep := xi, eta
	for j, b := range tm.beta {
		k := float64(2 * (j + 1))
		xp -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		ep -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}
	sh := math.Sinh(ep)
	sx, cx := math.Sincos(xp)
	tp := sx / math.Hypot(sh, cx)

	// Newton iteration for tan φ from the conformal tangent.
	tau := tp
	for i := 0; i < 30; i++ {
		tpi := conformalTau(tm.e, tau)
		d := (tp - tpi) / math.Hypot(1, tpi) *
			(1 + (1-tm.es)*tau*tau) / ((1 - tm.es) * math.Hypot(1, tau))
		tau += d
		if math.Abs(d) < 1e-14 {
			break
		}
	}
	lam = tm.lon0 + math.Atan2(sh, cx)
	phi = math.Atan(tau)
	return lam, phi, finite(lam, phi)
}
