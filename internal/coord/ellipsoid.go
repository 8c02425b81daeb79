package coord

import (
	"fmt"
	"math"
)

// Ellipsoid is a reference ellipsoid of revolution.
type Ellipsoid struct {
	A    float64 // semi-major axis in metres
	InvF float64 // inverse flattening, 0 for a sphere
}

var (
	// WGS84 is the World Geodetic System 1984 ellipsoid.
	WGS84 = Ellipsoid{A: 6378137, InvF: 298.257223563}
	// GRS80 is the Geodetic Reference System 1980 ellipsoid.
	GRS80 = Ellipsoid{A: 6378137, InvF: 298.257222101}
)

// IsSphere reports whether the ellipsoid has no flattening.
func (e Ellipsoid) IsSphere() bool { return e.InvF == 0 || math.IsInf(e.InvF, 0) }

// F returns the flattening.
func (e Ellipsoid) F() float64 {
	if e.IsSphere() {
		return 0
	}
	return 1 / e.InvF
}

// B returns the semi-minor axis.
func (e Ellipsoid) B() float64 { return e.A * (1 - e.F()) }

// Es returns the first eccentricity squared.
func (e Ellipsoid) Es() float64 {
	f := e.F()
	return f * (2 - f)
}

// E returns the first eccentricity.
func (e Ellipsoid) E() float64 { return math.Sqrt(e.Es()) }

// Validate checks the axis and flattening are usable.
func (e Ellipsoid) Validate() error {
	if !(e.A > 0) || math.IsInf(e.A, 0) {
		return fmt.Errorf("invalid semi-major axis %v", e.A)
	}
	if e.InvF < 0 || (e.InvF > 0 && e.InvF < 1) {
		return fmt.Errorf("invalid inverse flattening %v", e.InvF)
	}
	return nil
}

// ToGeocentric converts geodetic longitude/latitude (radians) and
// ellipsoidal height (metres) to earth-centred cartesian coordinates.
func (e Ellipsoid) ToGeocentric(lam, phi, h float64) (x, y, z float64) {
	es := e.Es()
	sinPhi, cosPhi := math.Sincos(phi)
	n := e.A / math.Sqrt(1-es*sinPhi*sinPhi)
	x = (n + h) * cosPhi * math.Cos(lam)
	y = (n + h) * cosPhi * math.Sin(lam)
	z = (n*(1-es) + h) * sinPhi
	return
}

// FromGeocentric converts earth-centred cartesian coordinates back to
// geodetic longitude/latitude (radians) and height (metres).
// Uses Bowring's formula followed by one Newton refinement.
func (e Ellipsoid) FromGeocentric(x, y, z float64) (lam, phi, h float64) {
	a := e.A
	b := e.B()
	es := e.Es()
	p := math.Hypot(x, y)
	lam = math.Atan2(y, x)

	if p < 1e-9 {
		// On the polar axis.
		phi = math.Copysign(math.Pi/2, z)
		h = math.Abs(z) - b
		return
	}

	ep2 := (a*a - b*b) / (b * b)
	theta := math.Atan2(z*a, p*b)
	sinT, cosT := math.Sincos(theta)
	phi = math.Atan2(z+ep2*b*sinT*sinT*sinT, p-es*a*cosT*cosT*cosT)

	for i := 0; i < 2; i++ {
		sinPhi := math.Sin(phi)
		n := a / math.Sqrt(1-es*sinPhi*sinPhi)
		h = p/math.Cos(phi) - n
		phi = math.Atan2(z, p*(1-es*n/(n+h)))
	}
	sinPhi := math.Sin(phi)
	n := a / math.Sqrt(1-es*sinPhi*sinPhi)
	h = p/math.Cos(phi) - n
	return
}

// arcSecond is one second of arc in radians.
const arcSecond = math.Pi / (180 * 3600)

// Helmert is a seven-parameter similarity transformation to WGS84 in the
// position-vector convention used by WKT TOWGS84: translations in metres,
// rotations in arc-seconds, scale difference in parts per million.
type Helmert struct {
	DX, DY, DZ float64
	RX, RY, RZ float64
	DS         float64
}

// NewHelmert builds a Helmert transformation from 3 or 7 TOWGS84 values.
func NewHelmert(params []float64) (Helmert, error) {
	switch len(params) {
	case 3:
		return Helmert{DX: params[0], DY: params[1], DZ: params[2]}, nil
	case 7:
		return Helmert{
			DX: params[0], DY: params[1], DZ: params[2],
			RX: params[3], RY: params[4], RZ: params[5],
			DS: params[6],
		}, nil
	default:
		return Helmert{}, fmt.Errorf("TOWGS84 needs 3 or 7 parameters, got %d", len(params))
	}
}

// IsZero reports whether the transformation is the identity.
func (h Helmert) IsZero() bool { return h == Helmert{} }

// Params returns the seven parameters in TOWGS84 order.
func (h Helmert) Params() [7]float64 {
	return [7]float64{h.DX, h.DY, h.DZ, h.RX, h.RY, h.RZ, h.DS}
}

// Forward applies the transformation (local datum → WGS84).
func (h Helmert) Forward(x, y, z float64) (float64, float64, float64) {
	rx, ry, rz := h.RX*arcSecond, h.RY*arcSecond, h.RZ*arcSecond
	m := 1 + h.DS*1e-6
	return m*(x-rz*y+ry*z) + h.DX,
		m*(rz*x+y-rx*z) + h.DY,
		m*(-ry*x+rx*y+z) + h.DZ
}

// Inverse applies the transformation in reverse (WGS84 → local datum).
// The rotation matrix is inverted by transposition, which is exact to
// first order in the small rotation angles.
func (h Helmert) Inverse(x, y, z float64) (float64, float64, float64) {
	rx, ry, rz := h.RX*arcSecond, h.RY*arcSecond, h.RZ*arcSecond
	m := 1 + h.DS*1e-6
	x = (x - h.DX) / m
	y = (y - h.DY) / m
	z = (z - h.DZ) / m
	return x + rz*y - ry*z,
		-rz*x + y + rx*z,
		ry*x - rx*y + z
}
