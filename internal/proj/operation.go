package proj

import (
	"fmt"
	"math"

	"github.com/pspoerri/geocrs/internal/coord"
)

// endpoint is one side of a coordinate operation, reduced to what the
// per-point conversion needs.
type endpoint struct {
	crs   *crsModel    // geographic or projected CRS the coordinates are in
	geo   *crsModel    // CRS holding the datum
	proj  coord.Method // nil for geographic CRSs
	shift *coord.Helmert
	axes  axes
}

func newEndpoint(m *crsModel) (endpoint, error) {
	e := m.effective()
	switch e.typ {
	case TypeGeographic2D, TypeGeographic3D:
		return endpoint{crs: e, geo: e, shift: e.datum.shift(), axes: e.axes}, nil
	case TypeProjected:
		method, err := coord.NewMethod(e.method, e.base.datum.ell, e.params)
		if err != nil {
			return endpoint{}, fmt.Errorf("%w: %q: %w", ErrNoOperation, e.name, err)
		}
		return endpoint{crs: e, geo: e.base, proj: method, shift: e.base.datum.shift(), axes: e.axes}, nil
	}
	return endpoint{}, fmt.Errorf("%w: %s CRS %q", ErrNoOperation, e.typ, e.name)
}

type operation struct {
	src, dst endpoint
	srcName  string
	dstName  string
}

func (op *operation) name() string {
	return op.srcName + " to " + op.dstName
}

// needsShift reports whether points must pass through geocentric space
// between the two datums. When either datum has no known relation to
// WGS 84 the geographic coordinates are carried over unchanged.
func needsShift(from, to *endpoint) bool {
	if from.shift == nil || to.shift == nil {
		return false
	}
	return *from.shift != *to.shift || from.geo.datum.ell != to.geo.datum.ell
}

func wrapLon(lam float64) float64 {
	if lam > math.Pi || lam < -math.Pi {
		return math.Remainder(lam, 2*math.Pi)
	}
	return lam
}

// toGeographic converts a stored coordinate to longitude/latitude in
// radians from Greenwich.
func (ep *endpoint) toGeographic(x, y float64) (lam, phi float64, errno int) {
	if ep.axes.swapped {
		x, y = y, x
	}
	x, y = x*ep.axes.sx, y*ep.axes.sy
	if ep.proj == nil {
		lam = x*ep.crs.angUnit + ep.geo.datum.pm
		phi = y * ep.crs.angUnit
		if math.Abs(phi) > math.Pi/2+1e-12 {
			return 0, 0, ErrnoInvalidCoord
		}
		return lam, phi, ErrnoNone
	}
	lam, phi, ok := ep.proj.Inverse(x*ep.crs.linUnit, y*ep.crs.linUnit)
	if !ok {
		return 0, 0, ErrnoOutsideDomain
	}
	return wrapLon(lam + ep.geo.datum.pm), phi, ErrnoNone
}

func (ep *endpoint) fromGeographic(lam, phi float64) (x, y float64, errno int) {
	lam = wrapLon(lam - ep.geo.datum.pm)
	if ep.proj == nil {
		x, y = lam/ep.crs.angUnit, phi/ep.crs.angUnit
	} else {
		var ok bool
		x, y, ok = ep.proj.Forward(lam, phi)
		if !ok {
			return 0, 0, ErrnoOutsideDomain
		}
		x, y = x/ep.crs.linUnit, y/ep.crs.linUnit
	}
	x, y = x*ep.axes.sx, y*ep.axes.sy
	if ep.axes.swapped {
		x, y = y, x
	}
	return x, y, ErrnoNone
}

func transformPoint(from, to *endpoint, x, y float64) (float64, float64, int) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, ErrnoInvalidCoord
	}
	lam, phi, errno := from.toGeographic(x, y)
	if errno != ErrnoNone {
		return 0, 0, errno
	}
	if needsShift(from, to) {
		gx, gy, gz := from.geo.datum.ell.ToGeocentric(lam, phi, 0)
		gx, gy, gz = from.shift.Forward(gx, gy, gz)
		gx, gy, gz = to.shift.Inverse(gx, gy, gz)
		lam, phi, _ = to.geo.datum.ell.FromGeocentric(gx, gy, gz)
	}
	x, y, errno = to.fromGeographic(lam, phi)
	if errno != ErrnoNone {
		return 0, 0, errno
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, ErrnoCoordTransfm
	}
	return x, y, ErrnoNone
}

// CreateCRSToCRS creates an operation transforming coordinates from the
// source CRS definition to the target one. Both definitions must be
// geographic, projected or bound to either.
func (ctx *Context) CreateCRSToCRS(source, target string) (*Object, error) {
	if !ctx.isOpen() {
		return nil, ErrContextClosed
	}
	src, err := parseCRS(source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst, err := parseCRS(target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	from, err := newEndpoint(src)
	if err != nil {
		return nil, err
	}
	to, err := newEndpoint(dst)
	if err != nil {
		return nil, err
	}
	op := &operation{src: from, dst: to, srcName: src.name, dstName: dst.name}
	return ctx.track(&Object{op: op})
}

// NormalizeForVisualization returns a new operation that accepts and
// produces coordinates in longitude/latitude or easting/northing order,
// whatever the axis order of the CRS definitions. Axis directions are
// kept. The input object is left untouched.
func (ctx *Context) NormalizeForVisualization(o *Object) (*Object, error) {
	if !ctx.isOpen() {
		return nil, ErrContextClosed
	}
	if o.IsDestroyed() {
		return nil, ErrObjectDestroyed
	}
	if o.op == nil {
		return nil, ErrNotOperation
	}
	op := *o.op
	op.src.axes.swapped = false
	op.dst.axes.swapped = false
	return ctx.track(&Object{op: &op})
}

// TransXY transforms count points in place. Each point occupies stride
// doubles of coords, the first two being x and y. Points that cannot be
// transformed are set to +Inf and leave an error number on the object.
// It returns the number of points transformed successfully.
func (o *Object) TransXY(dir Direction, coords []float64, stride, count int) (int, error) {
	if o.IsDestroyed() {
		return 0, ErrObjectDestroyed
	}
	if o.op == nil {
		return 0, ErrNotOperation
	}
	if stride < 2 || count < 0 {
		return 0, fmt.Errorf("%w: stride %d, count %d", ErrInvalidBuffer, stride, count)
	}
	o.errno = ErrnoNone
	if count == 0 {
		return 0, nil
	}
	if need := (count-1)*stride + 2; need > len(coords) {
		return 0, fmt.Errorf("%w: %d points with stride %d need %d values, have %d",
			ErrInvalidBuffer, count, stride, need, len(coords))
	}
	if dir == Ident {
		return count, nil
	}

	from, to := &o.op.src, &o.op.dst
	if dir == Inv {
		from, to = to, from
	}
	n := 0
	for i := 0; i < count; i++ {
		j := i * stride
		x, y, errno := transformPoint(from, to, coords[j], coords[j+1])
		if errno != ErrnoNone {
			coords[j], coords[j+1] = math.Inf(1), math.Inf(1)
			o.errno = errno
			continue
		}
		coords[j], coords[j+1] = x, y
		n++
	}
	return n, nil
}
