package proj

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pspoerri/geocrs/internal/coord"
	"github.com/pspoerri/geocrs/internal/wkt"
)

func parseCRS(definition string) (*crsModel, error) {
	root, err := wkt.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	m, err := interpret(root)
	if err != nil {
		return nil, err
	}
	// WKT1 carries the datum shift inside the datum; expose it the way a
	// WKT2 BOUNDCRS would.
	if m.typ == TypeGeographic2D || m.typ == TypeProjected {
		if m.geodetic().datum.toWGS84 != nil {
			return &crsModel{typ: TypeBound, name: m.name, base: m}, nil
		}
	}
	return m, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

func interpret(n *wkt.Node) (*crsModel, error) {
	switch {
	case n.Is("GEOGCS"):
		return wkt1Geographic(n)
	case n.Is("PROJCS"):
		return wkt1Projected(n)
	case n.Is("GEOCCS"):
		return wkt1Geocentric(n)
	case n.Is("VERT_CS", "VERTCRS", "VERTICALCRS"):
		return other(n, TypeVertical), nil
	case n.Is("COMPD_CS", "COMPOUNDCRS"):
		return other(n, TypeCompound), nil
	case n.Is("LOCAL_CS", "ENGCRS", "ENGINEERINGCRS"):
		return other(n, TypeEngineering), nil
	case n.Is("GEOGCRS", "GEOGRAPHICCRS", "GEODCRS", "GEODETICCRS"):
		return wkt2Geodetic(n)
	case n.Is("PROJCRS", "PROJECTEDCRS"):
		return wkt2Projected(n)
	case n.Is("BOUNDCRS"):
		return wkt2Bound(n)
	}
	return nil, invalid("unsupported object %s", n.Keyword)
}

// geodetic returns the CRS holding the datum: the base of a projected CRS
// or the CRS itself.
func (m *crsModel) geodetic() *crsModel {
	if m.typ == TypeProjected {
		return m.base
	}
	return m
}

func other(n *wkt.Node, t Type) *crsModel {
	m := &crsModel{typ: t, name: n.Name()}
	m.authority, m.code = identifier(n)
	m.area = areaOf(n)
	return m
}

func identifier(n *wkt.Node) (authority, code string) {
	id := n.Child("ID", "AUTHORITY")
	if id == nil {
		return "", ""
	}
	authority, _ = id.Text(0)
	code, _ = id.Text(1)
	return authority, code
}

func areaOf(n *wkt.Node) *area {
	bb := n.Child("BBOX")
	if bb == nil {
		if u := n.Child("USAGE"); u != nil {
			bb = u.Child("BBOX")
		}
	}
	if bb == nil {
		return nil
	}
	v := bb.Numbers()
	if len(v) != 4 {
		return nil
	}
	// BBOX is south, west, north, east.
	return &area{south: v[0], west: v[1], north: v[2], east: v[3]}
}

// unitFactor reads the conversion factor of a UNIT-like node.
func unitFactor(u *wkt.Node) (float64, error) {
	f, ok := u.Number(1)
	if !ok || !(f > 0) || math.IsInf(f, 0) {
		return 0, invalid("bad unit %s", u)
	}
	return snapUnit(f), nil
}

func ellipsoidOf(n *wkt.Node) (coord.Ellipsoid, error) {
	a, okA := n.Number(1)
	rf, okF := n.Number(2)
	if !okA || !okF {
		return coord.Ellipsoid{}, invalid("bad ellipsoid %s", n)
	}
	if u := n.Child("LENGTHUNIT", "UNIT"); u != nil {
		f, err := unitFactor(u)
		if err != nil {
			return coord.Ellipsoid{}, err
		}
		a *= f
	}
	e := coord.Ellipsoid{A: a, InvF: rf}
	if err := e.Validate(); err != nil {
		return coord.Ellipsoid{}, invalid("ellipsoid %q: %v", n.Name(), err)
	}
	return e, nil
}

func primeMeridian(n *wkt.Node) (float64, error) {
	pm := n.Child("PRIMEM", "PRIMEMERIDIAN")
	if pm == nil {
		return 0, nil
	}
	v, ok := pm.Number(1)
	if !ok {
		return 0, invalid("bad prime meridian %s", pm)
	}
	unit := degree
	if u := pm.Child("ANGLEUNIT", "UNIT"); u != nil {
		f, err := unitFactor(u)
		if err != nil {
			return 0, err
		}
		unit = f
	}
	return v * unit, nil
}

// axesOf derives the axis convention from AXIS nodes sorted by ORDER.
func axesOf(nodes []*wkt.Node) axes {
	if len(nodes) < 2 {
		return eastNorth
	}
	sorted := append([]*wkt.Node(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, _ := sorted[i].Child("ORDER").Number(0)
		oj, _ := sorted[j].Child("ORDER").Number(0)
		return oi < oj
	})
	d0, _ := sorted[0].Text(1)
	d1, _ := sorted[1].Text(1)
	d0, d1 = strings.ToLower(d0), strings.ToLower(d1)

	a := eastNorth
	if d0 == "north" || d0 == "south" {
		a.swapped = true
		d0, d1 = d1, d0
	}
	if d0 == "west" {
		a.sx = -1
	}
	if d1 == "south" {
		a.sy = -1
	}
	return a
}

// axisUnit returns the factor of the first unit found on the axes, then
// on the CRS node itself.
func axisUnit(n *wkt.Node, keywords ...string) (float64, bool, error) {
	for _, ax := range n.Children("AXIS") {
		if u := ax.Child(keywords...); u != nil {
			f, err := unitFactor(u)
			return f, true, err
		}
	}
	if cs := n.Child("CS"); cs != nil {
		if u := cs.Child(keywords...); u != nil {
			f, err := unitFactor(u)
			return f, true, err
		}
	}
	if u := n.Child(keywords...); u != nil {
		f, err := unitFactor(u)
		return f, true, err
	}
	return 0, false, nil
}

func wkt1Datum(n *wkt.Node) (datum, error) {
	dn := n.Child("DATUM")
	if dn == nil {
		return datum{}, invalid("%s %q has no DATUM", n.Keyword, n.Name())
	}
	sph := dn.Child("SPHEROID", "ELLIPSOID")
	if sph == nil {
		return datum{}, invalid("datum %q has no SPHEROID", dn.Name())
	}
	ell, err := ellipsoidOf(sph)
	if err != nil {
		return datum{}, err
	}
	d := datum{name: dn.Name(), ell: ell}
	if tw := dn.Child("TOWGS84"); tw != nil {
		h, err := coord.NewHelmert(tw.Numbers())
		if err != nil {
			return datum{}, invalid("datum %q: %v", dn.Name(), err)
		}
		d.toWGS84 = &h
	}
	// WKT1 writes the prime meridian in degrees.
	if pm := n.Child("PRIMEM"); pm != nil {
		v, ok := pm.Number(1)
		if !ok {
			return datum{}, invalid("bad prime meridian %s", pm)
		}
		d.pm = v * degree
	}
	return d, nil
}

func wkt1Geographic(n *wkt.Node) (*crsModel, error) {
	d, err := wkt1Datum(n)
	if err != nil {
		return nil, err
	}
	ang := degree
	if u := n.Child("UNIT"); u != nil {
		if ang, err = unitFactor(u); err != nil {
			return nil, err
		}
	}
	m := &crsModel{
		typ:     TypeGeographic2D,
		name:    n.Name(),
		datum:   d,
		angUnit: ang,
		axes:    axesOf(n.Children("AXIS")),
	}
	m.authority, m.code = identifier(n)
	return m, nil
}

func wkt1Geocentric(n *wkt.Node) (*crsModel, error) {
	d, err := wkt1Datum(n)
	if err != nil {
		return nil, err
	}
	lin := 1.0
	if u := n.Child("UNIT"); u != nil {
		if lin, err = unitFactor(u); err != nil {
			return nil, err
		}
	}
	m := &crsModel{typ: TypeGeocentric, name: n.Name(), datum: d, linUnit: lin, axes: eastNorth}
	m.authority, m.code = identifier(n)
	return m, nil
}

// methodOf resolves a projection method by its identifier code, then its
// name. Unknown methods keep their normalized name and fail only when an
// operation is built.
func methodOf(n *wkt.Node) string {
	if id := n.Child("ID", "AUTHORITY"); id != nil {
		if code, ok := id.Text(1); ok {
			if m, ok := coord.CanonicalMethod(code); ok {
				return m
			}
		}
	}
	if m, ok := coord.CanonicalMethod(n.Name()); ok {
		return m
	}
	return "unknown:" + coord.NormalizeName(n.Name())
}

func paramKeyOf(p *wkt.Node) (string, bool) {
	if id := p.Child("ID", "AUTHORITY"); id != nil {
		if code, ok := id.Text(1); ok {
			if k, ok := coord.ParamKey(code); ok {
				return k, true
			}
		}
	}
	return coord.ParamKey(p.Name())
}

func wkt1Projected(n *wkt.Node) (*crsModel, error) {
	g := n.Child("GEOGCS")
	if g == nil {
		return nil, invalid("PROJCS %q has no GEOGCS", n.Name())
	}
	base, err := wkt1Geographic(g)
	if err != nil {
		return nil, err
	}
	pj := n.Child("PROJECTION")
	if pj == nil {
		return nil, invalid("PROJCS %q has no PROJECTION", n.Name())
	}
	lin := 1.0
	if u := n.Child("UNIT"); u != nil {
		if lin, err = unitFactor(u); err != nil {
			return nil, err
		}
	}

	params := coord.Params{}
	for _, p := range n.Children("PARAMETER") {
		key, ok := paramKeyOf(p)
		if !ok {
			continue
		}
		v, ok := p.Number(1)
		if !ok {
			return nil, invalid("bad parameter %s", p)
		}
		switch {
		case coord.IsLinearParam(key):
			v *= lin
		case coord.IsAngularParam(key):
			v *= base.angUnit
		}
		params[key] = v
	}

	method := methodOf(pj)
	if method == coord.MethodMercatorA && isSphericalMercatorExtension(n) {
		method = coord.MethodPseudoMercator
	}

	m := &crsModel{
		typ:     TypeProjected,
		name:    n.Name(),
		base:    base,
		linUnit: lin,
		axes:    axesOf(n.Children("AXIS")),
		method:  method,
		params:  params,
	}
	m.authority, m.code = identifier(n)
	return m, nil
}

// isSphericalMercatorExtension detects the GDAL convention of writing Web
// Mercator as Mercator_1SP with a spherical PROJ4 extension.
func isSphericalMercatorExtension(n *wkt.Node) bool {
	ext := n.Child("EXTENSION")
	if ext == nil {
		return false
	}
	s, _ := ext.Text(1)
	return strings.Contains(s, "+a=6378137") && strings.Contains(s, "+b=6378137")
}

func wkt2Datum(n *wkt.Node) (datum, error) {
	dn := n.Child("DATUM", "GEODETICDATUM", "TRF", "ENSEMBLE")
	if dn == nil {
		return datum{}, invalid("%s %q has no datum", n.Keyword, n.Name())
	}
	en := dn.Child("ELLIPSOID", "SPHEROID")
	if en == nil {
		return datum{}, invalid("datum %q has no ellipsoid", dn.Name())
	}
	ell, err := ellipsoidOf(en)
	if err != nil {
		return datum{}, err
	}
	pm, err := primeMeridian(n)
	if err != nil {
		return datum{}, err
	}
	return datum{name: dn.Name(), ell: ell, pm: pm}, nil
}

func wkt2Geodetic(n *wkt.Node) (*crsModel, error) {
	d, err := wkt2Datum(n)
	if err != nil {
		return nil, err
	}
	typ := TypeGeographic2D
	if cs := n.Child("CS"); cs != nil {
		kind, _ := cs.Text(0)
		dim, _ := cs.Number(1)
		switch strings.ToLower(kind) {
		case "ellipsoidal":
			if dim == 3 {
				typ = TypeGeographic3D
			}
		case "cartesian":
			typ = TypeGeocentric
		default:
			return nil, invalid("unsupported coordinate system %q", kind)
		}
	}
	m := &crsModel{
		typ:   typ,
		name:  n.Name(),
		datum: d,
		axes:  axesOf(n.Children("AXIS")),
		area:  areaOf(n),
	}
	m.authority, m.code = identifier(n)

	if typ == TypeGeocentric {
		m.linUnit = 1
		if f, ok, err := axisUnit(n, "LENGTHUNIT", "UNIT"); err != nil {
			return nil, err
		} else if ok {
			m.linUnit = f
		}
		m.axes = eastNorth
		return m, nil
	}
	m.angUnit = degree
	if f, ok, err := axisUnit(n, "ANGLEUNIT", "UNIT"); err != nil {
		return nil, err
	} else if ok {
		m.angUnit = f
	}
	return m, nil
}

func wkt2Projected(n *wkt.Node) (*crsModel, error) {
	bn := n.Child("BASEGEOGCRS", "BASEGEODCRS", "BASEGEOGRAPHICCRS", "BASEGEODETICCRS")
	if bn == nil {
		return nil, invalid("PROJCRS %q has no base CRS", n.Name())
	}
	base, err := wkt2Geodetic(bn)
	if err != nil {
		return nil, err
	}
	if base.typ == TypeGeocentric {
		return nil, invalid("PROJCRS %q has a geocentric base", n.Name())
	}
	conv := n.Child("CONVERSION")
	if conv == nil {
		return nil, invalid("PROJCRS %q has no CONVERSION", n.Name())
	}
	mn := conv.Child("METHOD", "PROJECTION")
	if mn == nil {
		return nil, invalid("conversion %q has no METHOD", conv.Name())
	}

	lin := 1.0
	if f, ok, err := axisUnit(n, "LENGTHUNIT", "UNIT"); err != nil {
		return nil, err
	} else if ok {
		lin = f
	}

	params := coord.Params{}
	for _, p := range conv.Children("PARAMETER") {
		key, ok := paramKeyOf(p)
		if !ok {
			continue
		}
		v, ok := p.Number(1)
		if !ok {
			return nil, invalid("bad parameter %s", p)
		}
		if u := p.Child("ANGLEUNIT", "LENGTHUNIT", "SCALEUNIT", "UNIT"); u != nil {
			f, err := unitFactor(u)
			if err != nil {
				return nil, err
			}
			v *= f
		} else if coord.IsLinearParam(key) {
			v *= lin
		} else if coord.IsAngularParam(key) {
			v *= base.angUnit
		}
		params[key] = v
	}

	m := &crsModel{
		typ:     TypeProjected,
		name:    n.Name(),
		base:    base,
		linUnit: lin,
		axes:    axesOf(n.Children("AXIS")),
		method:  methodOf(mn),
		params:  params,
		area:    areaOf(n),
	}
	m.authority, m.code = identifier(n)
	return m, nil
}

// firstNode returns the first keyword node argument of n.
func firstNode(n *wkt.Node) *wkt.Node {
	if n == nil {
		return nil
	}
	for _, a := range n.Args {
		if a.Node != nil {
			return a.Node
		}
	}
	return nil
}

// Helmert parameter codes of the EPSG dataset.
var helmertCodes = map[string]int{
	"8605": 0, "x_axis_translation": 0,
	"8606": 1, "y_axis_translation": 1,
	"8607": 2, "z_axis_translation": 2,
	"8608": 3, "x_axis_rotation": 3,
	"8609": 4, "y_axis_rotation": 4,
	"8610": 5, "z_axis_rotation": 5,
	"8611": 6, "scale_difference": 6,
}

func helmertIndex(p *wkt.Node) (int, bool) {
	if id := p.Child("ID", "AUTHORITY"); id != nil {
		if code, ok := id.Text(1); ok {
			if i, ok := helmertCodes[code]; ok {
				return i, true
			}
		}
	}
	i, ok := helmertCodes[coord.NormalizeName(p.Name())]
	return i, ok
}

// abridgedHelmert reads the position-vector parameters of an
// ABRIDGEDTRANSFORMATION. Coordinate frame rotations are converted.
func abridgedHelmert(tr *wkt.Node) (coord.Helmert, error) {
	var v [7]float64
	for _, p := range tr.Children("PARAMETER") {
		i, ok := helmertIndex(p)
		if !ok {
			continue
		}
		x, ok := p.Number(1)
		if !ok {
			return coord.Helmert{}, invalid("bad parameter %s", p)
		}
		if u := p.Child("ANGLEUNIT", "LENGTHUNIT", "SCALEUNIT", "UNIT"); u != nil {
			f, err := unitFactor(u)
			if err != nil {
				return coord.Helmert{}, err
			}
			switch {
			case i >= 3 && i <= 5:
				x = x * f / arcSecond
			case i == 6:
				x = x * f / 1e-6
			default:
				x *= f
			}
		}
		v[i] = x
	}
	method := ""
	if mn := tr.Child("METHOD"); mn != nil {
		method = coord.NormalizeName(mn.Name())
		if id := mn.Child("ID"); id != nil {
			if code, ok := id.Text(1); ok && (code == "9607" || code == "1032" || code == "9609") {
				method = "coordinate_frame"
			}
		}
	}
	if strings.Contains(method, "coordinate_frame") {
		v[3], v[4], v[5] = -v[3], -v[4], -v[5]
	}
	return coord.NewHelmert(v[:])
}

func wkt2Bound(n *wkt.Node) (*crsModel, error) {
	srcNode := firstNode(n.Child("SOURCECRS"))
	dstNode := firstNode(n.Child("TARGETCRS"))
	tr := n.Child("ABRIDGEDTRANSFORMATION")
	if srcNode == nil || dstNode == nil || tr == nil {
		return nil, invalid("BOUNDCRS needs SOURCECRS, TARGETCRS and ABRIDGEDTRANSFORMATION")
	}
	src, err := interpret(srcNode)
	if err != nil {
		return nil, err
	}
	if src.typ != TypeGeographic2D && src.typ != TypeGeographic3D && src.typ != TypeProjected {
		return nil, invalid("BOUNDCRS source %q is %s", src.name, src.typ)
	}
	dst, err := interpret(dstNode)
	if err != nil {
		return nil, err
	}
	if h := dst.geodetic().datum.shift(); h == nil || !h.IsZero() {
		return nil, invalid("BOUNDCRS target %q is not WGS 84", dst.name)
	}
	h, err := abridgedHelmert(tr)
	if err != nil {
		return nil, err
	}
	src.geodetic().datum.toWGS84 = &h
	return &crsModel{typ: TypeBound, name: src.name, base: src}, nil
}
