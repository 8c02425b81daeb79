package proj

import (
	"math"
	"strconv"
	"strings"

	"github.com/pspoerri/geocrs/internal/coord"
)

const (
	degree     = math.Pi / 180
	arcSecond  = degree / 3600
	grad       = math.Pi / 200
	usFoot     = 1200.0 / 3937
	intFoot    = 0.3048
	unitSnapTo = 1e-12
)

type area struct {
	west, south, east, north float64
}

type datum struct {
	name    string
	ell     coord.Ellipsoid
	toWGS84 *coord.Helmert
	pm      float64 // prime meridian, radians east of Greenwich
}

// isWGS84 reports whether the datum is WGS 84 by name, in any of the
// common spellings.
func (d datum) isWGS84() bool {
	n := coord.NormalizeName(d.name)
	n = strings.TrimPrefix(n, "d_")
	n = strings.TrimSuffix(n, "_ensemble")
	switch n {
	case "wgs_1984", "wgs84", "wgs_84", "world_geodetic_system_1984":
		return true
	}
	return false
}

// shift returns the transformation to WGS 84, or nil when it is unknown.
func (d datum) shift() *coord.Helmert {
	if d.toWGS84 != nil {
		return d.toWGS84
	}
	if d.isWGS84() {
		return &coord.Helmert{}
	}
	return nil
}

// axes describes how stored coordinates map to the east/north convention.
type axes struct {
	swapped bool    // first axis is latitude or northing
	sx, sy  float64 // -1 for west or south oriented axes, after unswapping
}

var eastNorth = axes{sx: 1, sy: 1}

type crsModel struct {
	typ       Type
	name      string
	authority string
	code      string
	area      *area

	datum   datum
	angUnit float64 // radians per angular unit
	linUnit float64 // metres per linear unit
	axes    axes

	method string // canonical projection method
	params coord.Params

	// base is the base geographic CRS of a projected CRS, or the source
	// CRS of a bound CRS.
	base *crsModel
}

func (m *crsModel) areaOfUse() *area {
	if m.area != nil {
		return m.area
	}
	if m.typ == TypeBound && m.base != nil {
		return m.base.area
	}
	return nil
}

// effective returns the CRS coordinates are actually expressed in: the
// source CRS of a bound CRS, or the CRS itself.
func (m *crsModel) effective() *crsModel {
	if m.typ == TypeBound {
		return m.base
	}
	return m
}

// snapUnit replaces conversion factors that differ from a well known unit
// only by the rounding of their decimal representation.
func snapUnit(f float64) float64 {
	for _, u := range []float64{degree, grad, arcSecond, 1, usFoot, intFoot} {
		if math.Abs(f-u) <= unitSnapTo*u {
			return u
		}
	}
	return f
}

func fmtNum(v float64) string {
	if v == 0 {
		v = 0 // fold -0
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func (d datum) fingerprint() string {
	var b strings.Builder
	b.WriteString("ellps=")
	b.WriteString(fmtNum(d.ell.A))
	b.WriteByte(',')
	b.WriteString(fmtNum(d.ell.InvF))
	b.WriteString(";towgs84=")
	if h := d.shift(); h != nil {
		for i, v := range h.Params() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(fmtNum(v))
		}
	} else {
		b.WriteString("unknown")
	}
	b.WriteString(";pm=")
	b.WriteString(fmtNum(d.pm))
	return b.String()
}

// paramDefault is the value a parameter takes when absent.
func paramDefault(key string) float64 {
	if key == coord.ParamK0 {
		return 1
	}
	return 0
}

func (m *crsModel) fingerprint() string {
	var b strings.Builder
	switch m.typ {
	case TypeGeographic2D, TypeGeographic3D:
		b.WriteString("geog;")
		b.WriteString(m.datum.fingerprint())
		b.WriteString(";unit=")
		b.WriteString(fmtNum(m.angUnit))
	case TypeGeocentric:
		b.WriteString("geoc;")
		b.WriteString(m.datum.fingerprint())
		b.WriteString(";unit=")
		b.WriteString(fmtNum(m.linUnit))
	case TypeProjected:
		b.WriteString("proj;")
		b.WriteString(m.base.datum.fingerprint())
		b.WriteString(";method=")
		b.WriteString(m.method)
		for _, k := range m.params.Keys() {
			v := m.params[k]
			if v == paramDefault(k) {
				continue
			}
			b.WriteByte(';')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(fmtNum(v))
		}
		b.WriteString(";unit=")
		b.WriteString(fmtNum(m.linUnit))
	case TypeBound:
		return m.base.fingerprint()
	default:
		b.WriteString(strings.ToLower(m.typ.String()))
		b.WriteByte(';')
		b.WriteString(coord.NormalizeName(m.name))
	}
	return b.String()
}
