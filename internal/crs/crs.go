// Package crs turns Well-Known-Text definitions into plain, immutable
// spatial reference definitions classified as geographic or projected.
package crs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pspoerri/geocrs/internal/proj"
)

var (
	// ErrMalformedDefinition is returned when the engine cannot build any
	// representation from the text.
	ErrMalformedDefinition = errors.New("crs: malformed definition")
	// ErrUnclassifiableDefinition is returned for definitions that parse
	// but are neither geographic nor projected.
	ErrUnclassifiableDefinition = errors.New("crs: unclassifiable definition")
	ErrInvalidArgument          = errors.New("crs: invalid argument")
	ErrNotFound                 = errors.New("crs: not found")
)

// Kind is the classification of a definition.
type Kind int

const (
	Geographic Kind = iota + 1
	Projected
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case Projected:
		return "projected"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// UnknownBound marks an undefined side of a BoundingBox.
const UnknownBound = -1000

// BoundingBox is an area of use in degrees.
type BoundingBox struct {
	West, South, East, North float64
}

// UndefinedBox is the area of use of a definition that declares none.
var UndefinedBox = BoundingBox{UnknownBound, UnknownBound, UnknownBound, UnknownBound}

// IsDefined reports whether every side of the box is known.
func (b BoundingBox) IsDefined() bool {
	for _, v := range []float64{b.West, b.South, b.East, b.North} {
		if math.Abs(v-UnknownBound) < 0.01 {
			return false
		}
	}
	return true
}

func (b BoundingBox) String() string {
	if !b.IsDefined() {
		return "undefined"
	}
	return fmt.Sprintf("W %g, S %g, E %g, N %g", b.West, b.South, b.East, b.North)
}

// Definition is a parsed spatial reference definition. WellKnownText is
// kept exactly as given.
type Definition struct {
	WellKnownText string
	Name          string
	ID            string
	Authority     string
	Kind          Kind
	// UnitsToMeters is set for projected definitions only.
	UnitsToMeters float64
	AreaOfUse     BoundingBox

	fingerprint string
}

// SetFallbackID sets the ID when the definition carries none.
func (d *Definition) SetFallbackID(id string) {
	if d.ID == "" {
		d.ID = id
	}
}

// IsEquivalent reports whether both definitions describe the same
// coordinate system for transformation purposes, regardless of names,
// identifiers, unit spelling or geographic axis order.
func (d *Definition) IsEquivalent(other *Definition) bool {
	if d == nil || other == nil {
		return false
	}
	return d.fingerprint != "" && d.fingerprint == other.fingerprint
}

// Fingerprint is the canonical form IsEquivalent compares. It is empty
// for definitions not built by Parse.
func (d *Definition) Fingerprint() string {
	return d.fingerprint
}

func (d *Definition) String() string {
	switch {
	case d.Authority != "":
		return fmt.Sprintf("%s [%s:%s]", d.Name, d.Authority, d.ID)
	case d.ID != "":
		return fmt.Sprintf("%s [%s]", d.Name, d.ID)
	}
	return d.Name
}

// Options tunes Parse.
type Options struct {
	// ResolveUnits reads the real linear unit of projected definitions
	// instead of assuming metres.
	ResolveUnits bool
}

// Parse builds a definition from WKT using ctx. The engine object is
// released before Parse returns. Calls sharing a context must be
// serialized by the caller.
func Parse(ctx *proj.Context, wkt string, opts Options) (*Definition, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: nil context", ErrInvalidArgument)
	}
	obj, err := ctx.Create(wkt)
	if err != nil {
		if errors.Is(err, proj.ErrContextClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}
	defer obj.Destroy()

	d := &Definition{
		WellKnownText: wkt,
		Name:          obj.Name(),
		ID:            obj.IDCode(),
		Authority:     obj.AuthName(),
		AreaOfUse:     UndefinedBox,
		fingerprint:   obj.Fingerprint(),
	}
	if w, s, e, n, ok := obj.AreaOfUse(); ok {
		d.AreaOfUse = BoundingBox{West: w, South: s, East: e, North: n}
	}

	switch t := obj.Type(); t {
	case proj.TypeGeographic2D:
		d.Kind = Geographic
	case proj.TypeProjected:
		d.Kind = Projected
	case proj.TypeBound:
		if err := classifyBound(obj, d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q is a %s CRS", ErrUnclassifiableDefinition, d.Name, t)
	}

	if d.Kind == Projected {
		d.UnitsToMeters = 1
		if opts.ResolveUnits {
			if f, ok := obj.LinearUnit(); ok {
				d.UnitsToMeters = f
			}
		}
	}
	return d, nil
}

// classifyBound classifies a bound CRS by the CRS it wraps, which also
// supplies the identifier. Only if the wrapped CRS is unavailable does it
// fall back to looking for a PROJECTION keyword in the text.
func classifyBound(obj *proj.Object, d *Definition) error {
	base, err := obj.SourceCRS()
	if err != nil {
		if strings.Contains(strings.ToUpper(d.WellKnownText), "PROJECTION") {
			d.Kind = Projected
		} else {
			d.Kind = Geographic
		}
		return nil
	}
	defer base.Destroy()

	switch t := base.Type(); t {
	case proj.TypeGeographic2D:
		d.Kind = Geographic
	case proj.TypeProjected:
		d.Kind = Projected
	default:
		return fmt.Errorf("%w: %q wraps a %s CRS", ErrUnclassifiableDefinition, d.Name, t)
	}
	if d.Authority == "" && d.ID == "" {
		d.Authority = base.AuthName()
		d.ID = base.IDCode()
	}
	return nil
}
