// Package proj is a small pure-Go geodetic engine. It mirrors the object
// model of the PROJ C API: a Context owns every object created through it,
// objects are opaque handles that must be destroyed, CRS objects expose
// their category, name, identifier and area of use, and coordinate
// operations transform interleaved coordinate buffers in place.
package proj

import (
	"errors"
	"runtime"
	"sync"
)

var (
	ErrContextClosed     = errors.New("proj: context is closed")
	ErrObjectDestroyed   = errors.New("proj: object is destroyed")
	ErrInvalidDefinition = errors.New("proj: invalid definition")
	ErrNotCRS            = errors.New("proj: object is not a CRS")
	ErrNotOperation      = errors.New("proj: object is not a coordinate operation")
	ErrNoSourceCRS       = errors.New("proj: object has no source CRS")
	ErrNoOperation       = errors.New("proj: no operation found")
	ErrInvalidBuffer     = errors.New("proj: invalid coordinate buffer")
)

// Per-object error numbers, reported by Object.Errno after a transform.
const (
	ErrnoNone          = 0
	ErrnoCoordTransfm  = 2048
	ErrnoInvalidCoord  = 2049
	ErrnoOutsideDomain = 2050
)

// Type is the category of an object.
type Type int

const (
	TypeUnknown Type = iota
	TypeGeographic2D
	TypeGeographic3D
	TypeGeocentric
	TypeProjected
	TypeBound
	TypeCompound
	TypeVertical
	TypeEngineering
	TypeTransformation
)

func (t Type) String() string {
	switch t {
	case TypeGeographic2D:
		return "geographic 2D"
	case TypeGeographic3D:
		return "geographic 3D"
	case TypeGeocentric:
		return "geocentric"
	case TypeProjected:
		return "projected"
	case TypeBound:
		return "bound"
	case TypeCompound:
		return "compound"
	case TypeVertical:
		return "vertical"
	case TypeEngineering:
		return "engineering"
	case TypeTransformation:
		return "transformation"
	default:
		return "unknown"
	}
}

// IsCRS reports whether the type is a coordinate reference system.
func (t Type) IsCRS() bool {
	return t != TypeUnknown && t != TypeTransformation
}

// Direction of a coordinate operation.
type Direction int

const (
	Fwd   Direction = 1
	Ident Direction = 0
	Inv   Direction = -1
)

// Context owns the objects created through it. Object construction on one
// context must be serialized by the caller; bookkeeping is internally
// locked so objects may be destroyed from any goroutine.
type Context struct {
	mu      sync.Mutex
	opened  bool
	counter uint64
	objects map[uint64]Type
}

// Object is a handle to a CRS or a coordinate operation.
type Object struct {
	ctx    *Context
	index  uint64
	opened bool

	crs   *crsModel
	op    *operation
	errno int
}

// NewContext creates a context.
func NewContext() *Context {
	ctx := &Context{
		opened:  true,
		objects: make(map[uint64]Type),
	}
	runtime.SetFinalizer(ctx, (*Context).Close)
	return ctx
}

// Close releases every object still owned by the context. Calling Close
// more than once is a no-op.
func (ctx *Context) Close() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.opened {
		return
	}
	clear(ctx.objects)
	ctx.opened = false
}

// Live returns the number of objects created through the context and not
// yet destroyed.
func (ctx *Context) Live() int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return len(ctx.objects)
}

func (ctx *Context) track(o *Object) (*Object, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.opened {
		return nil, ErrContextClosed
	}
	o.ctx = ctx
	o.index = ctx.counter
	o.opened = true
	t := TypeTransformation
	if o.crs != nil {
		t = o.crs.typ
	}
	ctx.objects[ctx.counter] = t
	ctx.counter++
	runtime.SetFinalizer(o, (*Object).Destroy)
	return o, nil
}

func (ctx *Context) isOpen() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.opened
}

// Create parses a WKT1 or WKT2 CRS definition.
func (ctx *Context) Create(definition string) (*Object, error) {
	if !ctx.isOpen() {
		return nil, ErrContextClosed
	}
	m, err := parseCRS(definition)
	if err != nil {
		return nil, err
	}
	return ctx.track(&Object{crs: m})
}

// Destroy releases the object. Calling Destroy more than once is a no-op.
func (o *Object) Destroy() {
	if o == nil || o.ctx == nil {
		return
	}
	ctx := o.ctx
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !o.opened {
		return
	}
	delete(ctx.objects, o.index)
	o.opened = false
	runtime.SetFinalizer(o, nil)
}

// IsDestroyed reports whether the object has been released, directly or by
// closing its context.
func (o *Object) IsDestroyed() bool {
	if o == nil || o.ctx == nil {
		return true
	}
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return !o.opened || !o.ctx.opened
}

// Type returns the category of the object.
func (o *Object) Type() Type {
	switch {
	case o.IsDestroyed():
		return TypeUnknown
	case o.op != nil:
		return TypeTransformation
	case o.crs != nil:
		return o.crs.typ
	}
	return TypeUnknown
}

// Name returns the object name.
func (o *Object) Name() string {
	switch {
	case o.IsDestroyed():
		return ""
	case o.op != nil:
		return o.op.name()
	case o.crs != nil:
		return o.crs.name
	}
	return ""
}

// AuthName returns the authority of the object's first identifier.
func (o *Object) AuthName() string {
	if o.IsDestroyed() || o.crs == nil {
		return ""
	}
	return o.crs.authority
}

// IDCode returns the code of the object's first identifier. Bound CRSs
// carry no identifier of their own.
func (o *Object) IDCode() string {
	if o.IsDestroyed() || o.crs == nil {
		return ""
	}
	return o.crs.code
}

// AreaOfUse returns the geographic bounding box in degrees. ok is false
// when the definition does not declare one.
func (o *Object) AreaOfUse() (west, south, east, north float64, ok bool) {
	if o.IsDestroyed() || o.crs == nil {
		return 0, 0, 0, 0, false
	}
	a := o.crs.areaOfUse()
	if a == nil {
		return 0, 0, 0, 0, false
	}
	return a.west, a.south, a.east, a.north, true
}

// SourceCRS returns a new object for the CRS wrapped by a bound CRS, or
// the base geographic CRS of a projected CRS. The caller must destroy it.
func (o *Object) SourceCRS() (*Object, error) {
	if o.IsDestroyed() {
		return nil, ErrObjectDestroyed
	}
	if o.crs == nil {
		return nil, ErrNotCRS
	}
	if o.crs.base == nil {
		return nil, ErrNoSourceCRS
	}
	return o.ctx.track(&Object{crs: o.crs.base})
}

// LinearUnit returns the number of metres per linear unit of a projected
// or geocentric CRS.
func (o *Object) LinearUnit() (float64, bool) {
	if o.IsDestroyed() || o.crs == nil {
		return 0, false
	}
	m := o.crs
	if m.typ == TypeBound {
		m = m.base
	}
	switch m.typ {
	case TypeProjected, TypeGeocentric:
		return m.linUnit, true
	}
	return 0, false
}

// Fingerprint returns a canonical description of the semantic content of
// a CRS: datum, ellipsoid, prime meridian, projection and units. Names,
// identifiers, areas and axis order do not contribute.
func (o *Object) Fingerprint() string {
	if o.IsDestroyed() || o.crs == nil {
		return ""
	}
	return o.crs.fingerprint()
}

// IsEquivalentTo reports whether two CRS objects describe the same
// coordinate system for transformation purposes.
func (o *Object) IsEquivalentTo(other *Object) bool {
	if other == nil {
		return false
	}
	a, b := o.Fingerprint(), other.Fingerprint()
	return a != "" && a == b
}

// Errno returns the error number left by the last transform call.
func (o *Object) Errno() int {
	return o.errno
}

// ErrnoString describes an error number.
func ErrnoString(errno int) string {
	switch errno {
	case ErrnoNone:
		return "no error"
	case ErrnoCoordTransfm:
		return "coordinate transformation failed"
	case ErrnoInvalidCoord:
		return "invalid coordinate"
	case ErrnoOutsideDomain:
		return "point outside of projection domain"
	default:
		return "unknown error"
	}
}
