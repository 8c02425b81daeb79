package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrNoFinitePoints is returned by TransformBound when no sample point
// could be transformed.
var ErrNoFinitePoints = errors.New("pipeline: no point of the bound could be transformed")

// TransformGeometry returns a transformed copy of g and the number of its
// points that were transformed successfully. Failed points are +Inf.
// orb.Bound is transformed with TransformBound.
func (p *Pipeline) TransformGeometry(g orb.Geometry) (orb.Geometry, int, error) {
	if b, ok := g.(orb.Bound); ok {
		out, err := p.TransformBound(b, 0)
		if err != nil {
			return nil, 0, err
		}
		return out, 4, nil
	}
	buf, err := appendCoords(nil, g)
	if err != nil {
		return nil, 0, err
	}
	count := len(buf) / 2
	n, err := p.Transform(buf, count)
	if err != nil {
		return nil, n, err
	}
	out, _ := rebuild(g, buf)
	return out, n, nil
}

func appendCoords(buf []float64, g orb.Geometry) ([]float64, error) {
	switch g := g.(type) {
	case orb.Point:
		return append(buf, g[0], g[1]), nil
	case orb.MultiPoint:
		return appendPoints(buf, g), nil
	case orb.LineString:
		return appendPoints(buf, g), nil
	case orb.Ring:
		return appendPoints(buf, g), nil
	case orb.MultiLineString:
		for _, ls := range g {
			buf = appendPoints(buf, ls)
		}
		return buf, nil
	case orb.Polygon:
		for _, r := range g {
			buf = appendPoints(buf, r)
		}
		return buf, nil
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, r := range poly {
				buf = appendPoints(buf, r)
			}
		}
		return buf, nil
	case orb.Collection:
		var err error
		for _, c := range g {
			if buf, err = appendCoords(buf, c); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: unsupported geometry %T", ErrInvalidArgument, g)
}

func appendPoints(buf []float64, pts []orb.Point) []float64 {
	for _, pt := range pts {
		buf = append(buf, pt[0], pt[1])
	}
	return buf
}

// rebuild returns a copy of g with coordinates taken from buf, and the
// rest of buf. g must have been flattened by appendCoords.
func rebuild(g orb.Geometry, buf []float64) (orb.Geometry, []float64) {
	switch g := g.(type) {
	case orb.Point:
		return orb.Point{buf[0], buf[1]}, buf[2:]
	case orb.MultiPoint:
		pts, rest := takePoints(len(g), buf)
		return orb.MultiPoint(pts), rest
	case orb.LineString:
		pts, rest := takePoints(len(g), buf)
		return orb.LineString(pts), rest
	case orb.Ring:
		pts, rest := takePoints(len(g), buf)
		return orb.Ring(pts), rest
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			var pts []orb.Point
			pts, buf = takePoints(len(ls), buf)
			out[i] = pts
		}
		return out, buf
	case orb.Polygon:
		out, rest := rebuildPolygon(g, buf)
		return out, rest
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, poly := range g {
			out[i], buf = rebuildPolygon(poly, buf)
		}
		return out, buf
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			out[i], buf = rebuild(c, buf)
		}
		return out, buf
	}
	return g, buf
}

func rebuildPolygon(poly orb.Polygon, buf []float64) (orb.Polygon, []float64) {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		var pts []orb.Point
		pts, buf = takePoints(len(r), buf)
		out[i] = pts
	}
	return out, buf
}

func takePoints(n int, buf []float64) ([]orb.Point, []float64) {
	pts := make([]orb.Point, n)
	for i := range pts {
		pts[i] = orb.Point{buf[2*i], buf[2*i+1]}
	}
	return pts, buf[2*n:]
}

// TransformBound transforms b by sampling its four corners and densify
// extra points along each edge, returning the bound of every sample that
// transformed successfully.
func (p *Pipeline) TransformBound(b orb.Bound, densify int) (orb.Bound, error) {
	if densify < 0 {
		return orb.Bound{}, fmt.Errorf("%w: densify %d", ErrInvalidArgument, densify)
	}
	steps := densify + 1
	buf := make([]float64, 0, 8*steps)
	edge := func(from, to orb.Point) {
		for i := 0; i < steps; i++ {
			t := float64(i) / float64(steps)
			buf = append(buf, from[0]+t*(to[0]-from[0]), from[1]+t*(to[1]-from[1]))
		}
	}
	ll, lr := b.Min, orb.Point{b.Max[0], b.Min[1]}
	ur, ul := b.Max, orb.Point{b.Min[0], b.Max[1]}
	edge(ll, lr)
	edge(lr, ur)
	edge(ur, ul)
	edge(ul, ll)

	if _, err := p.Transform(buf, len(buf)/2); err != nil {
		return orb.Bound{}, err
	}
	var out orb.Bound
	found := false
	for i := 0; i < len(buf); i += 2 {
		pt := orb.Point{buf[i], buf[i+1]}
		if math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			continue
		}
		if !found {
			out = pt.Bound()
			found = true
			continue
		}
		out = out.Extend(pt)
	}
	if !found {
		return orb.Bound{}, ErrNoFinitePoints
	}
	return out, nil
}
