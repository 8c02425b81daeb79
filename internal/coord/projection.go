// Package coord implements the geodetic math behind coordinate
// transformation: reference ellipsoids, seven-parameter datum shifts and
// the map projection methods found in common CRS catalogues.
package coord

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnsupportedMethod is returned for projection methods without an
// implementation.
var ErrUnsupportedMethod = errors.New("unsupported projection method")

// Method is a map projection bound to an ellipsoid and a parameter set.
// Angles are radians with longitude measured from Greenwich, planar
// coordinates are metres and include the false easting/northing.
// ok is false when the point is outside the domain of the projection.
type Method interface {
	Forward(lam, phi float64) (x, y float64, ok bool)
	Inverse(x, y float64) (lam, phi float64, ok bool)
}

// Canonical parameter keys. Angular values are radians, linear values metres.
const (
	ParamLat0  = "lat_0"
	ParamLon0  = "lon_0"
	ParamLat1  = "lat_1"
	ParamLat2  = "lat_2"
	ParamK0    = "k_0"
	ParamX0    = "x_0"
	ParamY0    = "y_0"
	ParamAlpha = "alpha"
	ParamGamma = "gamma"
)

// Params holds projection parameters keyed by the canonical keys above.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Keys returns the parameter keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// paramAliases maps normalized WKT1, WKT2, ESRI and EPSG-code spellings
// to canonical keys.
var paramAliases = map[string]string{
	"latitude_of_origin":                ParamLat0,
	"latitude_of_center":                ParamLat0,
	"latitude_of_centre":                ParamLat0,
	"latitude_of_natural_origin":        ParamLat0,
	"latitude_of_false_origin":          ParamLat0,
	"latitude_of_projection_centre":     ParamLat0,
	"central_parallel":                  ParamLat0,
	"8801":                              ParamLat0,
	"8811":                              ParamLat0,
	"8821":                              ParamLat0,
	"central_meridian":                  ParamLon0,
	"longitude_of_center":               ParamLon0,
	"longitude_of_centre":               ParamLon0,
	"longitude_of_origin":               ParamLon0,
	"longitude_of_natural_origin":       ParamLon0,
	"longitude_of_false_origin":         ParamLon0,
	"longitude_of_projection_centre":    ParamLon0,
	"8802":                              ParamLon0,
	"8812":                              ParamLon0,
	"8822":                              ParamLon0,
	"standard_parallel_1":               ParamLat1,
	"latitude_of_1st_standard_parallel": ParamLat1,
	"latitude_of_standard_parallel":     ParamLat1,
	"8823":                              ParamLat1,
	"8832":                              ParamLat1,
	"standard_parallel_2":               ParamLat2,
	"latitude_of_2nd_standard_parallel": ParamLat2,
	"8824":                              ParamLat2,
	"scale_factor":                      ParamK0,
	"scale_factor_at_natural_origin":    ParamK0,
	"scale_factor_at_projection_centre": ParamK0,
	"scale_factor_on_initial_line":      ParamK0,
	"8805":                              ParamK0,
	"8815":                              ParamK0,
	"false_easting":                     ParamX0,
	"easting_at_false_origin":           ParamX0,
	"easting_at_projection_centre":      ParamX0,
	"8806":                              ParamX0,
	"8816":                              ParamX0,
	"8826":                              ParamX0,
	"false_northing":                    ParamY0,
	"northing_at_false_origin":          ParamY0,
	"northing_at_projection_centre":     ParamY0,
	"8807":                              ParamY0,
	"8817":                              ParamY0,
	"8827":                              ParamY0,
	"azimuth":                           ParamAlpha,
	"azimuth_of_initial_line":           ParamAlpha,
	"8813":                              ParamAlpha,
	"rectified_grid_angle":              ParamGamma,
	"angle_from_rectified_to_skew_grid": ParamGamma,
	"8814":                              ParamGamma,
}

// ParamKey returns the canonical key for a parameter name, or false if
// the parameter is not recognized.
func ParamKey(name string) (string, bool) {
	k, ok := paramAliases[NormalizeName(name)]
	return k, ok
}

// IsLinearParam reports whether the canonical key is a length rather than
// an angle or a scale factor.
func IsLinearParam(key string) bool { return key == ParamX0 || key == ParamY0 }

// IsAngularParam reports whether the canonical key is an angle.
func IsAngularParam(key string) bool {
	return key != ParamK0 && !IsLinearParam(key)
}

// Canonical method names.
const (
	MethodPseudoMercator        = "pseudo_mercator"
	MethodMercatorA             = "mercator_a"
	MethodMercatorB             = "mercator_b"
	MethodTransverseMercator    = "transverse_mercator"
	MethodLambertConic1SP       = "lcc_1sp"
	MethodLambertConic2SP       = "lcc_2sp"
	MethodAlbersEqualArea       = "albers_equal_area"
	MethodEquidistantCylindric  = "equidistant_cylindrical"
	MethodSwissObliqueMercator  = "swiss_oblique_mercator"
	MethodHotineObliqueMercator = "hotine_oblique_mercator"
)

var methodAliases = map[string]string{
	"popular_visualisation_pseudo_mercator":  MethodPseudoMercator,
	"mercator_auxiliary_sphere":              MethodPseudoMercator,
	"pseudo_mercator":                        MethodPseudoMercator,
	"1024":                                   MethodPseudoMercator,
	"mercator":                               MethodMercatorA,
	"mercator_1sp":                           MethodMercatorA,
	"mercator_variant_a":                     MethodMercatorA,
	"9804":                                   MethodMercatorA,
	"mercator_2sp":                           MethodMercatorB,
	"mercator_variant_b":                     MethodMercatorB,
	"9805":                                   MethodMercatorB,
	"transverse_mercator":                    MethodTransverseMercator,
	"gauss_kruger":                           MethodTransverseMercator,
	"9807":                                   MethodTransverseMercator,
	"lambert_conformal_conic_1sp":            MethodLambertConic1SP,
	"lambert_conic_conformal_1sp":            MethodLambertConic1SP,
	"9801":                                   MethodLambertConic1SP,
	"lambert_conformal_conic_2sp":            MethodLambertConic2SP,
	"lambert_conic_conformal_2sp":            MethodLambertConic2SP,
	"lambert_conformal_conic":                MethodLambertConic2SP,
	"9802":                                   MethodLambertConic2SP,
	"albers_conic_equal_area":                MethodAlbersEqualArea,
	"albers_equal_area":                      MethodAlbersEqualArea,
	"albers":                                 MethodAlbersEqualArea,
	"9822":                                   MethodAlbersEqualArea,
	"equidistant_cylindrical":                MethodEquidistantCylindric,
	"equirectangular":                        MethodEquidistantCylindric,
	"1028":                                   MethodEquidistantCylindric,
	"9842":                                   MethodEquidistantCylindric,
	"swiss_oblique_cylindrical":              MethodSwissObliqueMercator,
	"swiss_oblique_mercator":                 MethodSwissObliqueMercator,
	"hotine_oblique_mercator_azimuth_center": MethodHotineObliqueMercator,
	"hotine_oblique_mercator_variant_b":      MethodHotineObliqueMercator,
	"9815":                                   MethodHotineObliqueMercator,
}

// CanonicalMethod returns the canonical name of a projection method given
// its WKT, ESRI or EPSG-code spelling.
func CanonicalMethod(name string) (string, bool) {
	n := NormalizeName(name)
	if _, ok := constructors[n]; ok {
		return n, true
	}
	m, ok := methodAliases[n]
	return m, ok
}

type constructor func(e Ellipsoid, p Params) (Method, error)

var constructors = map[string]constructor{
	MethodPseudoMercator:        newPseudoMercator,
	MethodMercatorA:             newMercatorA,
	MethodMercatorB:             newMercatorB,
	MethodTransverseMercator:    newTransverseMercator,
	MethodLambertConic1SP:       newLambertConic1SP,
	MethodLambertConic2SP:       newLambertConic2SP,
	MethodAlbersEqualArea:       newAlbers,
	MethodEquidistantCylindric:  newEquidistantCylindrical,
	MethodSwissObliqueMercator:  newSwissOblique,
	MethodHotineObliqueMercator: newHotine,
}

// NewMethod builds the projection named by method (any recognized
// spelling) on ellipsoid e.
func NewMethod(method string, e Ellipsoid, p Params) (Method, error) {
	canon, ok := CanonicalMethod(method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	m, err := constructors[canon](e, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", canon, err)
	}
	return m, nil
}

// NormalizeName lower-cases s and folds every run of non-alphanumeric
// characters into a single underscore.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

const halfPi = math.Pi / 2

// adjlon wraps a longitude difference into [-π, π].
func adjlon(lam float64) float64 {
	if math.Abs(lam) <= math.Pi {
		return lam
	}
	lam = math.Mod(lam+math.Pi, 2*math.Pi)
	if lam < 0 {
		lam += 2 * math.Pi
	}
	return lam - math.Pi
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validLat(phi float64) bool {
	return finite(phi) && math.Abs(phi) <= halfPi+1e-12
}

// tsfn is the conformal "t" function of the EPSG guidance formulas.
func tsfn(e, phi float64) float64 {
	s := e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-s)/(1+s), e/2)
}

// phi2 inverts tsfn by fixed-point iteration.
func phi2(e, t float64) float64 {
	phi := halfPi - 2*math.Atan(t)
	for i := 0; i < 30; i++ {
		s := e * math.Sin(phi)
		next := halfPi - 2*math.Atan(t*math.Pow((1-s)/(1+s), e/2))
		if math.Abs(next-phi) < 1e-14 {
			return next
		}
		phi = next
	}
	return phi
}

// msfn is cos φ / sqrt(1 - e² sin² φ).
func msfn(es, phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-es*s*s)
}
