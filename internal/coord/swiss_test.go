package coord

import (
	"math"
	"testing"
)

var bessel = Ellipsoid{A: 6377397.155, InvF: 299.1528128}

// LV95 parameters as published by EPSG for CRS 2056.
var lv95Params = Params{
	ParamLat0:  46.9524055555556 * deg,
	ParamLon0:  7.43958333333333 * deg,
	ParamAlpha: 90 * deg,
	ParamGamma: 90 * deg,
	ParamK0:    1,
	ParamX0:    2600000,
	ParamY0:    1200000,
}

func TestSwissOblique_ProjectionCentre(t *testing.T) {
	for _, name := range []string{"Hotine_Oblique_Mercator_Azimuth_Center", "Swiss_Oblique_Cylindrical"} {
		t.Run(name, func(t *testing.T) {
			m := mustMethod(t, name, bessel, lv95Params)
			x, y, ok := m.Forward(lv95Params[ParamLon0], lv95Params[ParamLat0])
			if !ok || math.Abs(x-2600000) > 1e-6 || math.Abs(y-1200000) > 1e-6 {
				t.Errorf("Forward(centre) = (%.6f, %.6f, %v), want (2600000, 1200000)", x, y, ok)
			}
		})
	}
}

// Geographic position of LV95 2700000/1100000 on the Bessel ellipsoid.
func TestSwissOblique_KnownValue(t *testing.T) {
	m := mustMethod(t, "Swiss_Oblique_Cylindrical", bessel, lv95Params)
	lam, phi, ok := m.Inverse(2700000, 1100000)
	if !ok {
		t.Fatal("Inverse failed")
	}
	if d := math.Abs(lam/deg - 8.73162735); d > 1e-8 {
		t.Errorf("lon = %.9f, want 8.73162735", lam/deg)
	}
	if d := math.Abs(phi/deg - 46.04533301); d > 1e-8 {
		t.Errorf("lat = %.9f, want 46.04533301", phi/deg)
	}
}

func TestSwissOblique_GridAngleDefaultsToAzimuth(t *testing.T) {
	p := Params{}
	for k, v := range lv95Params {
		if k != ParamGamma {
			p[k] = v
		}
	}
	if _, err := NewMethod("Hotine_Oblique_Mercator_Azimuth_Center", bessel, p); err != nil {
		t.Errorf("NewMethod without grid angle: %v", err)
	}
}
