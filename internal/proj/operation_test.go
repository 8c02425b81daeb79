package proj

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOperation(t *testing.T, ctx *Context, src, dst string, normalize bool) *Object {
	t.Helper()
	op, err := ctx.CreateCRSToCRS(src, dst)
	require.NoError(t, err)
	if !normalize {
		t.Cleanup(op.Destroy)
		return op
	}
	norm, err := ctx.NormalizeForVisualization(op)
	op.Destroy()
	require.NoError(t, err)
	t.Cleanup(norm.Destroy)
	return norm
}

func TestTransXY_WebMercator(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	// The WKT1 definition declares latitude first.
	raw := mustOperation(t, ctx, wgs84WKT1, webMercatorWKT1, false)
	assert.Equal(t, TypeTransformation, raw.Type())
	assert.Equal(t, "WGS 84 to WGS 84 / Pseudo-Mercator", raw.Name())

	pts := []float64{-37.8, 145}
	n, err := raw.TransXY(Fwd, pts, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 16141326.165, pts[0], 1e-3)
	assert.InDelta(t, -4551210.920, pts[1], 1e-3)

	norm := mustOperation(t, ctx, wgs84WKT1, webMercatorWKT1, true)
	pts = []float64{145, -37.8, 0, 0}
	n, err = norm.TransXY(Fwd, pts, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 16141326.165, pts[0], 1e-3)
	assert.InDelta(t, -4551210.920, pts[1], 1e-3)
	assert.InDelta(t, 0, pts[2], 1e-9)
	assert.InDelta(t, 0, pts[3], 1e-9)

	n, err = norm.TransXY(Inv, pts, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 145, pts[0], 1e-9)
	assert.InDelta(t, -37.8, pts[1], 1e-9)
}

func TestTransXY_UTM(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, wgs84WKT2, utm33WKT2, true)
	pts := []float64{15, 48, 16, 48}
	n, err := op.TransXY(Fwd, pts, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 500000, pts[0], 1e-3)
	assert.InDelta(t, 5316300.224, pts[1], 1e-3)
	assert.InDelta(t, 574595.112, pts[2], 1e-3)
	assert.InDelta(t, 5316784.009, pts[3], 1e-3)
}

// swisstopo's approximate WGS 84 to LV95 formulas, good to about a metre.
func approxLV95(lon, lat float64) (easting, northing float64) {
	phi := (lat*3600 - 169028.66) / 10000
	lam := (lon*3600 - 26782.5) / 10000
	easting = 2_600_072.37 +
		211_455.93*lam -
		10_938.51*lam*phi -
		0.36*lam*phi*phi -
		44.54*lam*lam*lam
	northing = 1_200_147.07 +
		308_807.95*phi +
		3_745.25*lam*lam +
		76.63*phi*phi -
		194.56*lam*lam*phi +
		119.79*phi*phi*phi
	return easting, northing
}

func TestTransXY_SwissLV95(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, wgs84WKT1, lv95WKT1, true)
	points := [][2]float64{
		{8.5, 47.3},
		{7.43958333, 46.95240556},
		{6.1, 46.2},
		{9.8, 46.5},
		{8.73162735, 46.04533301},
	}
	for _, p := range points {
		buf := []float64{p[0], p[1]}
		n, err := op.TransXY(Fwd, buf, 2, 1)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		wantE, wantN := approxLV95(p[0], p[1])
		if d := math.Hypot(buf[0]-wantE, buf[1]-wantN); d > 1.5 {
			t.Errorf("(%v, %v) -> (%.3f, %.3f), approximation (%.3f, %.3f), off by %.3f m",
				p[0], p[1], buf[0], buf[1], wantE, wantN, d)
		}

		_, err = op.TransXY(Inv, buf, 2, 1)
		require.NoError(t, err)
		// Heights are dropped between datums, which costs about a millimetre.
		assert.InDelta(t, p[0], buf[0], 1e-7)
		assert.InDelta(t, p[1], buf[1], 1e-7)
	}
}

func TestTransXY_FeetAndDatum(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, wgs84WKT1, texasFeetWKT1, true)
	pts := []float64{-97, 32.5}
	_, err := op.TransXY(Fwd, pts, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2430929.794, pts[0], 1e-2)
	assert.InDelta(t, 6868146.674, pts[1], 1e-2)
}

func TestTransXY_PrimeMeridianAndGrads(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, ntfParisWKT1, ntfWKT1, false)
	pts := []float64{0, 50}
	_, err := op.TransXY(Fwd, pts, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.33722917, pts[0], 1e-9)
	assert.InDelta(t, 45, pts[1], 1e-9)
}

// Datums with no known relation to WGS 84 are carried over unchanged.
func TestTransXY_UnknownDatumIsBallpark(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, ntfWKT1, wgs84WKT2, true)
	pts := []float64{2.5, 48.8}
	_, err := op.TransXY(Fwd, pts, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, pts[0], 1e-12)
	assert.InDelta(t, 48.8, pts[1], 1e-12)
}

func TestTransXY_Stride(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, wgs84WKT1, webMercatorWKT1, true)
	pts := []float64{0, 0, 7, 180, 0, 9}
	n, err := op.TransXY(Fwd, pts, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 7.0, pts[2], "values beyond x and y are untouched")
	assert.Equal(t, 9.0, pts[5])
	assert.InDelta(t, 20037508.342789244, pts[3], 1e-6)
}

func TestTransXY_Failures(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	op := mustOperation(t, ctx, wgs84WKT1, webMercatorWKT1, true)

	pts := []float64{10, 95, 10, 10, 0, 90, math.NaN(), 0}
	n, err := op.TransXY(Fwd, pts, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, math.IsInf(pts[0], 1) && math.IsInf(pts[1], 1), "invalid latitude")
	assert.False(t, math.IsInf(pts[2], 0))
	assert.True(t, math.IsInf(pts[4], 1), "pole is outside the Mercator domain")
	assert.True(t, math.IsInf(pts[6], 1), "NaN input")
	assert.NotEqual(t, ErrnoNone, op.Errno())

	n, err = op.TransXY(Fwd, []float64{1, 1}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ErrnoNone, op.Errno(), "errno is reset on each call")

	_, err = op.TransXY(Fwd, []float64{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrInvalidBuffer)
	_, err = op.TransXY(Fwd, []float64{1, 2}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidBuffer)
	_, err = op.TransXY(Fwd, nil, 2, -1)
	assert.ErrorIs(t, err, ErrInvalidBuffer)

	n, err = op.TransXY(Fwd, nil, 2, 0)
	assert.NoError(t, err)
	assert.Zero(t, n)

	pts = []float64{3, 4}
	n, err = op.TransXY(Ident, pts, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{3, 4}, pts)
}

func TestCreateCRSToCRS_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src, dst string
		want     error
	}{
		{"malformed source", "GEOGCS[", webMercatorWKT1, ErrInvalidDefinition},
		{"malformed target", wgs84WKT1, "", ErrInvalidDefinition},
		{"vertical", navd88WKT1, wgs84WKT1, ErrNoOperation},
		{"unsupported method", wgs84WKT1, polyconicWKT1, ErrNoOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext()
			defer ctx.Close()
			op, err := ctx.CreateCRSToCRS(tt.src, tt.dst)
			assert.Nil(t, op)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, ctx.Live())
		})
	}
}

func TestNormalizeForVisualization_Errors(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	crs, err := ctx.Create(wgs84WKT1)
	require.NoError(t, err)
	_, err = ctx.NormalizeForVisualization(crs)
	assert.ErrorIs(t, err, ErrNotOperation)
	_, err = crs.TransXY(Fwd, []float64{0, 0}, 2, 1)
	assert.ErrorIs(t, err, ErrNotOperation)

	op, err := ctx.CreateCRSToCRS(wgs84WKT1, webMercatorWKT1)
	require.NoError(t, err)
	op.Destroy()
	_, err = ctx.NormalizeForVisualization(op)
	assert.ErrorIs(t, err, ErrObjectDestroyed)
	_, err = op.TransXY(Fwd, []float64{0, 0}, 2, 1)
	assert.ErrorIs(t, err, ErrObjectDestroyed)

	crs.Destroy()
	assert.Zero(t, ctx.Live())
}
