package wkt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geogcs = `GEOGCS["WGS 84",
    DATUM["WGS_1984",
        SPHEROID["WGS 84",6378137,298.257223563,
            AUTHORITY["EPSG","7030"]],
        AUTHORITY["EPSG","6326"]],
    PRIMEM["Greenwich",0],
    UNIT["degree",0.0174532925199433],
    AUTHORITY["EPSG","4326"]]`

func TestParseWKT1(t *testing.T) {
	n, err := Parse(geogcs)
	require.NoError(t, err)

	assert.Equal(t, "GEOGCS", n.Keyword)
	assert.Equal(t, "WGS 84", n.Name())

	sph := n.Find("SPHEROID")
	require.NotNil(t, sph)
	a, ok := sph.Number(1)
	require.True(t, ok)
	assert.Equal(t, 6378137.0, a)
	rf, ok := sph.Number(2)
	require.True(t, ok)
	assert.InDelta(t, 298.257223563, rf, 1e-12)

	auth := n.Child("AUTHORITY")
	require.NotNil(t, auth)
	code, ok := auth.Text(1)
	require.True(t, ok)
	assert.Equal(t, "4326", code)

	// Only direct children are returned by Child.
	assert.Nil(t, n.Child("SPHEROID"))
	assert.Len(t, n.Children("AUTHORITY", "UNIT", "PRIMEM"), 3)
}

func TestParseWKT2Literals(t *testing.T) {
	src := `GEOGCRS["WGS 84",CS[ellipsoidal,2],
		AXIS["geodetic latitude (Lat)",north,ORDER[1]],
		AXIS["geodetic longitude (Lon)",east,ORDER[2]],
		ID["EPSG",4326]]`
	n, err := Parse(src)
	require.NoError(t, err)

	cs := n.Child("CS")
	require.NotNil(t, cs)
	kind, _ := cs.Text(0)
	assert.Equal(t, "ellipsoidal", kind)
	dim, _ := cs.Number(1)
	assert.Equal(t, 2.0, dim)

	axes := n.Children("AXIS")
	require.Len(t, axes, 2)
	dir, _ := axes[0].Text(1)
	assert.Equal(t, "north", dir)
	order, _ := axes[1].Child("ORDER").Number(0)
	assert.Equal(t, 2.0, order)
}

func TestParseRoundBracketsAndEscapes(t *testing.T) {
	n, err := Parse(`PROJCS("a ""quoted"" name", UNIT("metre", 1))`)
	require.NoError(t, err)
	assert.Equal(t, `a "quoted" name`, n.Name())
	assert.Equal(t, `PROJCS["a ""quoted"" name",UNIT["metre",1]]`, n.String())
}

func TestParseKeywordCaseInsensitiveLookup(t *testing.T) {
	n, err := Parse(`geogcs["x",unit["degree",0.0174532925199433]]`)
	require.NoError(t, err)
	assert.True(t, n.Is("GEOGCS"))
	assert.NotNil(t, n.Child("UNIT"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"blank", "   \n"},
		{"no bracket", `GEOGCS "x"`},
		{"unterminated node", `GEOGCS["x",UNIT["degree",1]`},
		{"unterminated string", `GEOGCS["x]`},
		{"trailing input", `GEOGCS["x"] extra`},
		{"missing argument", `GEOGCS["x",,1]`},
		{"not wkt", `this is not a definition`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.src)
			assert.Nil(t, n)
			require.Error(t, err)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se), "want *SyntaxError, got %T", err)
		})
	}
}

func TestNumbersSkipsNonNumeric(t *testing.T) {
	n, err := Parse(`TOWGS84[446.448,-125.157,542.06,0.15,0.247,0.842,-20.489]`)
	require.NoError(t, err)
	assert.Equal(t, []float64{446.448, -125.157, 542.06, 0.15, 0.247, 0.842, -20.489}, n.Numbers())

	n, err = Parse(`BBOX[-90,-180,90,180]`)
	require.NoError(t, err)
	assert.Len(t, n.Numbers(), 4)
}
