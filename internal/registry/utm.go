package registry

import (
	"fmt"
	"math"

	"github.com/pspoerri/geocrs/internal/crs"
)

// UTMZoneCode returns the code of the WGS 84 UTM projection covering a
// point, honouring the widened zone 32 over Norway and the Svalbard zones.
func UTMZoneCode(lon, lat float64) (int, error) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, fmt.Errorf("%w: position %g, %g", crs.ErrInvalidArgument, lon, lat)
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lon -= 180

	zone := int((lon+180)/6) + 1
	switch {
	case lat >= 56 && lat < 64 && lon >= 3 && lon < 12:
		zone = 32
	case lat >= 72 && lat < 84:
		switch {
		case lon >= 0 && lon < 9:
			zone = 31
		case lon >= 9 && lon < 21:
			zone = 33
		case lon >= 21 && lon < 33:
			zone = 35
		case lon >= 33 && lon < 42:
			zone = 37
		}
	}

	if lat < 0 {
		return 32700 + zone, nil
	}
	return 32600 + zone, nil
}
