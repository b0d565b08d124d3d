package evisync

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// fallbackProjParameter is used when net file has no projection ('!')
	fallbackProjParameter = "+proj=utm +zone=32 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"

	wgs84A   = 6378137.0
	wgs84F   = 1 / 298.257223563
	utmK0    = 0.9996
	utmEast  = 500000.0
	utmSouth = 10000000.0
)

type ProjectionKind uint16

const (
	PROJECTION_UTM = ProjectionKind(iota + 1)
	PROJECTION_MERCATOR
)

// Projection converts WGS84 coordinates into local scene coordinates of a road graph
type Projection struct {
	kind      ProjectionKind
	zone      int
	south     bool
	netOffset orb.Point
	offset    orb.Point
}

// NewProjection prepares projection described by graph location.
// Supported projections are '+proj=utm' (with '+zone' and optional '+south') and '+proj=merc' (spherical)
func NewProjection(location Location, sceneOffset orb.Point) (*Projection, error) {
	param := strings.TrimSpace(location.ProjParameter)
	if param == "" || param == "!" {
		log.WithField("proj", fallbackProjParameter).Warn("Road network has no projection, falling back to UTM zone 32")
		param = fallbackProjParameter
	}
	projection := &Projection{
		netOffset: location.NetOffset,
		offset:    sceneOffset,
	}
	for _, field := range strings.Fields(param) {
		key, value, _ := strings.Cut(strings.TrimPrefix(field, "+"), "=")
		switch key {
		case "proj":
			switch value {
			case "utm":
				projection.kind = PROJECTION_UTM
			case "merc":
				projection.kind = PROJECTION_MERCATOR
			default:
				return nil, errors.Errorf("Unsupported projection '%s'", value)
			}
		case "zone":
			zone, err := strconv.Atoi(value)
			if err != nil || zone < 1 || zone > 60 {
				return nil, errors.Errorf("Bad UTM zone '%s'", value)
			}
			projection.zone = zone
		case "south":
			projection.south = true
		}
	}
	if projection.kind == 0 {
		return nil, errors.Errorf("No '+proj' in '%s'", param)
	}
	if projection.kind == PROJECTION_UTM && projection.zone == 0 {
		return nil, errors.Errorf("No '+zone' for UTM projection in '%s'", param)
	}
	return projection, nil
}

// ToLocal converts longitude/latitude into scene coordinates
func (projection *Projection) ToLocal(lon, lat float64) orb.Point {
	var x, y float64
	switch projection.kind {
	case PROJECTION_MERCATOR:
		x, y = mercatorForward(lon, lat)
	default:
		x, y = utmForward(lon, lat, projection.zone, projection.south)
	}
	return orb.Point{
		x + projection.netOffset.X() - projection.offset.X(),
		y + projection.netOffset.Y() - projection.offset.Y(),
	}
}

// utmForward is the transverse Mercator series on WGS84 ellipsoid
func utmForward(lon, lat float64, zone int, south bool) (float64, float64) {
	e2 := wgs84F * (2 - wgs84F)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	phi := degreesToRadians(lat)
	lambda := degreesToRadians(lon)
	lambda0 := degreesToRadians(float64((zone-1)*6 - 180 + 3))

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := wgs84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lambda - lambda0)
	m := wgs84A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	x := utmK0*n*(a+(1-t+c)*math.Pow(a, 3)/6+(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmEast
	y := utmK0 * (m + n*tanPhi*(a*a/2+(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if south {
		y += utmSouth
	}
	return x, y
}

// mercatorForward is the spherical (web) Mercator used for OSM imports
func mercatorForward(lon, lat float64) (float64, float64) {
	x := wgs84A * degreesToRadians(lon)
	y := wgs84A * math.Log(math.Tan(math.Pi/4+degreesToRadians(lat)/2))
	return x, y
}

func mercatorInverse(x, y float64) (float64, float64) {
	lon := radiansTodegrees(x / wgs84A)
	lat := radiansTodegrees(2*math.Atan(math.Exp(y/wgs84A)) - math.Pi/2)
	return lon, lat
}

func mercatorLine(line orb.LineString) orb.LineString {
	projected := make(orb.LineString, len(line))
	for i, pt := range line {
		projected[i][0], projected[i][1] = mercatorForward(pt.Lon(), pt.Lat())
	}
	return projected
}
