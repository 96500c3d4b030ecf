package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// GeoPoint is a geodetic position on the WGS-84 ellipsoid.
type GeoPoint struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeKm   float64
}

// GMSTAt returns the Greenwich mean sidereal time in radians at t.
// The time is supplied by the caller; TLE epochs are not consulted.
func GMSTAt(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	return satellite.ThetaG_JD(jd)
}

// GroundTrack maps projected orbit points onto the Earth for a single
// sidereal angle gmst. Points must be Earth-centred inertial kilometres, which
// is what ToCartesian yields for elements decoded with Earth's mu.
//
// The whole ellipse is rotated by the same angle; this is the orbit's
// footprint at one instant, not a propagated ground path.
func GroundTrack(points []Vec3, gmst float64) []GeoPoint {
	out := make([]GeoPoint, 0, len(points))
	for _, p := range points {
		alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: p.X, Y: p.Y, Z: p.Z}, gmst)
		deg := satellite.LatLongDeg(ll)
		out = append(out, GeoPoint{
			LatitudeDeg:  deg.Latitude,
			LongitudeDeg: deg.Longitude,
			AltitudeKm:   alt,
		})
	}
	return out
}

// ECEFTrack rotates projected points into the Earth-fixed frame at gmst.
func ECEFTrack(points []Vec3, gmst float64) []Vec3 {
	out := make([]Vec3, 0, len(points))
	for _, p := range points {
		e := satellite.ECIToECEF(satellite.Vector3{X: p.X, Y: p.Y, Z: p.Z}, gmst)
		out = append(out, Vec3{X: e.X, Y: e.Y, Z: e.Z})
	}
	return out
}
