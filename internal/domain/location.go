package domain

import (
	"math"
	"time"
)

// MaxLocationHistory caps the number of fixes kept per booking.
const MaxLocationHistory = 50

const earthRadiusKm = 6371.0

// GeoPoint is a single technician position fix.
type GeoPoint struct {
	Lat        float64   `json:"lat" bson:"lat"`
	Lng        float64   `json:"lng" bson:"lng"`
	RecordedAt time.Time `json:"recordedAt" bson:"recordedAt"`
}

// TechnicianLocation tracks the assigned technician on the way to and at the job.
type TechnicianLocation struct {
	Current    *GeoPoint  `json:"current,omitempty" bson:"current,omitempty"`
	History    []GeoPoint `json:"history" bson:"history"`
	ETAMinutes *float64   `json:"etaMinutes,omitempty" bson:"etaMinutes,omitempty"`
}

func (t TechnicianLocation) clone() TechnicianLocation {
	c := t
	if t.Current != nil {
		p := *t.Current
		c.Current = &p
	}
	c.History = append([]GeoPoint(nil), t.History...)
	c.ETAMinutes = cloneFloat(t.ETAMinutes)
	return c
}

// WithFix returns a copy of t with point as the current fix, appended to a history
// bounded to MaxLocationHistory entries. When the destination has coordinates and
// speedKmh is positive, the ETA is recomputed.
func (t TechnicianLocation) WithFix(point GeoPoint, dest Location, speedKmh float64) TechnicianLocation {
	c := t.clone()
	c.Current = &point
	c.History = append(c.History, point)
	if len(c.History) > MaxLocationHistory {
		c.History = c.History[len(c.History)-MaxLocationHistory:]
	}

	if dest.HasCoordinates() && speedKmh > 0 {
		km := DistanceKm(point.Lat, point.Lng, *dest.Lat, *dest.Lng)
		eta := math.Round(km/speedKmh*60*10) / 10
		c.ETAMinutes = &eta
	}
	return c
}

// DistanceKm returns the great-circle distance between two coordinates.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// IsValidCoordinate reports whether lat/lng are within range.
func IsValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
