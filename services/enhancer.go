package services

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"melhor-casa/models"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	geohashPrecision = 7
)

// Haversine returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Enhancer derives numeric fields, geohash and distance from the user's
// reference location.
type Enhancer struct {
	parser   *Parser
	location *models.UserLocation
}

// NewEnhancer creates an Enhancer. location may be nil when the user has not
// set one yet; distances are then left unset.
func NewEnhancer(parser *Parser, location *models.UserLocation) *Enhancer {
	return &Enhancer{parser: parser, location: location}
}

// Enhance returns a copy of p with every derived field recomputed.
func (e *Enhancer) Enhance(p models.Property) models.Property {
	out := p.Clone()
	out.PriceValue = e.parser.Parse(p.Price)
	out.AreaValue = e.parser.Parse(p.Area)

	rooms := e.parser.Parse(p.Rooms)
	parking := e.parser.Parse(p.Parking)
	out.RoomsValue = &rooms
	out.ParkingValue = &parking

	if out.HasCoordinates() {
		out.Geohash = geohash.EncodeWithPrecision(*out.Latitude, *out.Longitude, geohashPrecision)
	}
	e.setDistance(&out)
	return out
}

// EnhanceIfNeeded enhances p unless its derived price is already set.
func (e *Enhancer) EnhanceIfNeeded(p models.Property) models.Property {
	if p.Enhanced() {
		return p
	}
	return e.Enhance(p)
}

// EnhanceAll applies EnhanceIfNeeded to every record, returning a new slice.
func (e *Enhancer) EnhanceAll(props []models.Property) []models.Property {
	out := make([]models.Property, len(props))
	for i, p := range props {
		out[i] = e.EnhanceIfNeeded(p)
	}
	return out
}

// Refresh recomputes only the distance, for when the user location changes.
func (e *Enhancer) Refresh(p models.Property) models.Property {
	out := p.Clone()
	e.setDistance(&out)
	return out
}

func (e *Enhancer) setDistance(p *models.Property) {
	if e.location == nil || !p.HasCoordinates() {
		p.Distance = nil
		return
	}
	d := Haversine(e.location.Latitude, e.location.Longitude, *p.Latitude, *p.Longitude)
	p.Distance = &d
}
