package models

// AnyCount is the room/parking selector value that disables the predicate.
const AnyCount = "all"

// Filters is the composite predicate applied to the working set. PriceMin and
// PriceMax are free text as typed by the user; only their digits count.
type Filters struct {
	PriceMin    string   `json:"valorMin"`
	PriceMax    string   `json:"valorMax"`
	AreaMin     int64    `json:"m2Min"`
	AreaMax     int64    `json:"m2Max"`
	Rooms       string   `json:"quartos"`
	Parking     string   `json:"vagas"`
	DistanceMax float64  `json:"distanciaMax"`
	Tags        []string `json:"tags"`
}

// DefaultFilters returns the filter set every session starts with.
func DefaultFilters() Filters {
	return Filters{
		AreaMin:     0,
		AreaMax:     2000,
		Rooms:       AnyCount,
		Parking:     AnyCount,
		DistanceMax: 100,
		Tags:        []string{},
	}
}

// SortField names the numeric field a collection is ordered by.
type SortField string

const (
	SortByPrice    SortField = "price"
	SortByDistance SortField = "distance"
	SortByArea     SortField = "area"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// SortOption is the active ordering of the rendered list.
type SortOption struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders by price, most expensive first.
func DefaultSort() SortOption {
	return SortOption{Field: SortByPrice, Direction: Descending}
}

// Valid reports whether both field and direction are recognized.
func (o SortOption) Valid() bool {
	switch o.Field {
	case SortByPrice, SortByDistance, SortByArea:
	default:
		return false
	}
	return o.Direction == Ascending || o.Direction == Descending
}
