package models

import "time"

// Status is the triage partition a property currently belongs to.
type Status string

const (
	StatusUnseen   Status = "unseen"
	StatusLiked    Status = "liked"
	StatusDisliked Status = "disliked"
)

// Row is one spreadsheet row keyed by column header, as read from the first
// sheet of an imported workbook or produced by a scraping feed.
type Row map[string]string

// Property is the canonical listing record. Display fields keep the text the
// source site published; the *Value fields are derived by the enhancer.
// JSON names match the blobs the web client persists.
type Property struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	Image        string `json:"imagem"`
	Image2       string `json:"imagem2,omitempty"`
	Price        string `json:"valor"`
	Condo        string `json:"condominio,omitempty"`
	Area         string `json:"m2"`
	Street       string `json:"rua,omitempty"`
	Neighborhood string `json:"bairro,omitempty"`
	Location     string `json:"localizacao"`
	Link         string `json:"link"`
	Rooms        string `json:"quartos"`
	Parking      string `json:"garagem"`
	Advantages   string `json:"vantagens,omitempty"`
	Keywords     string `json:"palavrasChaves,omitempty"`
	Site         string `json:"site,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Geohash   string   `json:"geohash,omitempty"`

	PriceValue   int64    `json:"valorNumerico,omitempty"`
	AreaValue    int64    `json:"m2Numerico,omitempty"`
	RoomsValue   *int64   `json:"quartosNumerico,omitempty"`
	ParkingValue *int64   `json:"garagemNumerico,omitempty"`
	Distance     *float64 `json:"distancia,omitempty"`

	Tags   []string `json:"tags,omitempty"`
	Status Status   `json:"status,omitempty"`
}

// Enhanced reports whether the derived price has been computed. A zero price
// counts as not enhanced, so such records get re-parsed on the next pass.
func (p *Property) Enhanced() bool {
	return p.PriceValue != 0
}

// HasCoordinates reports whether both latitude and longitude are set.
func (p *Property) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// HasTag reports whether tag is attached to the property.
func (p *Property) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so reducers never share slices or pointers
// between the previous and the next state.
func (p Property) Clone() Property {
	c := p
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	c.Distance = cloneFloat(p.Distance)
	c.RoomsValue = cloneInt(p.RoomsValue)
	c.ParkingValue = cloneInt(p.ParkingValue)
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneInt(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// UserLocation is the reference point distances are measured from.
type UserLocation struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SavingsGoal links a liked property to a target date. CurrentSavings is the
// piggy-bank total at the moment the goal was set.
type SavingsGoal struct {
	PropertyID     string  `json:"propertyId"`
	TargetDate     string  `json:"targetDate"`
	CurrentSavings float64 `json:"currentSavings"`
}

// UserData is the per-user document kept by the flat-file store.
type UserData struct {
	LikedProperties    []Property `json:"likedProperties"`
	DislikedProperties []Property `json:"dislikedProperties"`
	Cofrinho           []Property `json:"cofrinho"`
	LastUpdate         time.Time  `json:"lastUpdate"`
}

// NewUserData returns the empty document served for unknown users.
func NewUserData() *UserData {
	return &UserData{
		LikedProperties:    []Property{},
		DislikedProperties: []Property{},
		Cofrinho:           []Property{},
		LastUpdate:         time.Now(),
	}
}
