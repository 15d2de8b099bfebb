package worker

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data.yaml
var embeddedData []byte

// Flight is a bookable flight offer.
type Flight struct {
	From    string  `yaml:"from" json:"from"`
	To      string  `yaml:"to" json:"to"`
	Airline string  `yaml:"airline" json:"airline"`
	Number  string  `yaml:"number" json:"number"`
	Fare    float64 `yaml:"fare" json:"fare"`
}

// Hotel is a bookable hotel offer.
type Hotel struct {
	City    string  `yaml:"city" json:"city"`
	Name    string  `yaml:"name" json:"name"`
	Nightly float64 `yaml:"nightly" json:"nightly"`
	Rating  float64 `yaml:"rating" json:"rating"`
}

// TravelPolicy holds the corporate travel rules.
type TravelPolicy struct {
	MinAdvanceDays  int                `yaml:"minAdvanceDays"`
	MaxFlightFare   float64            `yaml:"maxFlightFare"`
	DefaultHotelCap float64            `yaml:"defaultHotelCap"`
	HotelCaps       map[string]float64 `yaml:"hotelCaps"`
}

// HotelCap returns the nightly hotel cap for city.
func (p *TravelPolicy) HotelCap(city string) float64 {
	if limit, ok := p.HotelCaps[city]; ok {
		return limit
	}
	return p.DefaultHotelCap
}

// Catalog is the travel data queried by worker tools.
type Catalog struct {
	Policy  TravelPolicy       `yaml:"policy"`
	PerDiem map[string]float64 `yaml:"perDiem"`
	Flights []*Flight          `yaml:"flights"`
	Hotels  []*Hotel           `yaml:"hotels"`
}

// LoadCatalog decodes a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	ret := &Catalog{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode travel catalog: %w", err)
	}
	return ret, nil
}

// DefaultCatalog returns the embedded example catalog.
func DefaultCatalog() *Catalog {
	ret, err := LoadCatalog(embeddedData)
	if err != nil {
		panic(err)
	}
	return ret
}

// Cities returns every city known to the catalog, longest name first.
func (c *Catalog) Cities() []string {
	seen := map[string]bool{}
	var ret []string
	add := func(city string) {
		if city != "" && !seen[city] {
			seen[city] = true
			ret = append(ret, city)
		}
	}
	for _, f := range c.Flights {
		add(f.From)
		add(f.To)
	}
	for _, h := range c.Hotels {
		add(h.City)
	}
	sort.Slice(ret, func(i, j int) bool {
		if len(ret[i]) != len(ret[j]) {
			return len(ret[i]) > len(ret[j])
		}
		return ret[i] < ret[j]
	})
	return ret
}

// FlightsFor returns flights on a route, cheapest first.
func (c *Catalog) FlightsFor(from, to string) []*Flight {
	var ret []*Flight
	for _, f := range c.Flights {
		if strings.EqualFold(f.From, from) && strings.EqualFold(f.To, to) {
			ret = append(ret, f)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Fare < ret[j].Fare })
	return ret
}

// HotelsIn returns hotels in city, cheapest first.
func (c *Catalog) HotelsIn(city string) []*Hotel {
	var ret []*Hotel
	for _, h := range c.Hotels {
		if strings.EqualFold(h.City, city) {
			ret = append(ret, h)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Nightly < ret[j].Nightly })
	return ret
}

// PerDiemFor returns the daily meal allowance for city.
func (c *Catalog) PerDiemFor(city string) float64 {
	if v, ok := c.PerDiem[city]; ok {
		return v
	}
	return 70
}
