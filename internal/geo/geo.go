package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Position is a WGS84 coordinate as reported by the device or a map tap.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Position) String() string { return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lon) }

// DefaultPosition is used when geolocation is unavailable or denied
// (Pretoria).
var DefaultPosition = Position{Lat: -25.7479, Lon: 28.2293}

// Rank is a labelled pickup point shown on the map.
type Rank struct {
	Name string   `json:"name"`
	Pos  Position `json:"pos"`
}

// DefaultRanks are the taxi ranks marked on the map.
func DefaultRanks() []Rank {
	return []Rank{
		{Name: "Main Street Rank", Pos: Position{Lat: -26.204, Lon: 28.047}},
		{Name: "Bree Taxi Rank", Pos: Position{Lat: -26.202, Lon: 28.035}},
		{Name: "Gandhi Square", Pos: Position{Lat: -26.205, Lon: 28.041}},
	}
}

// Ranks is the lookup the booking flow uses to turn a map tap into a
// destination label.
type Ranks interface {
	Nearby(pos Position, limit int) []RankDistance
	Add(r Rank)
}

type RankDistance struct {
	Rank
	Meters float64 `json:"meters"`
}

type Index struct {
	mu    sync.RWMutex
	ranks map[string]Rank
}

func NewIndex(ranks ...Rank) *Index {
	idx := &Index{ranks: make(map[string]Rank)}
	for _, r := range ranks {
		idx.Add(r)
	}
	return idx
}

func (g *Index) Add(r Rank) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ranks[r.Name] = r
}

// Nearby returns up to limit ranks, nearest first. limit <= 0 means all.
func (g *Index) Nearby(pos Position, limit int) []RankDistance {
	g.mu.RLock()
	arr := make([]RankDistance, 0, len(g.ranks))
	for _, r := range g.ranks {
		arr = append(arr, RankDistance{Rank: r, Meters: Haversine(pos.Lat, pos.Lon, r.Pos.Lat, r.Pos.Lon)})
	}
	g.mu.RUnlock()
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].Meters == arr[j].Meters {
			return arr[i].Name < arr[j].Name
		}
		return arr[i].Meters < arr[j].Meters
	})
	if limit > 0 && limit < len(arr) {
		arr = arr[:limit]
	}
	return arr
}

// TapRadiusMeters is how close a tap must land for it to snap to a rank.
const TapRadiusMeters = 500.0

// Label names a tapped point: the closest rank within TapRadiusMeters, or
// the formatted coordinate otherwise.
func Label(r Ranks, tap Position) string {
	if near := r.Nearby(tap, 1); len(near) == 1 && near[0].Meters <= TapRadiusMeters {
		return near[0].Name
	}
	return tap.String()
}

// ParsePosition reads "lat,lon".
func ParsePosition(s string) (Position, error) {
	var p Position
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return p, fmt.Errorf("position %q must be lat,lon", s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0])+" "+strings.TrimSpace(parts[1]), "%g %g", &p.Lat, &p.Lon); err != nil {
		return p, fmt.Errorf("position %q: %w", s, err)
	}
	return p, p.Validate()
}

var ErrOutOfRange = errors.New("position out of range")

func (p Position) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: %s", ErrOutOfRange, p)
	}
	return nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
