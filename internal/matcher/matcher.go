package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/example/taxilink/internal/eta"
	"github.com/example/taxilink/internal/models"
)

// Strategy chooses the initial driver offered to a rider from the
// candidates, which arrive in registry order.
type Strategy interface {
	Name() string
	Pick(candidates []models.Driver) (models.Driver, bool)
}

const (
	NameFirst    = "first"
	NameCheapest = "cheapest"
	NameFastest  = "fastest"
	NameNearest  = "nearest"
	NameScored   = "scored"
)

// ByName resolves a configured strategy name.
func ByName(name string) (Strategy, error) {
	switch name {
	case "", NameFirst:
		return First{}, nil
	case NameCheapest:
		return Cheapest{}, nil
	case NameFastest:
		return Fastest{}, nil
	case NameNearest:
		return Nearest{}, nil
	case NameScored:
		return Scored{RatingWeight: DefaultRatingWeight}, nil
	}
	return nil, fmt.Errorf("unknown matcher %q", name)
}

// First takes the lowest-index candidate. This is the default placeholder
// policy, not a dispatch algorithm.
type First struct{}

func (First) Name() string { return NameFirst }

func (First) Pick(c []models.Driver) (models.Driver, bool) {
	if len(c) == 0 {
		return models.Driver{}, false
	}
	return c[0], true
}

// Cheapest prefers the lowest price. Unparsable prices rank last.
type Cheapest struct{}

func (Cheapest) Name() string { return NameCheapest }

func (Cheapest) Pick(c []models.Driver) (models.Driver, bool) {
	return lowest(c, func(d models.Driver) float64 { return orInf(eta.Rands(d.Price)) })
}

// Fastest prefers the shortest ETA.
type Fastest struct{}

func (Fastest) Name() string { return NameFastest }

func (Fastest) Pick(c []models.Driver) (models.Driver, bool) {
	return lowest(c, func(d models.Driver) float64 { return orInf(eta.Seconds(d.ETA)) })
}

// Nearest prefers the shortest stated distance.
type Nearest struct{}

func (Nearest) Name() string { return NameNearest }

func (Nearest) Pick(c []models.Driver) (models.Driver, bool) {
	return lowest(c, func(d models.Driver) float64 { return orInf(eta.Kilometres(d.Distance)) })
}

// DefaultRatingWeight is how many seconds of ETA one rating point is worth.
const DefaultRatingWeight = 30.0

// Scored ranks by cost = eta_seconds + w*(5 - rating).
type Scored struct {
	RatingWeight float64
}

func (Scored) Name() string { return NameScored }

func (s Scored) Pick(c []models.Driver) (models.Driver, bool) {
	return lowest(c, func(d models.Driver) float64 { return s.Cost(d) })
}

func (s Scored) Cost(d models.Driver) float64 {
	return orInf(eta.Seconds(d.ETA)) + s.RatingWeight*(5.0-d.Rating)
}

// lowest returns the candidate with the smallest cost; ties keep registry
// order.
func lowest(c []models.Driver, cost func(models.Driver) float64) (models.Driver, bool) {
	if len(c) == 0 {
		return models.Driver{}, false
	}
	type scored struct {
		d    models.Driver
		cost float64
	}
	list := make([]scored, 0, len(c))
	for _, d := range c {
		list = append(list, scored{d, cost(d)})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].cost < list[j].cost })
	return list[0].d, true
}

func orInf(v float64, err error) float64 {
	if err != nil {
		return math.Inf(1)
	}
	return v
}
