package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"melhor-casa/models"
	"melhor-casa/utils"
)

// Predicate reports whether a record passes one criterion.
type Predicate func(p *models.Property) bool

// FilterStats summarizes one Apply pass.
type FilterStats struct {
	Evaluated int
	Kept      int
	// Errored counts records kept only because their evaluation failed.
	Errored int
}

// FilterEngine applies the composite filter over a collection.
type FilterEngine struct {
	logger      *utils.Logger
	enhancer    *Enhancer
	hasLocation bool
}

// NewFilterEngine creates a FilterEngine. Records that are not enhanced yet
// are enhanced on the fly; hasLocation enables the distance predicate.
func NewFilterEngine(logger *utils.Logger, enhancer *Enhancer, hasLocation bool) *FilterEngine {
	return &FilterEngine{logger: logger, enhancer: enhancer, hasLocation: hasLocation}
}

// Apply returns the records passing every active criterion plus any extra
// predicates, in input order. With showAll the input is returned unchanged.
func (f *FilterEngine) Apply(props []models.Property, filters models.Filters, showAll bool, extra ...Predicate) []models.Property {
	result, _ := f.ApplyWithStats(props, filters, showAll, extra...)
	return result
}

// ApplyWithStats is Apply plus counters. A record whose evaluation panics is
// kept and counted in Errored.
func (f *FilterEngine) ApplyWithStats(props []models.Property, filters models.Filters, showAll bool, extra ...Predicate) ([]models.Property, FilterStats) {
	if showAll {
		return props, FilterStats{Evaluated: len(props), Kept: len(props)}
	}

	predicates := append(f.predicates(filters), extra...)
	stats := FilterStats{Evaluated: len(props)}
	result := make([]models.Property, 0, len(props))

	for i := range props {
		keep, err := f.evaluate(props[i], predicates)
		if err != nil {
			f.logger.Error("[filter] Error filtering property %d (%s): %v", i, props[i].Link, err)
			stats.Errored++
		}
		if keep {
			result = append(result, props[i])
		}
	}
	stats.Kept = len(result)

	if len(props) > 0 && len(result) == 0 {
		f.logger.Debug("[filter] No property out of %d matched %+v", len(props), filters)
	}
	return result, stats
}

func (f *FilterEngine) evaluate(p models.Property, predicates []Predicate) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			keep = true
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	enhanced := p
	if !p.Enhanced() && f.enhancer != nil {
		enhanced = f.enhancer.Enhance(p)
	}
	for _, pred := range predicates {
		if !pred(&enhanced) {
			return false, nil
		}
	}
	return true, nil
}

func (f *FilterEngine) predicates(filters models.Filters) []Predicate {
	var preds []Predicate

	if min := parseBound(filters.PriceMin); min > 0 {
		preds = append(preds, func(p *models.Property) bool {
			return p.PriceValue != 0 && p.PriceValue >= min
		})
	}
	if max := parseBound(filters.PriceMax); max > 0 {
		preds = append(preds, func(p *models.Property) bool {
			return p.PriceValue != 0 && p.PriceValue <= max
		})
	}

	areaMin, areaMax := filters.AreaMin, filters.AreaMax
	preds = append(preds, func(p *models.Property) bool {
		if p.AreaValue <= 0 {
			return true
		}
		return p.AreaValue >= areaMin && p.AreaValue <= areaMax
	})

	if rooms, ok := parseCount(filters.Rooms); ok {
		preds = append(preds, func(p *models.Property) bool {
			return p.RoomsValue == nil || *p.RoomsValue == rooms
		})
	}
	if parking, ok := parseCount(filters.Parking); ok {
		preds = append(preds, func(p *models.Property) bool {
			return p.ParkingValue == nil || *p.ParkingValue == parking
		})
	}

	if f.hasLocation {
		maxDistance := filters.DistanceMax
		preds = append(preds, func(p *models.Property) bool {
			return p.Distance == nil || *p.Distance <= maxDistance
		})
	}

	if len(filters.Tags) > 0 {
		preds = append(preds, TagPredicate(filters.Tags))
	}
	return preds
}

// TagPredicate matches records carrying at least one of tags.
func TagPredicate(tags []string) Predicate {
	wanted := append([]string(nil), tags...)
	return func(p *models.Property) bool {
		for _, t := range wanted {
			if p.HasTag(t) {
				return true
			}
		}
		return false
	}
}

// StatusPredicate matches records in the given partition.
func StatusPredicate(status models.Status) Predicate {
	return func(p *models.Property) bool {
		return p.Status == status
	}
}

// parseBound reads the digits of a price bound typed by the user. Bounds
// too large for int64 saturate.
func parseBound(s string) int64 {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.ParseInt(digits, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64
	}
	if err != nil {
		return 0
	}
	return n
}

// parseCount reads a room/parking selector. "all" and garbage disable it.
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == models.AnyCount {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
