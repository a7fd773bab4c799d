package services

import (
	"sort"

	"melhor-casa/models"
)

// missingDistance stands in for an unknown distance so those records sort
// after every real one when ascending.
const missingDistance = 999.0

// SortProperties returns a stably sorted copy of props. Missing prices and
// areas count as 0 and missing or zero distances as 999; equal keys keep
// input order.
// An unrecognized option leaves the order unchanged.
func SortProperties(props []models.Property, opt models.SortOption) []models.Property {
	out := make([]models.Property, len(props))
	copy(out, props)
	if len(out) < 2 || !opt.Valid() {
		return out
	}

	key := sortKey(opt.Field)
	desc := opt.Direction == models.Descending
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(&out[i]), key(&out[j])
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}

func sortKey(field models.SortField) func(p *models.Property) float64 {
	switch field {
	case models.SortByDistance:
		return func(p *models.Property) float64 {
			if p.Distance == nil || *p.Distance == 0 {
				return missingDistance
			}
			return *p.Distance
		}
	case models.SortByArea:
		return func(p *models.Property) float64 { return float64(p.AreaValue) }
	default:
		return func(p *models.Property) float64 { return float64(p.PriceValue) }
	}
}
