package services

import (
	"melhor-casa/models"
	"melhor-casa/utils"
)

// Deduplicate returns a new slice holding only the first record for every
// distinct link, in input order.
func Deduplicate(props []models.Property) []models.Property {
	seen := utils.NewLinkSet()
	result := make([]models.Property, 0, len(props))
	for _, p := range props {
		if !seen.Add(p.Link) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Cleaner filters incoming records against what the user already has.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean returns the records of incoming whose link appears neither earlier in
// incoming nor in any of the existing partitions.
func (c *Cleaner) Clean(incoming []models.Property, existing ...[]models.Property) []models.Property {
	seen := utils.NewLinkSet()
	for _, partition := range existing {
		for _, p := range partition {
			seen.Add(p.Link)
		}
	}

	result := make([]models.Property, 0, len(incoming))
	for _, p := range incoming {
		if !seen.Add(p.Link) {
			c.logger.Debug("[cleaner] Duplicate link skipped: %s", p.Link)
			continue
		}
		result = append(result, p)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d properties (dropped %d)",
		len(incoming), len(result), len(incoming)-len(result))
	return result
}
