package state

import (
	"fmt"

	"github.com/google/uuid"

	"melhor-casa/models"
	"melhor-casa/storage"
)

// Key names one persisted slice of the session.
type Key string

const (
	KeyWorkingSet Key = "workingSet"
	KeyLiked      Key = "likedProperties"
	KeyDisliked   Key = "dislikedProperties"
	KeyTags       Key = "availableTags"
	KeyLocation   Key = "userLocation"
	KeySavings    Key = "totalSavings"
	KeyGoals      Key = "savingsGoals"
)

// AllKeys lists every persisted key.
var AllKeys = []Key{KeyWorkingSet, KeyLiked, KeyDisliked, KeyTags, KeyLocation, KeySavings, KeyGoals}

func keyFor(s models.Status) Key {
	switch s {
	case models.StatusLiked:
		return KeyLiked
	case models.StatusDisliked:
		return KeyDisliked
	default:
		return KeyWorkingSet
	}
}

func (a *App) value(k Key) any {
	switch k {
	case KeyWorkingSet:
		return nonNil(a.Partition(models.StatusUnseen))
	case KeyLiked:
		return nonNil(a.Partition(models.StatusLiked))
	case KeyDisliked:
		return nonNil(a.Partition(models.StatusDisliked))
	case KeyTags:
		return a.AvailableTags
	case KeyLocation:
		return a.Location
	case KeySavings:
		return a.TotalSavings
	case KeyGoals:
		return a.Goals
	default:
		return nil
	}
}

func nonNil(props []models.Property) []models.Property {
	if props == nil {
		return []models.Property{}
	}
	return props
}

// Persist writes the given keys of a to kv. With no keys nothing is written.
func Persist(kv storage.KV, a *App, keys ...Key) error {
	for _, k := range normalizeKeys(keys) {
		if err := kv.Put(string(k), a.value(k)); err != nil {
			return fmt.Errorf("state: persist %s: %w", k, err)
		}
	}
	return nil
}

// Load rebuilds a session from kv. Missing or unreadable keys keep their
// defaults. A link stored in more than one partition keeps its triaged copy,
// liked before disliked before unseen.
func Load(kv storage.KV, a *App) error {
	partitions := []struct {
		key    Key
		status models.Status
	}{
		{KeyLiked, models.StatusLiked},
		{KeyDisliked, models.StatusDisliked},
		{KeyWorkingSet, models.StatusUnseen},
	}

	seen := make(map[string]struct{})
	for _, part := range partitions {
		var props []models.Property
		if _, err := kv.Get(string(part.key), &props); err != nil {
			return fmt.Errorf("state: load %s: %w", part.key, err)
		}
		for _, p := range props {
			if _, dup := seen[p.Link]; dup {
				a.logger.Warn("[state] %s already triaged, dropping copy from %s", p.Link, part.key)
				continue
			}
			seen[p.Link] = struct{}{}
			if p.ID == "" {
				p.ID = "imported-" + uuid.NewString()
			}
			p.Status = part.status
			a.insert(p)
		}
	}

	var tags []string
	if ok, err := kv.Get(string(KeyTags), &tags); err != nil {
		return fmt.Errorf("state: load %s: %w", KeyTags, err)
	} else if ok && tags != nil {
		a.AvailableTags = tags
	}

	var loc *models.UserLocation
	if _, err := kv.Get(string(KeyLocation), &loc); err != nil {
		return fmt.Errorf("state: load %s: %w", KeyLocation, err)
	}
	if _, err := kv.Get(string(KeySavings), &a.TotalSavings); err != nil {
		return fmt.Errorf("state: load %s: %w", KeySavings, err)
	}
	var goals []models.SavingsGoal
	if ok, err := kv.Get(string(KeyGoals), &goals); err != nil {
		return fmt.Errorf("state: load %s: %w", KeyGoals, err)
	} else if ok && goals != nil {
		a.Goals = goals
	}

	a.SetLocation(loc)
	return nil
}
