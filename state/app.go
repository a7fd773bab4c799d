// Package state holds the application state of a triage session and the
// transitions between states. Every record lives in one store keyed by ID
// and carries its partition as a Status, so a record can never be liked and
// disliked at the same time.
package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/utils"
)

var (
	ErrNotFound          = errors.New("property not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyTag          = errors.New("tag is empty")
)

// App is the full state of one triage session.
type App struct {
	records map[string]*models.Property
	order   []string

	Filters       models.Filters
	ShowAll       bool
	Sort          models.SortOption
	Location      *models.UserLocation
	AvailableTags []string
	TotalSavings  float64
	Goals         []models.SavingsGoal

	logger   *utils.Logger
	parser   *services.Parser
	mapper   *services.Mapper
	cleaner  *services.Cleaner
	enhancer *services.Enhancer
}

// New returns an empty session with default filters and sort.
func New(logger *utils.Logger) *App {
	parser := services.NewParser(logger)
	return &App{
		records:       make(map[string]*models.Property),
		Filters:       models.DefaultFilters(),
		Sort:          models.DefaultSort(),
		AvailableTags: []string{},
		Goals:         []models.SavingsGoal{},
		logger:        logger,
		parser:        parser,
		mapper:        services.NewMapper(logger),
		cleaner:       services.NewCleaner(logger),
		enhancer:      services.NewEnhancer(parser, nil),
	}
}

// Len is the number of records across all partitions.
func (a *App) Len() int {
	return len(a.order)
}

// Get returns a copy of the record with the given ID.
func (a *App) Get(id string) (models.Property, bool) {
	p, ok := a.records[id]
	if !ok {
		return models.Property{}, false
	}
	return p.Clone(), true
}

// All returns every record in insertion order.
func (a *App) All() []models.Property {
	out := make([]models.Property, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.records[id].Clone())
	}
	return out
}

// Partition returns the records with the given status in insertion order.
func (a *App) Partition(status models.Status) []models.Property {
	var out []models.Property
	for _, id := range a.order {
		if p := a.records[id]; p.Status == status {
			out = append(out, p.Clone())
		}
	}
	return out
}

// ImportRows maps rows from site and adds the records whose link is not
// already known. Nothing changes when mapping fails. When at least one
// record was added, filters are reset and ShowAll is turned on so the new
// records are visible.
func (a *App) ImportRows(site string, rows []models.Row) (int, []Key, error) {
	props, err := a.mapper.MapRows(site, rows)
	if err != nil {
		return 0, nil, fmt.Errorf("state: import: %w", err)
	}
	added, keys := a.AddScraped(props)
	if added > 0 {
		a.Filters = models.DefaultFilters()
		a.ShowAll = true
	}
	return added, keys, nil
}

// AddScraped adds already mapped records as unseen, enhancing them and
// dropping any whose link is already in the store.
func (a *App) AddScraped(props []models.Property) (int, []Key) {
	fresh := a.cleaner.Clean(props, a.All())
	for _, p := range fresh {
		p = a.enhancer.EnhanceIfNeeded(p)
		p.Status = models.StatusUnseen
		a.insert(p)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	return len(fresh), []Key{KeyWorkingSet}
}

func (a *App) insert(p models.Property) {
	if _, exists := a.records[p.ID]; !exists {
		a.order = append(a.order, p.ID)
	}
	stored := p
	a.records[p.ID] = &stored
}

// Like moves an unseen or disliked record to the liked partition.
func (a *App) Like(id string) ([]Key, error) {
	return a.transition(id, models.StatusLiked, models.StatusUnseen, models.StatusDisliked)
}

// Dislike moves an unseen or liked record to the disliked partition.
func (a *App) Dislike(id string) ([]Key, error) {
	return a.transition(id, models.StatusDisliked, models.StatusUnseen, models.StatusLiked)
}

// MoveToLiked reclassifies a disliked record.
func (a *App) MoveToLiked(id string) ([]Key, error) {
	return a.transition(id, models.StatusLiked, models.StatusDisliked)
}

// MoveToDisliked reclassifies a liked record.
func (a *App) MoveToDisliked(id string) ([]Key, error) {
	return a.transition(id, models.StatusDisliked, models.StatusLiked)
}

func (a *App) transition(id string, to models.Status, from ...models.Status) ([]Key, error) {
	p, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("state: %s: %w", id, ErrNotFound)
	}
	if p.Status == to {
		return nil, nil
	}
	for _, s := range from {
		if p.Status == s {
			prev := p.Status
			p.Status = to
			a.logger.Debug("[state] %s: %s → %s", id, prev, to)
			return []Key{keyFor(prev), keyFor(to)}, nil
		}
	}
	return nil, fmt.Errorf("state: %s %s → %s: %w", id, p.Status, to, ErrInvalidTransition)
}

// Remove deletes a triaged record. Unseen records cannot be removed.
func (a *App) Remove(id string) ([]Key, error) {
	p, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("state: %s: %w", id, ErrNotFound)
	}
	if p.Status != models.StatusLiked && p.Status != models.StatusDisliked {
		return nil, fmt.Errorf("state: remove %s from %s: %w", id, p.Status, ErrInvalidTransition)
	}
	key := keyFor(p.Status)
	a.delete(id)
	return []Key{key}, nil
}

// ClearDisliked drops every disliked record.
func (a *App) ClearDisliked() []Key {
	var ids []string
	for _, id := range a.order {
		if a.records[id].Status == models.StatusDisliked {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		a.delete(id)
	}
	return []Key{KeyDisliked}
}

func (a *App) delete(id string) {
	delete(a.records, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// AddTag attaches tag to a record and registers it as an available tag.
func (a *App) AddTag(id, tag string) ([]Key, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}
	p, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("state: %s: %w", id, ErrNotFound)
	}

	var keys []Key
	if !p.HasTag(tag) {
		p.Tags = append(p.Tags, tag)
		keys = append(keys, keyFor(p.Status))
	}
	if !containsString(a.AvailableTags, tag) {
		a.AvailableTags = append(a.AvailableTags, tag)
		keys = append(keys, KeyTags)
	}
	return keys, nil
}

// SetFilters replaces the active criteria.
func (a *App) SetFilters(f models.Filters) {
	if f.Tags == nil {
		f.Tags = []string{}
	}
	a.Filters = f
}

// ResetFilters restores the default criteria.
func (a *App) ResetFilters() {
	a.Filters = models.DefaultFilters()
}

// SetShowAll toggles whether Visible bypasses the filters.
func (a *App) SetShowAll(on bool) {
	a.ShowAll = on
}

// SetSort changes the active ordering; unrecognized options are rejected.
func (a *App) SetSort(opt models.SortOption) error {
	if !opt.Valid() {
		return fmt.Errorf("state: sort %s/%s: %w", opt.Field, opt.Direction, ErrInvalidTransition)
	}
	a.Sort = opt
	return nil
}

// SetLocation stores the user's reference point and recomputes every
// record's distance. A nil location clears distances.
func (a *App) SetLocation(loc *models.UserLocation) []Key {
	if loc != nil {
		l := *loc
		loc = &l
	}
	a.Location = loc
	a.enhancer = services.NewEnhancer(a.parser, loc)
	for _, id := range a.order {
		refreshed := a.enhancer.Refresh(*a.records[id])
		a.records[id] = &refreshed
	}
	return []Key{KeyLocation, KeyWorkingSet, KeyLiked, KeyDisliked}
}

// SetCoordinates stores geocoded coordinates on a record and re-derives its
// geohash and distance.
func (a *App) SetCoordinates(id string, lat, lon float64) ([]Key, error) {
	p, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("state: %s: %w", id, ErrNotFound)
	}
	located := *p
	located.Latitude, located.Longitude = &lat, &lon
	located = a.enhancer.Enhance(located)
	a.records[id] = &located
	return []Key{keyFor(located.Status)}, nil
}

// AddMoney deposits input into the piggy bank.
func (a *App) AddMoney(input string) ([]Key, error) {
	total, err := services.AddMoney(a.TotalSavings, input)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	a.TotalSavings = total
	return []Key{KeySavings}, nil
}

// SetTargetDate sets the savings goal for a property.
func (a *App) SetTargetDate(id, date string) ([]Key, error) {
	if _, ok := a.records[id]; !ok {
		return nil, fmt.Errorf("state: %s: %w", id, ErrNotFound)
	}
	goals, err := services.SetTargetDate(a.Goals, id, date, a.TotalSavings)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	a.Goals = goals
	return []Key{KeyGoals}, nil
}

// Visible is the rendered list: unseen records, deduplicated, enhanced,
// filtered and sorted.
func (a *App) Visible() []models.Property {
	unseen := services.Deduplicate(a.Partition(models.StatusUnseen))
	enhanced := a.enhancer.EnhanceAll(unseen)
	engine := services.NewFilterEngine(a.logger, a.enhancer, a.Location != nil)
	return services.SortProperties(engine.Apply(enhanced, a.Filters, a.ShowAll), a.Sort)
}

// TaggedView returns the records of a partition carrying any of tags. With
// no tags the whole partition is returned.
func (a *App) TaggedView(status models.Status, tags []string) []models.Property {
	records := a.Partition(status)
	if len(tags) == 0 {
		return records
	}
	match := services.TagPredicate(tags)
	var out []models.Property
	for i := range records {
		if match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// normalizeKeys sorts and deduplicates dirty keys.
func normalizeKeys(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
