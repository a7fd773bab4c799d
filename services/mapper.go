package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"melhor-casa/models"
	"melhor-casa/utils"
)

// ErrUnsupportedSite is returned for a site identifier with no mapping table.
var ErrUnsupportedSite = errors.New("unsupported site")

// Defaults for canonical fields no column provided.
const (
	DefaultImage    = "https://cdn.builder.io/api/v1/image/assets%2FTEMP%2Fdefault-house"
	DefaultPrice    = "R$ 0"
	DefaultArea     = "0 m²"
	DefaultLocation = "Localização não informada"
	DefaultLink     = "#"
	DefaultRooms    = "0 quartos"
	DefaultParking  = "0"

	maxNameLength = 120
)

var (
	htmlTagRegexp    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegexp = regexp.MustCompile(`\s+`)
	entityReplacer   = strings.NewReplacer(
		"&amp;lt;", "<", "&amp;gt;", ">",
		"&lt;", "<", "&gt;", ">",
		"&nbsp;", " ", "&quot;", `"`,
		"&amp;", "&",
	)

	// titlePatterns isolate a short title from a listing blurb, in order:
	// text before a dash, the first sentence, text before a descriptive keyword.
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^([^–-]+)[–-]`),
		regexp.MustCompile(`^([^.!?]+)[.!?]`),
		regexp.MustCompile(`^(.{1,100})\s+(Características|Detalhes|Localização|Com\s+\d+)`),
	}
)

// Mapper turns spreadsheet rows from a given site into canonical properties.
type Mapper struct {
	logger *utils.Logger
}

// NewMapper creates a Mapper with the given logger.
func NewMapper(logger *utils.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// MapRows maps every row. It fails as a whole on an unsupported site so no
// partial import ever reaches the working set.
func (m *Mapper) MapRows(site string, rows []models.Row) ([]models.Property, error) {
	mapping, ok := LookupSite(site)
	if !ok {
		return nil, fmt.Errorf("mapper: %q: %w", site, ErrUnsupportedSite)
	}

	result := make([]models.Property, 0, len(rows))
	for i, row := range rows {
		result = append(result, m.mapRow(site, mapping, row, i))
	}

	m.logger.Info("[mapper] Mapped %d rows from %s", len(result), site)
	return result, nil
}

// MapRow maps a single row; index is its 0-based position in the sheet and
// only feeds the placeholder name.
func (m *Mapper) MapRow(site string, row models.Row, index int) (models.Property, error) {
	mapping, ok := LookupSite(site)
	if !ok {
		return models.Property{}, fmt.Errorf("mapper: %q: %w", site, ErrUnsupportedSite)
	}
	return m.mapRow(site, mapping, row, index), nil
}

func newPropertyID(site string) string {
	if site == SiteScraper {
		return "scraped-" + uuid.NewString()
	}
	return "imported-" + uuid.NewString()
}

func (m *Mapper) mapRow(site string, mapping SiteMapping, row models.Row, index int) models.Property {
	lookup := newRowLookup(row)
	get := func(f Field) string {
		return lookup.first(mapping[f], f == FieldName)
	}

	street := get(FieldStreet)
	neighborhood := get(FieldNeighborhood)

	p := models.Property{
		ID:           newPropertyID(site),
		Name:         orDefault(get(FieldName), placeholderName(index)),
		Image2:       get(FieldImage2),
		Price:        orDefault(get(FieldPrice), DefaultPrice),
		Condo:        get(FieldCondo),
		Area:         orDefault(get(FieldArea), DefaultArea),
		Street:       street,
		Neighborhood: neighborhood,
		Link:         orDefault(get(FieldLink), DefaultLink),
		Rooms:        orDefault(get(FieldRooms), DefaultRooms),
		Parking:      orDefault(get(FieldParking), DefaultParking),
		Advantages:   get(FieldAdvantages),
		Keywords:     get(FieldKeywords),
		Site:         orDefault(get(FieldSite), site),
		Status:       models.StatusUnseen,
	}

	p.Image = get(FieldImage)
	if p.Image == "" {
		p.Image = orDefault(lookup.first(imageFallback, false), DefaultImage)
	}

	p.Location = get(FieldLocation)
	if p.Location == "" {
		p.Location = orDefault(strings.TrimSpace(street+" "+neighborhood), DefaultLocation)
	}

	if p.Price == DefaultPrice {
		m.logger.Debug("[mapper] Row %d from %s has no price in columns %v", index, site, mapping[FieldPrice])
	}
	return p
}

func placeholderName(index int) string {
	return fmt.Sprintf("Imóvel Importado %d", index+1)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// rowLookup finds cells by header, tolerating headers stored in a different
// Unicode normalization form than the alias table.
type rowLookup struct {
	row        models.Row
	normalized map[string]string
}

func newRowLookup(row models.Row) *rowLookup {
	idx := make(map[string]string, len(row))
	for k := range row {
		nk := norm.NFC.String(strings.TrimSpace(k))
		if _, taken := idx[nk]; !taken {
			idx[nk] = k
		}
	}
	return &rowLookup{row: row, normalized: idx}
}

func (l *rowLookup) cell(column string) (string, bool) {
	if v, ok := l.row[column]; ok {
		return v, true
	}
	if k, ok := l.normalized[norm.NFC.String(column)]; ok {
		return l.row[k], true
	}
	return "", false
}

// first returns the first usable value among aliases, trimmed. Placeholders
// ("-", "N/A") count as empty.
func (l *rowLookup) first(aliases []string, isName bool) string {
	for _, column := range aliases {
		raw, ok := l.cell(column)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" || value == "N/A" || value == "-" {
			continue
		}
		if isName {
			value = CleanTitle(value)
			if value == "" {
				continue
			}
		}
		return value
	}
	return ""
}

// CleanTitle strips markup from a listing name and shortens long blurbs to a
// concise title.
func CleanTitle(value string) string {
	value = htmlTagRegexp.ReplaceAllString(value, "")
	value = entityReplacer.Replace(value)
	value = strings.TrimSpace(whitespaceRegexp.ReplaceAllString(value, " "))

	for _, pattern := range titlePatterns {
		match := pattern.FindStringSubmatch(value)
		if len(match) > 1 {
			candidate := strings.TrimSpace(match[1])
			if utf8.RuneCountInString(candidate) > 10 {
				value = candidate
				break
			}
		}
	}

	if utf8.RuneCountInString(value) > maxNameLength {
		runes := []rune(value)
		value = string(runes[:maxNameLength-3]) + "..."
	}
	return value
}
