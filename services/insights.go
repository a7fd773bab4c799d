package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"melhor-casa/models"
	"melhor-casa/utils"
)

const unknownRegion = "Sem bairro"

// InsightService computes and prints collection summaries.
type InsightService struct {
	logger *utils.Logger
	parser *Parser
}

// NewInsightService returns a new InsightService.
func NewInsightService(logger *utils.Logger, parser *Parser) *InsightService {
	return &InsightService{logger: logger, parser: parser}
}

// Generate summarizes props across every partition. Price statistics only
// consider records with a known price; regions are neighborhoods, grouped
// case-insensitively.
func (s *InsightService) Generate(props []models.Property) *models.InsightReport {
	report := &models.InsightReport{
		PropertiesBySite:   make(map[string]int),
		PropertiesByRegion: make(map[string]int),
	}
	if len(props) == 0 {
		return report
	}
	report.TotalProperties = len(props)
	title := cases.Title(language.BrazilianPortuguese)

	var total, largestArea int64
	var priced int
	for i := range props {
		p := &props[i]
		price := p.PriceValue
		if price == 0 {
			price = s.parser.Parse(p.Price)
		}
		area := p.AreaValue
		if area == 0 {
			area = s.parser.Parse(p.Area)
		}

		switch p.Status {
		case models.StatusLiked:
			report.Liked++
		case models.StatusDisliked:
			report.Disliked++
		default:
			report.Unseen++
		}

		if p.Site != "" {
			report.PropertiesBySite[p.Site]++
		}
		report.PropertiesByRegion[region(title, p)]++

		if price > 0 {
			total += price
			priced++
			if report.MinPrice == 0 || price < report.MinPrice {
				report.MinPrice = price
			}
			if price > report.MaxPrice {
				report.MaxPrice = price
				report.MostExpensive = p
			}
		}
		if area > largestArea {
			largestArea = area
			report.Largest = p
		}
	}

	if priced > 0 {
		report.AveragePrice = round2(float64(total) / float64(priced))
	}
	s.logger.Debug("[insights] %d properties, %d priced, %d regions", report.TotalProperties, priced, len(report.PropertiesByRegion))
	return report
}

func region(title cases.Caser, p *models.Property) string {
	n := strings.TrimSpace(p.Neighborhood)
	if n == "" {
		return unknownRegion
	}
	return title.String(n)
}

// Print writes a formatted report to w.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 RESUMO DOS IMÓVEIS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total properties : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Fprintf(w, "  Unseen           : \033[1m%d\033[0m\n", r.Unseen)
	fmt.Fprintf(w, "  Liked            : \033[1;32m%d\033[0m\n", r.Liked)
	fmt.Fprintf(w, "  Disliked         : \033[1;31m%d\033[0m\n", r.Disliked)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32mR$ %s\033[0m\n", formatBRL(int64(r.AveragePrice)))
		fmt.Fprintf(w, "  Minimum price : \033[1;32mR$ %s\033[0m\n", formatBRL(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32mR$ %s\033[0m\n", formatBRL(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Name, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m%s\033[0m\n", r.MostExpensive.Price)
		fmt.Fprintln(w)
	}
	if r.Largest != nil {
		fmt.Fprintf(w, "\033[1;33m  Largest\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.Largest.Name, 50))
		fmt.Fprintf(w, "  Area     : %s\n", r.Largest.Area)
		fmt.Fprintf(w, "  Price    : %s\n", r.Largest.Price)
		fmt.Fprintln(w)
	}

	printCounts(w, "Properties by Site", r.PropertiesBySite, thin)
	printCounts(w, "Properties by Neighborhood", r.PropertiesByRegion, thin)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type entry struct {
		key   string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, entry{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	for _, e := range entries {
		bar := strings.Repeat("█", min(e.count, 30))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(e.key, 28), bar, e.count)
	}
	fmt.Fprintln(w)
}

// formatBRL renders n with dot thousands separators, e.g. 1.200.000.
func formatBRL(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
