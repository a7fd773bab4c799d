package services

import (
	"bytes"
	"strings"
	"testing"

	"melhor-casa/models"
)

func sampleProperties() []models.Property {
	return []models.Property{
		{Name: "Casa A", Price: "R$ 800.000", Area: "200 m²", Neighborhood: "Savassi", Site: "quintoandar", Status: models.StatusLiked},
		{Name: "Apto B", Price: "R$ 400.000", Area: "70 m²", Neighborhood: "savassi", Site: "olx", Status: models.StatusUnseen},
		{Name: "Apto C", Price: "R$ 600.000", Area: "90 m²", Neighborhood: "Lourdes", Site: "olx", Status: models.StatusDisliked},
		{Name: "Lote D", Price: DefaultPrice, Area: "360 m²", Site: "olx"},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger(), NewParser(newTestLogger()))
	r := svc.Generate(sampleProperties())
	if r.TotalProperties != 4 {
		t.Errorf("TotalProperties: got %d, want 4", r.TotalProperties)
	}
	if r.Liked != 1 || r.Disliked != 1 || r.Unseen != 2 {
		t.Errorf("partitions: liked %d disliked %d unseen %d", r.Liked, r.Disliked, r.Unseen)
	}
	if r.PropertiesBySite["olx"] != 3 || r.PropertiesBySite["quintoandar"] != 1 {
		t.Errorf("by site: %v", r.PropertiesBySite)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger(), NewParser(newTestLogger()))
	r := svc.Generate(sampleProperties())
	if r.AveragePrice != 600000 {
		t.Errorf("AveragePrice: got %.2f, want 600000", r.AveragePrice)
	}
	if r.MinPrice != 400000 || r.MaxPrice != 800000 {
		t.Errorf("Min/Max: got %d / %d", r.MinPrice, r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.Name != "Casa A" {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
	if r.Largest == nil || r.Largest.Name != "Lote D" {
		t.Errorf("Largest: got %+v", r.Largest)
	}
}

func TestInsightRegionGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger(), NewParser(newTestLogger()))
	r := svc.Generate(sampleProperties())
	if r.PropertiesByRegion["Savassi"] != 2 {
		t.Errorf("Savassi: got %d, want 2 (%v)", r.PropertiesByRegion["Savassi"], r.PropertiesByRegion)
	}
	if r.PropertiesByRegion[unknownRegion] != 1 {
		t.Errorf("%s: got %d, want 1", unknownRegion, r.PropertiesByRegion[unknownRegion])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger(), NewParser(newTestLogger()))
	r := svc.Generate(nil)
	if r.TotalProperties != 0 || r.MostExpensive != nil || r.AveragePrice != 0 {
		t.Errorf("empty report: %+v", r)
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(newTestLogger(), NewParser(newTestLogger()))
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleProperties()))

	out := buf.String()
	for _, want := range []string{"Total properties", "R$ 800.000", "Casa A", "Savassi"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{1200000, "1.200.000"},
		{45000, "45.000"},
	}
	for _, tt := range tests {
		if got := formatBRL(tt.n); got != tt.want {
			t.Errorf("formatBRL(%d) = %q; want %q", tt.n, got, tt.want)
		}
	}
}
