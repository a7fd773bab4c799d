package quintoandar

import (
	"testing"

	"melhor-casa/services"
	"melhor-casa/utils"
)

func TestSearchURL(t *testing.T) {
	tests := []struct {
		city     string
		maxPrice int
		want     string
	}{
		{"", 0, "https://www.quintoandar.com.br/comprar/imovel/belo-horizonte-mg-brasil/de-150000-a-250000-venda"},
		{"sao-paulo-sp-brasil", 600000, "https://www.quintoandar.com.br/comprar/imovel/sao-paulo-sp-brasil/de-150000-a-600000-venda"},
	}
	for _, tt := range tests {
		if got := SearchURL(tt.city, tt.maxPrice); got != tt.want {
			t.Errorf("SearchURL(%q, %d) = %q, want %q", tt.city, tt.maxPrice, got, tt.want)
		}
	}
}

func TestCardRow(t *testing.T) {
	row := cardRow(card{
		Title:     " Apartamento com 2 quartos, Savassi ",
		Image:     "https://img/1.jpg",
		Price:     "\nR$ 240.000\nCondo. + IPTU R$ 420",
		Amenities: "1.050 m² · 2 Quartos · 1 banheiro · 1 vaga",
		Address:   "Rua Pernambuco,\n  Savassi",
		Link:      "https://www.quintoandar.com.br/comprar/imovel/123",
	})

	want := map[string]string{
		"fonte":       "QuintoAndar",
		"título":      "Apartamento com 2 quartos, Savassi",
		"imagem":      "https://img/1.jpg",
		"valor":       "R$ 240.000",
		"m²":          "1050 m²",
		"quartos":     "2",
		"banheiros":   "1",
		"vagas":       "1",
		"localização": "Rua Pernambuco, Savassi",
		"link":        "https://www.quintoandar.com.br/comprar/imovel/123",
	}
	for k, v := range want {
		if row[k] != v {
			t.Errorf("%s: got %q, want %q", k, row[k], v)
		}
	}
}

func TestCardRowMissingAmenities(t *testing.T) {
	row := cardRow(card{Link: "https://x/1", Amenities: "sem informação"})
	for _, k := range []string{"m²", "quartos", "vagas", "valor"} {
		if row[k] != "" {
			t.Errorf("%s: got %q, want empty", k, row[k])
		}
	}
}

func TestCardRowMapsThroughScraperColumns(t *testing.T) {
	logger := utils.NopLogger()
	row := cardRow(card{
		Title:     "Casa no Buritis",
		Price:     "R$ 230.000",
		Amenities: "85 m² 3 quartos 2 vagas",
		Address:   "Buritis, Belo Horizonte",
		Link:      "https://www.quintoandar.com.br/comprar/imovel/9",
	})

	p, err := services.NewMapper(logger).MapRow(services.SiteScraper, row, 0)
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if p.Name != "Casa no Buritis" || p.Price != "R$ 230.000" || p.Area != "85 m²" {
		t.Errorf("display fields: %+v", p)
	}
	if p.Rooms != "3" || p.Parking != "2" || p.Site != "QuintoAndar" || p.Location != "Buritis, Belo Horizonte" {
		t.Errorf("counts/site/location: %+v", p)
	}
	if got := services.ParseNumeric(p.Area); got != 85 {
		t.Errorf("area value: got %d, want 85", got)
	}
}

func TestNewSkipsKnownLinks(t *testing.T) {
	f := New(Options{}, utils.NopLogger(), "https://x/known")
	if f.opts.MaxRounds != defaultMaxRounds {
		t.Errorf("MaxRounds default: got %d", f.opts.MaxRounds)
	}
	if f.seen.Add("https://x/known") {
		t.Error("known links must be pre-seeded")
	}
	if !f.seen.Add("https://x/new") {
		t.Error("new link should be accepted")
	}
}
